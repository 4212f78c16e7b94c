package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ServiceName != "forest-monitor" {
		t.Errorf("unexpected service name: %s", cfg.ServiceName)
	}
	if cfg.HTTPPort != 8000 {
		t.Errorf("unexpected http port: %d", cfg.HTTPPort)
	}
	if cfg.MQTT.TelemetryTopic != "sensors/telemetry" {
		t.Errorf("unexpected telemetry topic: %s", cfg.MQTT.TelemetryTopic)
	}
	if cfg.MQTT.CommandPrefix != "sensors/command" {
		t.Errorf("unexpected command prefix: %s", cfg.MQTT.CommandPrefix)
	}
	if cfg.Classifier.SmokeWarning != 300 || cfg.Classifier.SmokeDanger != 600 {
		t.Errorf("unexpected thresholds: %v/%v", cfg.Classifier.SmokeWarning, cfg.Classifier.SmokeDanger)
	}
	if cfg.Pipeline.PersistTimeout != 5*time.Second {
		t.Errorf("unexpected persist timeout: %v", cfg.Pipeline.PersistTimeout)
	}
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("SMOKE_WARNING", "700")
	t.Setenv("SMOKE_DANGER", "600")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when SMOKE_WARNING exceeds SMOKE_DANGER")
	}
}

func TestBrokerURL(t *testing.T) {
	cfg := MQTTConfig{BrokerHost: "broker.local", BrokerPort: 1883}
	if got := cfg.BrokerURL(); got != "tcp://broker.local:1883" {
		t.Errorf("unexpected broker url: %s", got)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-number")
	if got := getEnvAsInt("HTTP_PORT", 8000); got != 8000 {
		t.Errorf("expected fallback on unparseable int, got %d", got)
	}

	t.Setenv("SMOKE_WARNING", "450.5")
	if got := getEnvAsFloat("SMOKE_WARNING", 300); got != 450.5 {
		t.Errorf("expected parsed float, got %v", got)
	}
}
