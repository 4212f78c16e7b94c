// Command sensor simulates one forest sensor node. It publishes combined
// temperature, humidity and smoke readings on the telemetry topic at a fixed
// interval and listens on its command topic for interval changes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/hutanwatch/forest-monitor/internal/logging"
	"github.com/hutanwatch/forest-monitor/internal/mqtt"
	"github.com/hutanwatch/forest-monitor/internal/telemetry"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type sensorConfig struct {
	SensorID       string
	Location       string
	BrokerHost     string
	BrokerPort     int
	TelemetryTopic string
	CommandPrefix  string
	SampleInterval int
}

func loadSensorConfig() sensorConfig {
	return sensorConfig{
		SensorID:       getEnv("SENSOR_ID", "sensor-area-01"),
		Location:       getEnv("LOCATION", "Sektor 1A"),
		BrokerHost:     getEnv("MQTT_BROKER_HOST", "localhost"),
		BrokerPort:     getEnvAsInt("MQTT_BROKER_PORT", 1883),
		TelemetryTopic: getEnv("MQTT_TELEMETRY_TOPIC", "sensors/telemetry"),
		CommandPrefix:  getEnv("MQTT_COMMAND_PREFIX", "sensors/command"),
		SampleInterval: getEnvAsInt("SAMPLE_INTERVAL", 3),
	}
}

func main() {
	for _, envPath := range []string{".env", "../../.env"} {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err == nil {
				absPath, _ := filepath.Abs(envPath)
				fmt.Printf("Loaded environment from: %s\n", absPath)
				break
			}
		}
	}

	cfg := loadSensorConfig()

	logger, err := logging.NewLogger("sensor-node")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger = logging.WithSensorID(logger, cfg.SensorID)

	// Interval is read by the publish loop and written by the command
	// handler, which runs on the paho callback goroutine.
	var interval atomic.Int64
	interval.Store(int64(cfg.SampleInterval))

	commandTopic := fmt.Sprintf("%s/%s", cfg.CommandPrefix, cfg.SensorID)

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.BrokerHost, cfg.BrokerPort)).
		SetClientID(cfg.SensorID).
		SetKeepAlive(60 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(time.Minute)

	opts.SetOnConnectHandler(func(client paho.Client) {
		logger.Info("connected to broker", zap.String("command_topic", commandTopic))
		token := client.Subscribe(commandTopic, 1, func(_ paho.Client, msg paho.Message) {
			handleCommand(logger, &interval, msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			logger.Error("command subscription failed", zap.Error(token.Error()))
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("broker connection lost", zap.Error(err))
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatal("failed to connect to broker", zap.Error(token.Error()))
	}
	defer client.Disconnect(250)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("sensor started",
		zap.String("location", cfg.Location),
		zap.Int("sample_interval_seconds", cfg.SampleInterval))

	for {
		wait := time.Duration(interval.Load()) * time.Second
		select {
		case <-ctx.Done():
			logger.Info("sensor stopping")
			return
		case <-time.After(wait):
		}

		sample := generateSample()
		msg := telemetry.Message{
			SensorID:   cfg.SensorID,
			SensorType: "combined",
			Location:   cfg.Location,
			Timestamp:  telemetry.NewTimestamp(time.Now()),
			Data: telemetry.Reading{
				Temperature: &sample.Temperature,
				Humidity:    &sample.Humidity,
				Smoke:       &sample.Smoke,
			},
			Status: sample.Status,
		}

		body, err := json.Marshal(msg)
		if err != nil {
			logger.Error("failed to marshal reading", zap.Error(err))
			continue
		}

		if token := client.Publish(cfg.TelemetryTopic, 1, false, body); token.Wait() && token.Error() != nil {
			logger.Warn("publish failed", zap.Error(token.Error()))
			continue
		}

		logger.Info("reading published",
			zap.Float64("temperature", sample.Temperature),
			zap.Float64("humidity", sample.Humidity),
			zap.Float64("smoke", sample.Smoke),
			zap.String("status", sample.Status))
	}
}

func handleCommand(logger *zap.Logger, interval *atomic.Int64, payload []byte) {
	var cmd mqtt.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		logger.Warn("unparseable command", zap.Error(err))
		return
	}

	switch cmd.Command {
	case mqtt.CommandSetSampleInterval:
		if cmd.Payload <= 0 {
			logger.Warn("ignoring non-positive sample interval", zap.Int("payload", cmd.Payload))
			return
		}
		interval.Store(int64(cmd.Payload))
		logger.Info("sample interval updated", zap.Int("seconds", cmd.Payload))
	default:
		logger.Warn("unknown command", zap.String("command", cmd.Command))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
