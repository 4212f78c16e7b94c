package telemetry

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeFullMessage(t *testing.T) {
	payload := []byte(`{
		"sensor_id": "sensor-area-01",
		"sensor_type": "combined",
		"location": "Sektor 1A",
		"timestamp": "2026-01-01T10:00:00Z",
		"data": {"temperature": 25.5, "humidity": 55.0, "smoke": 120.0},
		"status": "normal"
	}`)

	msg, err := Decode(payload)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("expected valid message, got: %v", err)
	}

	if msg.SensorID != "sensor-area-01" {
		t.Errorf("unexpected sensor_id: %s", msg.SensorID)
	}
	if *msg.Data.Temperature != 25.5 || *msg.Data.Humidity != 55.0 || *msg.Data.Smoke != 120.0 {
		t.Errorf("unexpected data: %+v", msg.Data)
	}
	want := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	if !msg.Timestamp.Equal(want) {
		t.Errorf("expected %v, got %v", want, msg.Timestamp.Time)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"sensor_id": `)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestTimestampFormats(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{"rfc3339", "2026-01-01T10:00:00Z", time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"rfc3339 with offset", "2026-01-01T12:00:00+02:00", time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"rfc3339 fractional", "2026-01-01T10:00:00.250Z", time.Date(2026, 1, 1, 10, 0, 0, 250000000, time.UTC)},
		{"zoneless firmware format", "2026-01-01T10:00:00", time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := ParseTimestamp(tt.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ts.Time)
			}
		})
	}
}

func TestUnparseableTimestampYieldsZero(t *testing.T) {
	var msg Message
	payload := []byte(`{"sensor_id": "s1", "location": "x", "timestamp": "yesterday", "data": {"smoke": 1}}`)
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decode should not fail on a bad timestamp: %v", err)
	}
	if !msg.Timestamp.IsZero() {
		t.Errorf("expected zero timestamp, got %v", msg.Timestamp.Time)
	}
	if err := msg.Validate(); err == nil {
		t.Error("expected validation to reject the zero timestamp")
	}
}

func TestTimestampMarshalFormat(t *testing.T) {
	ts := NewTimestamp(time.Date(2026, 1, 1, 10, 0, 0, 123456789, time.UTC))
	out, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `"2026-01-01T10:00:00Z"` {
		t.Errorf("unexpected wire format: %s", out)
	}
}

func TestValidate(t *testing.T) {
	smoke := 120.0
	valid := Message{
		SensorID:  "sensor-1",
		Location:  "Sektor 1A",
		Timestamp: NewTimestamp(time.Now()),
		Data:      Reading{Smoke: &smoke},
	}

	tests := []struct {
		name   string
		mutate func(m Message) Message
		wantOK bool
	}{
		{"valid", func(m Message) Message { return m }, true},
		{"missing sensor_id", func(m Message) Message { m.SensorID = " "; return m }, false},
		{"missing location", func(m Message) Message { m.Location = ""; return m }, false},
		{"zero timestamp", func(m Message) Message { m.Timestamp = Timestamp{}; return m }, false},
		{"empty data", func(m Message) Message { m.Data = Reading{}; return m }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(valid).Validate()
			if tt.wantOK && err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
			if !tt.wantOK && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	var msg Message
	if msg.Type() != "unknown" {
		t.Errorf("expected default sensor type unknown, got %s", msg.Type())
	}
	if msg.ReportedStatus() != "unknown" {
		t.Errorf("expected default status unknown, got %s", msg.ReportedStatus())
	}

	msg.SensorType = "combined"
	msg.Status = "normal"
	if msg.Type() != "combined" || msg.ReportedStatus() != "normal" {
		t.Errorf("explicit fields should pass through, got %s/%s", msg.Type(), msg.ReportedStatus())
	}
}
