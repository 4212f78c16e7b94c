package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Reading holds the measured quantities of one message. Each field is
// optional; a sensor publishes only the quantities it measures. Legacy
// combined-reading messages carry all three.
type Reading struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Smoke       *float64 `json:"smoke,omitempty"`
}

// Empty reports whether no quantity is present.
func (r Reading) Empty() bool {
	return r.Temperature == nil && r.Humidity == nil && r.Smoke == nil
}

// Message is the wire-format unit published on the telemetry topic.
type Message struct {
	SensorID   string    `json:"sensor_id"`
	SensorType string    `json:"sensor_type,omitempty"`
	Location   string    `json:"location"`
	Timestamp  Timestamp `json:"timestamp"`
	Data       Reading   `json:"data"`
	Status     string    `json:"status,omitempty"`
}

// Decode parses a raw payload into a Message.
func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to unmarshal telemetry message: %w", err)
	}
	return msg, nil
}

// Validate checks the fields every accepted message must carry. A message
// failing validation is dropped by the pipeline.
func (m Message) Validate() error {
	if strings.TrimSpace(m.SensorID) == "" {
		return fmt.Errorf("missing sensor_id")
	}
	if strings.TrimSpace(m.Location) == "" {
		return fmt.Errorf("missing location")
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("missing or unparseable timestamp")
	}
	if m.Data.Empty() {
		return fmt.Errorf("empty data map")
	}
	return nil
}

// Type returns the sensor type, defaulting to "unknown" for legacy
// combined-reading messages that omit it.
func (m Message) Type() string {
	if m.SensorType == "" {
		return "unknown"
	}
	return m.SensorType
}

// ReportedStatus returns the sensor's own classification, defaulting to
// "unknown". It is informational only; the area status is authoritative.
func (m Message) ReportedStatus() string {
	if m.Status == "" {
		return "unknown"
	}
	return m.Status
}

// Timestamp is a UTC instant that decodes from the formats sensors actually
// send: RFC3339 (with or without fractional seconds) and the original
// firmware's second-precision layout without a zone designator.
type Timestamp struct {
	time.Time
}

var timestampFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05", // zone-less firmware format, implied UTC
}

// ParseTimestamp attempts each known sensor timestamp format in turn.
func ParseTimestamp(value string) (Timestamp, error) {
	var lastErr error
	for _, format := range timestampFormats {
		t, err := time.Parse(format, value)
		if err == nil {
			return Timestamp{t.UTC()}, nil
		}
		lastErr = err
	}
	return Timestamp{}, fmt.Errorf("failed to parse timestamp %q: %w", value, lastErr)
}

// NewTimestamp wraps a time.Time as a message timestamp.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC()}
}

// UnmarshalJSON accepts any of the known sensor formats. An unparseable
// value yields the zero Timestamp rather than a decode error, so validation
// can report it as a dropped-message diagnostic instead of a JSON fault.
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		*ts = Timestamp{}
		return nil
	}
	*ts = parsed
	return nil
}

// MarshalJSON emits the canonical second-precision UTC format used on the
// wire by the sensor fleet.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.UTC().Format("2006-01-02T15:04:05Z"))
}
