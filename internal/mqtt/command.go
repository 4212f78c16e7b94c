package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// CommandSetSampleInterval asks a sensor to change its publish interval.
const CommandSetSampleInterval = "SET_SAMPLE_INTERVAL"

// Command is the wire shape accepted on a sensor's command topic.
type Command struct {
	Command string `json:"command"`
	Payload int    `json:"payload"`
}

// CommandPublisher sends per-sensor commands on sensors/command/{sensor_id}.
// Commands are consumed by the sensor fleet, not by the ingestion core.
type CommandPublisher struct {
	conn   *Connection
	prefix string
	logger *zap.Logger
}

// NewCommandPublisher creates a publisher rooted at the command topic prefix.
func NewCommandPublisher(conn *Connection, prefix string, logger *zap.Logger) *CommandPublisher {
	return &CommandPublisher{conn: conn, prefix: prefix, logger: logger}
}

// SetSampleInterval publishes a SET_SAMPLE_INTERVAL command for one sensor.
func (p *CommandPublisher) SetSampleInterval(ctx context.Context, sensorID string, seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("sample interval must be positive, got %d", seconds)
	}

	body, err := json.Marshal(Command{Command: CommandSetSampleInterval, Payload: seconds})
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", p.prefix, sensorID)
	if err := p.conn.Publish(ctx, topic, 1, body); err != nil {
		return err
	}

	p.logger.Info("sample interval command published",
		zap.String("sensor_id", sensorID),
		zap.Int("seconds", seconds),
	)
	return nil
}
