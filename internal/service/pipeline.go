package service

import (
	"context"
	"time"

	"github.com/hutanwatch/forest-monitor/internal/classifier"
	"github.com/hutanwatch/forest-monitor/internal/db"
	"github.com/hutanwatch/forest-monitor/internal/hub"
	"github.com/hutanwatch/forest-monitor/internal/livestate"
	"github.com/hutanwatch/forest-monitor/internal/logging"
	"github.com/hutanwatch/forest-monitor/internal/telemetry"
	"go.uber.org/zap"
)

// Gateway is the persistence collaborator: registration of sensor nodes and
// append-only reading writes. The pipeline only depends on this interface,
// never on the storage engine.
type Gateway interface {
	EnsureSensorNode(ctx context.Context, node *db.SensorNode) (bool, error)
	InsertReading(ctx context.Context, reading *db.TelemetryReading) error
}

// Broadcaster receives the event produced for each accepted message.
type Broadcaster interface {
	Broadcast(event hub.Event)
}

// Pipeline turns one decoded telemetry message into persisted state, updated
// live state, and a broadcast event. Stage failures are isolated: a
// persistence error never stops the live table update, classification or
// broadcast, so live status keeps flowing through a storage outage.
type Pipeline struct {
	gateway        Gateway
	table          *livestate.Table
	classifier     *classifier.Classifier
	broadcaster    Broadcaster
	persistTimeout time.Duration
	logger         *zap.Logger
}

// NewPipeline wires the ingestion pipeline.
func NewPipeline(
	gateway Gateway,
	table *livestate.Table,
	cls *classifier.Classifier,
	broadcaster Broadcaster,
	persistTimeout time.Duration,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		gateway:        gateway,
		table:          table,
		classifier:     cls,
		broadcaster:    broadcaster,
		persistTimeout: persistTimeout,
		logger:         logger,
	}
}

// Process handles one raw payload from the subscription loop. Invalid
// messages are dropped with a diagnostic and never reach storage or the
// live table.
func (p *Pipeline) Process(ctx context.Context, payload []byte) {
	msg, err := telemetry.Decode(payload)
	if err != nil {
		p.logger.Warn("dropping undecodable message", zap.Error(err), zap.Int("body_size", len(payload)))
		return
	}

	if err := msg.Validate(); err != nil {
		p.logger.Warn("dropping invalid message", zap.Error(err), zap.String("sensor_id", msg.SensorID))
		return
	}

	msgLogger := logging.WithSensorID(p.logger, msg.SensorID)
	msgLogger.Debug("processing message", zap.String("sensor_type", msg.Type()))

	// Durable write first, but its failure must not break the live path.
	if err := p.persist(ctx, msg); err != nil {
		msgLogger.Error("persistence failed, continuing with live state", zap.Error(err))
	}

	p.table.Put(msg)

	assessment := p.classifier.Assess(p.table.Snapshot())
	p.broadcaster.Broadcast(hub.NewTelemetryEvent(msg, assessment))

	msgLogger.Debug("message processed", zap.String("area_status", string(assessment.Status)))
}

// AreaStatus classifies the current live state for the pull-style query.
func (p *Pipeline) AreaStatus() classifier.Assessment {
	return p.classifier.Assess(p.table.Snapshot())
}

func (p *Pipeline) persist(ctx context.Context, msg telemetry.Message) error {
	ctx, cancel := context.WithTimeout(ctx, p.persistTimeout)
	defer cancel()

	node := &db.SensorNode{
		SensorID:  msg.SensorID,
		Location:  msg.Location,
		FirstSeen: time.Now().UTC(),
	}
	created, err := p.gateway.EnsureSensorNode(ctx, node)
	if err != nil {
		return err
	}
	if created {
		p.logger.Info("sensor registered",
			zap.String("sensor_id", msg.SensorID),
			zap.String("location", msg.Location),
		)
	}

	reading := &db.TelemetryReading{
		SensorID:    msg.SensorID,
		SensorType:  msg.Type(),
		Timestamp:   msg.Timestamp.Time,
		Temperature: msg.Data.Temperature,
		Humidity:    msg.Data.Humidity,
		Smoke:       msg.Data.Smoke,
		Status:      msg.ReportedStatus(),
	}
	return p.gateway.InsertReading(ctx, reading)
}
