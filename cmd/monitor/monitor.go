package main

import (
	"context"
	"net/http"

	"github.com/hutanwatch/forest-monitor/internal/api"
	"github.com/hutanwatch/forest-monitor/internal/classifier"
	"github.com/hutanwatch/forest-monitor/internal/config"
	"github.com/hutanwatch/forest-monitor/internal/db"
	"github.com/hutanwatch/forest-monitor/internal/hub"
	"github.com/hutanwatch/forest-monitor/internal/livestate"
	"github.com/hutanwatch/forest-monitor/internal/mqtt"
	"github.com/hutanwatch/forest-monitor/internal/repository"
	"github.com/hutanwatch/forest-monitor/internal/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideDBPool creates the PostgreSQL connection pool.
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg)
}

// ProvideRepository creates the durable store gateway.
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideLatestTable creates the in-memory latest-reading table.
func ProvideLatestTable() *livestate.Table {
	return livestate.NewTable()
}

// ProvideClassifier creates the area classifier with configured smoke thresholds.
func ProvideClassifier(cfg *config.Config) *classifier.Classifier {
	return classifier.New(cfg.Classifier.SmokeWarning, cfg.Classifier.SmokeDanger)
}

// ProvideObserverRegistry creates the broadcast registry for live observers.
func ProvideObserverRegistry(cfg *config.Config, logger *zap.Logger) *hub.Registry {
	return hub.NewRegistry(cfg.Pipeline.BroadcastBuffer, logger)
}

// ProvideMQTTConnection creates the shared broker connection.
func ProvideMQTTConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mqtt.Connection, error) {
	return mqtt.NewConnection(lc, logger, cfg)
}

// ProvideCommandPublisher creates the publisher for sensor commands.
func ProvideCommandPublisher(conn *mqtt.Connection, cfg *config.Config, logger *zap.Logger) *mqtt.CommandPublisher {
	return mqtt.NewCommandPublisher(conn, cfg.MQTT.CommandPrefix, logger)
}

// ProvidePipeline creates the ingest pipeline.
func ProvidePipeline(
	repo *repository.Repository,
	table *livestate.Table,
	cls *classifier.Classifier,
	registry *hub.Registry,
	cfg *config.Config,
	logger *zap.Logger,
) *service.Pipeline {
	return service.NewPipeline(repo, table, cls, registry, cfg.Pipeline.PersistTimeout, logger)
}

// ProvideAPIHandler creates the HTTP and WebSocket handler.
func ProvideAPIHandler(
	repo *repository.Repository,
	pipeline *service.Pipeline,
	commands *mqtt.CommandPublisher,
	registry *hub.Registry,
	cfg *config.Config,
	logger *zap.Logger,
) *api.Handler {
	return api.NewHandler(repo, pipeline, commands, registry, cfg.Pipeline.BroadcastBuffer, logger)
}

// ProvideHTTPServer creates the API server bound to the configured port.
func ProvideHTTPServer(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config, handler *api.Handler) *http.Server {
	return api.NewServer(lc, logger, cfg.HTTPPort, handler)
}

// startMonitor wires the telemetry subscription and the broadcast loop into
// the application lifecycle. The HTTP server parameter forces its
// construction; its own hooks handle start and stop.
func startMonitor(
	lc fx.Lifecycle,
	logger *zap.Logger,
	cfg *config.Config,
	conn *mqtt.Connection,
	pipeline *service.Pipeline,
	registry *hub.Registry,
	_ *http.Server,
) {
	runCtx, cancel := context.WithCancel(context.Background())
	subscriber := mqtt.NewSubscriber(conn, cfg.MQTT.TelemetryTopic, logger, pipeline.Process)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go registry.Run(runCtx)
			if err := subscriber.Start(); err != nil {
				cancel()
				return err
			}
			logger.Info("monitor started",
				zap.String("telemetry_topic", cfg.MQTT.TelemetryTopic),
				zap.Int("http_port", cfg.HTTPPort))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := subscriber.Stop()
			cancel()
			return err
		},
	})
}
