package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/hutanwatch/forest-monitor/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Pool is an alias for pgxpool.Pool.
type Pool = pgxpool.Pool

// NewPool creates the connection pool for the reading store. The pool is
// ping-checked on start so a broken DATABASE_URL fails the boot instead of
// surfacing later as per-message persistence errors.
func NewPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("reading store unreachable at %s (is postgres up and DATABASE_URL correct?): %w",
					redactURL(cfg.Database.URL), err)
			}
			logger.Info("reading store connected", zap.String("url", redactURL(cfg.Database.URL)))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pool.Close()
			logger.Info("reading store closed")
			return nil
		},
	})

	return pool, nil
}

// redactURL hides the credential section of a connection URL for logs.
func redactURL(raw string) string {
	scheme := strings.Index(raw, "://")
	at := strings.LastIndex(raw, "@")
	if scheme < 0 || at < scheme+3 {
		return raw
	}
	return raw[:scheme+3] + "***" + raw[at:]
}
