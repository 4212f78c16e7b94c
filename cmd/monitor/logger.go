package main

import (
	"github.com/hutanwatch/forest-monitor/internal/config"
	"github.com/hutanwatch/forest-monitor/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
