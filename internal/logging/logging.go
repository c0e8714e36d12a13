// SPDX-License-Identifier: EPL-2.0

// Package logging builds the process zap logger and adapts it to fx.
package logging

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ik5/audmix/internal/config"
)

// Module provides *zap.Logger built from the configured level.
var Module = fx.Module("logging",
	fx.Provide(NewZapLogger),
)

// New builds a logger for level. "debug" selects the development encoder,
// every other level logs JSON.
func New(level string) (*zap.Logger, error) {
	var zapConfig zap.Config
	switch level {
	case "debug":
		zapConfig = zap.NewDevelopmentConfig()
	case "warn":
		zapConfig = zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapConfig = zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapConfig = zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	// stdout carries audio when rendering to a pipe
	zapConfig.OutputPaths = []string{"stderr"}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}
	return logger, nil
}

// NewZapLoggerParams holds dependencies for NewZapLogger.
type NewZapLoggerParams struct {
	fx.In
	Cfg *config.Config
	LC  fx.Lifecycle
}

// NewZapLogger builds the logger and syncs it when the app stops.
func NewZapLogger(params NewZapLoggerParams) (*zap.Logger, error) {
	logger, err := New(params.Cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	params.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// stderr sync fails with EINVAL on some terminals
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}
