package logger_fx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Pabby01/studIQ-sub001/internal/config"
	"github.com/Pabby01/studIQ-sub001/pkg/logger"
)

var Module = fx.Provide(provideLogger)

func provideLogger(lc fx.Lifecycle, cfg config.Config) *zap.Logger {
	log := logger.Init(cfg.Server.Environment, cfg.Log.Level, cfg.Log.Format)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Sync()
			return nil
		},
	})

	return log
}
