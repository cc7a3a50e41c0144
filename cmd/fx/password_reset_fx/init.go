package password_reset_fx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Pabby01/studIQ-sub001/internal/config"
	"github.com/Pabby01/studIQ-sub001/internal/repositories"
	"github.com/Pabby01/studIQ-sub001/internal/services"
	mem "github.com/Pabby01/studIQ-sub001/pkg/memcache"
)

var Module = fx.Options(
	fx.Provide(services.NewRateLimiter),
	fx.Provide(providePasswordResetService),
	fx.Provide(provideSweeper),
	fx.Invoke(func(*services.Sweeper) {}),
)

func providePasswordResetService(
	lc fx.Lifecycle,
	cfg config.Config,
	accountRepo repositories.AccountRepository,
	tokenRepo repositories.ResetTokenRepository,
	limiter services.RateLimiterInterface,
	mail services.IMailService,
	log *zap.Logger,
) services.PasswordResetServiceInterface {
	resetService := services.NewPasswordResetService(accountRepo, tokenRepo, limiter, mail, services.PasswordResetPolicy{
		Window:             cfg.RateLimit.Window,
		EmailMax:           cfg.RateLimit.EmailMax,
		OriginEmailMax:     cfg.RateLimit.OriginEmailMax,
		ConfirmMax:         cfg.RateLimit.ConfirmMax,
		TokenTTL:           cfg.Reset.TokenTTL,
		StepTimeout:        cfg.Reset.StepTimeout,
		MinResponseTime:    cfg.Reset.MinResponseTime,
		SurfaceStoreErrors: cfg.Reset.SurfaceStoreErrors,
	}, log)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return resetService.Drain(ctx)
		},
	})
	return resetService
}

func provideSweeper(
	lc fx.Lifecycle,
	cfg config.Config,
	resetService services.PasswordResetServiceInterface,
	store mem.RateLimitStore,
	log *zap.Logger,
) *services.Sweeper {
	sweeper := services.NewSweeper(resetService, store, cfg.Reset.SweepInterval, log)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sweeper.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return sweeper.Stop(ctx)
		},
	})
	return sweeper
}
