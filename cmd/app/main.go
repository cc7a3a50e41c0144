package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Pabby01/studIQ-sub001/cmd/fx/account_fx"
	"github.com/Pabby01/studIQ-sub001/cmd/fx/config_fx"
	"github.com/Pabby01/studIQ-sub001/cmd/fx/controllers_fx"
	"github.com/Pabby01/studIQ-sub001/cmd/fx/db_fx"
	"github.com/Pabby01/studIQ-sub001/cmd/fx/logger_fx"
	"github.com/Pabby01/studIQ-sub001/cmd/fx/mail_fx"
	"github.com/Pabby01/studIQ-sub001/cmd/fx/memcache_fx"
	"github.com/Pabby01/studIQ-sub001/cmd/fx/password_reset_fx"
	"github.com/Pabby01/studIQ-sub001/cmd/fx/quiz_fx"
	"github.com/Pabby01/studIQ-sub001/internal/api"
	"github.com/Pabby01/studIQ-sub001/internal/api/controllers"
	"github.com/Pabby01/studIQ-sub001/internal/config"
)

func main() {
	app := fx.New(
		config_fx.Module,
		logger_fx.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		db_fx.Module,
		memcache_fx.Module,
		mail_fx.Module,
		account_fx.Module,
		password_reset_fx.Module,
		quiz_fx.Module,
		controllers_fx.Module,

		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() {
				log.Info("starting HTTP server", zap.String("addr", srv.Addr))
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("HTTP server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}

func ProvideRouter(
	cfg config.Config,
	log *zap.Logger,
	accountController *controllers.AccountController,
	resetController *controllers.PasswordResetController,
	quizController *controllers.QuizController,
	healthController *controllers.HealthController) *gin.Engine {

	return api.NewRouter(api.RouterParams{
		JWTSecret:     []byte(cfg.JWT.Secret),
		Production:    cfg.IsProduction(),
		Log:           log,
		Account:       accountController,
		PasswordReset: resetController,
		Quiz:          quizController,
		Health:        healthController,
	})
}
