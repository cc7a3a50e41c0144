package controllers_fx

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/Pabby01/studIQ-sub001/internal/api/controllers"
	"github.com/Pabby01/studIQ-sub001/internal/infra"
)

var Module = fx.Options(
	fx.Provide(controllers.NewAccountController),
	fx.Provide(controllers.NewPasswordResetController),
	fx.Provide(controllers.NewQuizController),
	fx.Provide(provideHealthController))

func provideHealthController(db *gorm.DB, client *redis.Client) *controllers.HealthController {
	checks := map[string]controllers.Pinger{
		"postgres": infra.PostgresPinger{DB: db},
	}
	if client != nil {
		checks["redis"] = infra.RedisPinger{Client: client}
	}
	return controllers.NewHealthController(checks)
}
