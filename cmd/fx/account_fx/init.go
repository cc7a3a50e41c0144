package account_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Pabby01/studIQ-sub001/internal/config"
	"github.com/Pabby01/studIQ-sub001/internal/repositories"
	"github.com/Pabby01/studIQ-sub001/internal/services"
)

var Module = fx.Provide(
	provideAccountService, provideAccountRepo, provideResetTokenRepo)

func provideAccountService(cfg config.Config, accountRepo repositories.AccountRepository, log *zap.Logger) services.AccountServiceInterface {
	return services.NewAccountService(accountRepo, []byte(cfg.JWT.Secret), cfg.JWT.TTL, cfg.Account.AdminEmails, log)
}

func provideAccountRepo(db *gorm.DB) repositories.AccountRepository {
	return repositories.NewAccountRepository(db)
}

func provideResetTokenRepo(db *gorm.DB) repositories.ResetTokenRepository {
	return repositories.NewResetTokenRepository(db)
}
