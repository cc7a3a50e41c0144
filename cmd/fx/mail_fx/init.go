package mail_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Pabby01/studIQ-sub001/internal/config"
	"github.com/Pabby01/studIQ-sub001/internal/services"
)

var Module = fx.Provide(provideMailTransport, provideMailService)

func provideMailTransport(cfg config.Config) services.MailTransport {
	return services.NewSMTPTransport(services.SMTPConfig{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		Username:   cfg.SMTP.Username,
		Password:   cfg.SMTP.Password,
		From:       cfg.SMTP.From,
		FromName:   cfg.SMTP.FromName,
		UseSSL:     cfg.SMTP.UseSSL,
		RequireTLS: cfg.SMTP.RequireTLS,
	})
}

func provideMailService(cfg config.Config, transport services.MailTransport, log *zap.Logger) services.IMailService {
	if cfg.SMTP.Username == "" {
		log.Warn("SMTP_USERNAME is empty, sending without authentication", zap.String("host", cfg.SMTP.Host))
	}

	return services.NewMailService(services.MailServiceConfig{
		AppName:       cfg.SMTP.AppName,
		AppBaseURL:    cfg.SMTP.AppBaseURL,
		RetryAttempts: 3,
		RetryBase:     cfg.SMTP.RetryBase,
	}, transport, log)
}
