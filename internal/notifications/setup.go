package notifications

import (
	"context"

	"github.com/mercadito-pesca/mercadito-backend/pkg/config"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

// NotifiersFromConfig builds the channels enabled in cfg. With no channel
// configured the dispatcher still runs and every job reports nothing sent.
func NotifiersFromConfig(cfg *config.Config, logg *logger.Logger) ([]Notifier, error) {
	var notifiers []Notifier
	if cfg.SMTP.Enabled() {
		email, err := NewEmailNotifier(cfg.SMTP, logg)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, email)
	}
	if cfg.Telegram.Enabled() {
		telegram, err := NewTelegramNotifier(cfg.Telegram, nil, logg)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, telegram)
	}
	if len(notifiers) == 0 && logg != nil {
		logg.Warn(context.Background(), "notifications.no_channels_configured")
	}
	return notifiers, nil
}
