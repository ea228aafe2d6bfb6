package listeners

import (
	"VoiceBank/internal/models"
	"VoiceBank/pkg/config"
	"VoiceBank/pkg/logger"
	"VoiceBank/pkg/notification"
	"VoiceBank/pkg/util"

	"go.uber.org/zap"
)

func InitProfileListeners() {
	// register created listener - Send Welcome Email
	util.Sig().Connect(models.SigProfileCreate, func(sender any, params ...any) {
		profile, ok := sender.(*models.UserProfile)
		if !ok || profile.Email == "" {
			return
		}
		if !config.GlobalConfig.MailEnabled {
			return
		}

		go func() {
			err := notification.NewMailNotification(config.GlobalConfig.Mail).SendWelcomeEmail(
				profile.Email,
				profile.FullName,
			)
			if err != nil {
				logger.Warn("send welcome mail failed", zap.Error(err))
			}
		}()
	})
}
