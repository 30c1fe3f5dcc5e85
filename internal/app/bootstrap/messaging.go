package bootstrap

import (
	appconfig "github.com/wolfman30/salon-whatsapp-assistant/internal/config"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/messaging"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// BuildOutboundMessenger creates the reply messenger for worker output. web is
// the live WhatsApp Web sender when this process owns the session, else nil.
// When no provider can be initialized the replies are logged instead.
func BuildOutboundMessenger(cfg *appconfig.Config, web conversation.ReplyMessenger, logger *logging.Logger) (conversation.ReplyMessenger, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return messaging.NewLogMessenger(logger), messaging.ProviderLog
	}

	messenger, provider, reason := messaging.BuildReplyMessenger(messaging.ProviderSelectionConfig{
		Preference:    cfg.ReplyProvider,
		GraphBaseURL:  cfg.WhatsAppGraphBaseURL,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		AccessToken:   cfg.WhatsAppAccessToken,
		Web:           web,
	}, logger)
	if messenger == nil {
		logger.Warn("outbound messenger unavailable; replies will only be logged",
			"preference", cfg.ReplyProvider,
			"reason", reason,
		)
		return messaging.NewLogMessenger(logger), messaging.ProviderLog
	}
	logger.Info("outbound messenger ready", "provider", provider)
	return messenger, provider
}
