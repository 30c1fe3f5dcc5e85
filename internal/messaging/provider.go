package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

const (
	// ProviderAuto prefers the WhatsApp Web session when present, then the Cloud API.
	ProviderAuto = "auto"
	// ProviderCloud forces the Graph API sender.
	ProviderCloud = "whatsapp_cloud"
	// ProviderWeb forces the whatsmeow session sender.
	ProviderWeb = "whatsapp_web"
	// ProviderLog only logs replies; used by local runs without credentials.
	ProviderLog = "log"
)

// ProviderSelectionConfig captures what is needed to build outbound messengers.
type ProviderSelectionConfig struct {
	Preference    string
	GraphBaseURL  string
	PhoneNumberID string
	AccessToken   string
	// Web is a connected WhatsApp Web sender, when the process runs the bridge.
	Web conversation.ReplyMessenger
}

// BuildReplyMessenger instantiates a ReplyMessenger based on the preferred provider.
// It returns the messenger, the provider that was selected, and a reason when no provider could be initialized.
func BuildReplyMessenger(cfg ProviderSelectionConfig, logger *logging.Logger) (conversation.ReplyMessenger, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = ProviderAuto
	}
	if preference == ProviderLog {
		return NewLogMessenger(logger), ProviderLog, ""
	}

	var cloud conversation.ReplyMessenger
	var reasons []string
	if cfg.AccessToken != "" && cfg.PhoneNumberID != "" {
		cloud = NewGraphSender(cfg.GraphBaseURL, cfg.PhoneNumberID, cfg.AccessToken, logger)
	} else {
		if cfg.AccessToken == "" {
			reasons = append(reasons, "WHATSAPP_ACCESS_TOKEN missing")
		}
		if cfg.PhoneNumberID == "" {
			reasons = append(reasons, "WHATSAPP_PHONE_NUMBER_ID missing")
		}
	}

	switch preference {
	case ProviderCloud:
		if cloud != nil {
			return cloud, ProviderCloud, ""
		}
		return nil, "", strings.Join(reasons, ", ")
	case ProviderWeb:
		if cfg.Web != nil {
			return cfg.Web, ProviderWeb, ""
		}
		return nil, "", "whatsapp web session not connected"
	case ProviderAuto:
	default:
		return nil, "", fmt.Sprintf("unknown provider %q", preference)
	}

	if cfg.Web != nil && cloud != nil {
		return NewFailoverMessenger(cfg.Web, ProviderWeb, cloud, ProviderCloud, logger), ProviderWeb + "+" + ProviderCloud, ""
	}
	if cfg.Web != nil {
		return cfg.Web, ProviderWeb, ""
	}
	if cloud != nil {
		return cloud, ProviderCloud, ""
	}
	return nil, "", ProviderCloud + ": " + strings.Join(reasons, ", ")
}

// LogMessenger writes replies to the log instead of sending them.
type LogMessenger struct {
	logger *logging.Logger
}

func NewLogMessenger(logger *logging.Logger) *LogMessenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogMessenger{logger: logger}
}

var _ conversation.ReplyMessenger = (*LogMessenger)(nil)

func (l *LogMessenger) SendReply(_ context.Context, reply conversation.OutboundReply) error {
	outboundMessages.WithLabelValues(ProviderLog, "sent").Inc()
	l.logger.Info("reply (not delivered)", "customer_id", reply.CustomerID, "to", reply.To, "body", reply.Body)
	return nil
}
