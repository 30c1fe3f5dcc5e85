// Package waweb connects a personal WhatsApp account (WhatsApp Web
// multi-device) to the assistant through whatsmeow.
package waweb

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	salonevents "github.com/wolfman30/salon-whatsapp-assistant/internal/events"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// ChannelWhatsAppWeb marks turns that arrived through the bridge.
const ChannelWhatsAppWeb = "whatsapp_web"

type messageSender interface {
	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
}

// Bridge turns whatsmeow message events into queued conversation turns and
// sends replies back over the same session.
type Bridge struct {
	client    messageSender
	publisher conversation.Enqueuer
	dedupe    salonevents.Dedupe
	logger    *logging.Logger
	timeout   time.Duration
}

// NewBridge wires a connected whatsmeow client to the turn publisher. dedupe may be nil.
func NewBridge(client messageSender, publisher conversation.Enqueuer, dedupe salonevents.Dedupe, logger *logging.Logger) *Bridge {
	if client == nil {
		panic("waweb: client cannot be nil")
	}
	if publisher == nil {
		panic("waweb: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Bridge{client: client, publisher: publisher, dedupe: dedupe, logger: logger, timeout: 5 * time.Second}
}

var _ conversation.ReplyMessenger = (*Bridge)(nil)

// HandleEvent is registered with client.AddEventHandler.
func (b *Bridge) HandleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Message:
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := b.handleMessage(ctx, v); err != nil {
			b.logger.Error("failed to queue whatsapp web message", "error", err, "message_id", string(v.Info.ID))
		}
	case *events.Connected:
		b.logger.Info("whatsapp web connected")
	case *events.LoggedOut:
		b.logger.Warn("whatsapp web session logged out; scan a new QR code", "reason", int(v.Reason))
	}
}

func (b *Bridge) handleMessage(ctx context.Context, msg *events.Message) error {
	if msg == nil || msg.Info.IsFromMe || msg.Info.IsGroup || msg.Info.Chat.Server == types.BroadcastServer {
		return nil
	}
	text := messageText(msg.Message)
	customer := msg.Info.Sender.User
	messageID := string(msg.Info.ID)
	if text == "" || customer == "" {
		return nil
	}

	if b.dedupe != nil && messageID != "" {
		first, err := b.dedupe.Claim(ctx, ChannelWhatsAppWeb, messageID)
		if err != nil {
			b.logger.Warn("dedupe unavailable; processing anyway", "error", err, "message_id", messageID)
		} else if !first {
			return nil
		}
	}

	in := conversation.Inbound{
		CustomerID: customer,
		Phone:      customer,
		Name:       msg.Info.PushName,
		Text:       text,
		MessageID:  messageID,
		Channel:    ChannelWhatsAppWeb,
		ReceivedAt: msg.Info.Timestamp,
	}
	jobID, err := b.publisher.EnqueueMessage(ctx, in, conversation.WithJobID(messageID), conversation.WithoutJobTracking())
	if err != nil {
		return err
	}
	b.logger.Info("whatsapp web turn queued", "customer_id", customer, "job_id", jobID)
	return nil
}

func messageText(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	if text := m.GetConversation(); text != "" {
		return strings.TrimSpace(text)
	}
	if ext := m.GetExtendedTextMessage(); ext != nil {
		return strings.TrimSpace(ext.GetText())
	}
	if btn := m.GetButtonsResponseMessage(); btn != nil {
		return strings.TrimSpace(btn.GetSelectedDisplayText())
	}
	return ""
}

// SendReply sends a plain text message to the customer's personal chat.
func (b *Bridge) SendReply(ctx context.Context, reply conversation.OutboundReply) error {
	to := strings.TrimPrefix(strings.TrimSpace(reply.To), "+")
	if to == "" {
		to = reply.CustomerID
	}
	if to == "" {
		return errors.New("waweb: recipient required")
	}
	if strings.TrimSpace(reply.Body) == "" {
		return errors.New("waweb: body required")
	}
	resp, err := b.client.SendMessage(ctx, types.NewJID(to, types.DefaultUserServer), &waE2E.Message{
		Conversation: proto.String(reply.Body),
	})
	if err != nil {
		return err
	}
	if reply.Metadata != nil {
		reply.Metadata["provider_message_id"] = string(resp.ID)
	}
	b.logger.Info("whatsapp web reply sent", "customer_id", reply.CustomerID)
	return nil
}
