package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/events"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

var webhookTracer = otel.Tracer("salon.internal.messaging.whatsapp")

const (
	// ChannelWhatsApp marks turns that arrived through the Cloud API webhook.
	ChannelWhatsApp = "whatsapp"
	dedupeProvider  = "whatsapp"
	maxWebhookBody  = 1 << 20
)

// WebhookHandler serves the WhatsApp Cloud API webhook.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	publisher   conversation.Enqueuer
	dedupe      events.Dedupe
	logger      *logging.Logger
	now         func() time.Time
}

// NewWebhookHandler builds the webhook handler. An empty appSecret disables
// signature checks; a nil dedupe accepts every delivery.
func NewWebhookHandler(verifyToken, appSecret string, publisher conversation.Enqueuer, dedupe events.Dedupe, logger *logging.Logger) *WebhookHandler {
	if publisher == nil {
		panic("messaging: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		publisher:   publisher,
		dedupe:      dedupe,
		logger:      logger,
		now:         time.Now,
	}
}

// Verify answers the GET subscription handshake.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || h.verifyToken == "" || q.Get("hub.verify_token") != h.verifyToken {
		h.logger.Warn("whatsapp webhook verification rejected", "mode", q.Get("hub.mode"))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// Receive handles POST deliveries: verify, parse, dedupe, enqueue.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "messaging.whatsapp.webhook")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}
	if h.appSecret != "" && !ValidateSignature(body, r.Header.Get("X-Hub-Signature-256"), h.appSecret) {
		h.logger.Warn("invalid whatsapp signature")
		inboundMessages.WithLabelValues(ChannelWhatsApp, "unauthorized").Inc()
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		span.RecordError(errors.New("invalid whatsapp signature"))
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Error("failed to parse whatsapp webhook", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}

	messages := payload.InboundMessages(h.now)
	span.SetAttributes(attribute.Int("salon.whatsapp.messages", len(messages)))

	for _, in := range messages {
		if err := h.accept(ctx, in); err != nil {
			span.RecordError(err)
			http.Error(w, "Failed to schedule reply", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) accept(ctx context.Context, in conversation.Inbound) error {
	if h.dedupe != nil && in.MessageID != "" {
		first, err := h.dedupe.Claim(ctx, dedupeProvider, in.MessageID)
		if err != nil {
			h.logger.Warn("dedupe unavailable; processing anyway", "error", err, "message_id", in.MessageID)
		} else if !first {
			h.logger.Info("duplicate whatsapp delivery skipped", "message_id", in.MessageID)
			inboundMessages.WithLabelValues(ChannelWhatsApp, "duplicate").Inc()
			return nil
		}
	}

	publishCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	jobID, err := h.publisher.EnqueueMessage(publishCtx, in, conversation.WithJobID(in.MessageID), conversation.WithoutJobTracking())
	if err != nil {
		h.logger.Error("failed to enqueue whatsapp turn", "error", err, "customer_id", in.CustomerID, "message_id", in.MessageID)
		inboundMessages.WithLabelValues(ChannelWhatsApp, "enqueue_failed").Inc()
		if h.dedupe != nil && in.MessageID != "" {
			if relErr := h.dedupe.Release(context.WithoutCancel(ctx), dedupeProvider, in.MessageID); relErr != nil {
				h.logger.Warn("failed to release dedupe claim", "error", relErr, "message_id", in.MessageID)
			}
		}
		return err
	}
	inboundMessages.WithLabelValues(ChannelWhatsApp, "enqueued").Inc()
	h.logger.Info("whatsapp turn enqueued", "customer_id", in.CustomerID, "job_id", jobID)
	return nil
}

// ValidateSignature checks the X-Hub-Signature-256 header ("sha256=<hex>")
// against an HMAC of the raw body.
func ValidateSignature(body []byte, header, appSecret string) bool {
	sig, ok := strings.CutPrefix(strings.TrimSpace(header), "sha256=")
	if !ok || sig == "" {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// WebhookPayload is the subset of the Cloud API notification we read.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []WebhookMessage `json:"messages"`
}

type WebhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Button *struct {
		Text string `json:"text"`
	} `json:"button,omitempty"`
	Interactive *struct {
		ButtonReply *struct {
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
}

// Body returns the customer-visible text of a message, or "" for media and
// unsupported types.
func (m WebhookMessage) Body() string {
	switch {
	case m.Text != nil:
		return strings.TrimSpace(m.Text.Body)
	case m.Button != nil:
		return strings.TrimSpace(m.Button.Text)
	case m.Interactive != nil && m.Interactive.ButtonReply != nil:
		return strings.TrimSpace(m.Interactive.ButtonReply.Title)
	case m.Interactive != nil && m.Interactive.ListReply != nil:
		return strings.TrimSpace(m.Interactive.ListReply.Title)
	}
	return ""
}

// InboundMessages flattens the payload into conversation turns. Status
// callbacks and non-text messages are dropped.
func (p WebhookPayload) InboundMessages(now func() time.Time) []conversation.Inbound {
	var out []conversation.Inbound
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				text := m.Body()
				customer := CustomerID(m.From)
				if text == "" || customer == "" {
					continue
				}
				out = append(out, conversation.Inbound{
					CustomerID: customer,
					Phone:      customer,
					Name:       names[m.From],
					Text:       text,
					MessageID:  m.ID,
					Channel:    ChannelWhatsApp,
					ReceivedAt: parseUnix(m.Timestamp, now),
				})
			}
		}
	}
	return out
}

func parseUnix(ts string, now func() time.Time) time.Time {
	if secs, err := strconv.ParseInt(ts, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return now().UTC()
}
