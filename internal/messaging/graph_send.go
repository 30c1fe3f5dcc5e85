package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

var graphSendTracer = otel.Tracer("salon.internal.messaging.graph_send")

// maxTextLength is the Cloud API limit for a text message body.
const maxTextLength = 4096

// GraphSender posts text messages through the WhatsApp Cloud API.
type GraphSender struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	httpClient    *http.Client
	logger        *logging.Logger
	backoff       func(attempt int) time.Duration
}

// NewGraphSender builds a sender with sane defaults.
func NewGraphSender(baseURL, phoneNumberID, accessToken string, logger *logging.Logger) *GraphSender {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://graph.facebook.com/v20.0"
	}
	return &GraphSender{
		baseURL:       strings.TrimRight(baseURL, "/"),
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
		backoff: func(int) time.Duration {
			return time.Duration(200+rand.Intn(300)) * time.Millisecond
		},
	}
}

var _ conversation.ReplyMessenger = (*GraphSender)(nil)

type graphTextRequest struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

type graphSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// SendReply delivers the reply, splitting bodies over the Cloud API limit.
func (s *GraphSender) SendReply(ctx context.Context, msg conversation.OutboundReply) error {
	if s.accessToken == "" || s.phoneNumberID == "" {
		return errors.New("messaging: whatsapp credentials missing")
	}
	to := sanitizePhone(msg.To)
	if to == "" {
		return errors.New("messaging: to required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errors.New("messaging: body required")
	}

	ctx, span := graphSendTracer.Start(ctx, "messaging.whatsapp.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("salon.customer_id", msg.CustomerID),
		attribute.String("salon.to", to),
	)

	for _, part := range splitBody(msg.Body, maxTextLength) {
		id, err := s.sendText(ctx, to, part)
		if err != nil {
			outboundMessages.WithLabelValues("whatsapp_cloud", "failed").Inc()
			span.RecordError(err)
			return err
		}
		if msg.Metadata != nil && id != "" {
			msg.Metadata["provider_message_id"] = id
		}
	}
	outboundMessages.WithLabelValues("whatsapp_cloud", "sent").Inc()
	s.logger.Info("whatsapp reply sent", "customer_id", msg.CustomerID)
	return nil
}

func (s *GraphSender) sendText(ctx context.Context, to, body string) (string, error) {
	payload := graphTextRequest{MessagingProduct: "whatsapp", RecipientType: "individual", To: to, Type: "text"}
	payload.Text.Body = body
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("messaging: encode send: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
			resp.Body.Close()
			var parsed graphSendResponse
			_ = json.Unmarshal(raw, &parsed)
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if len(parsed.Messages) > 0 {
					return parsed.Messages[0].ID, nil
				}
				return "", nil
			}
			lastErr = fmt.Errorf("messaging: whatsapp send failed: %s", formatGraphError(resp.StatusCode, parsed, raw))
			// Don't retry non-rate-limit 4xx errors.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				break
			}
		}
		if attempt < 3 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.backoff(attempt)):
			}
		}
	}
	return "", lastErr
}

func formatGraphError(status int, parsed graphSendResponse, raw []byte) string {
	if parsed.Error != nil && parsed.Error.Message != "" {
		return fmt.Sprintf("status %d code %d: %s", status, parsed.Error.Code, parsed.Error.Message)
	}
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return fmt.Sprintf("status %d", status)
	}
	return fmt.Sprintf("status %d: %s", status, body)
}

// splitBody cuts text into chunks of at most limit runes, preferring line breaks.
func splitBody(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
