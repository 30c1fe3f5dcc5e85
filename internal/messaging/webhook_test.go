package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/events"
)

type stubEnqueuer struct {
	got  []conversation.Inbound
	err  error
	opts int
}

func (s *stubEnqueuer) EnqueueMessage(_ context.Context, in conversation.Inbound, opts ...conversation.PublishOption) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.got = append(s.got, in)
	s.opts = len(opts)
	return in.MessageID, nil
}

const textPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "1029384756",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "96522200000", "phone_number_id": "1122334455"},
        "contacts": [{"profile": {"name": "Sara"}, "wa_id": "96550001234"}],
        "messages": [{
          "from": "96550001234",
          "id": "wamid.HBgLOTY1NTAwMDEyMzQ",
          "timestamp": "1741600800",
          "type": "text",
          "text": {"body": " I want a French manicure "}
        }]
      }
    }]
  }]
}`

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhook_Verify(t *testing.T) {
	h := NewWebhookHandler("tok", "", &stubEnqueuer{}, nil, nil)

	rec := httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=12345", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())

	rec = httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhook_ReceiveEnqueuesTextMessage(t *testing.T) {
	enq := &stubEnqueuer{}
	h := NewWebhookHandler("tok", "secret", enq, events.NewMemoryDedupe(), nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(textPayload))
	req.Header.Set("X-Hub-Signature-256", sign(textPayload, "secret"))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, enq.got, 1)
	in := enq.got[0]
	assert.Equal(t, "96550001234", in.CustomerID)
	assert.Equal(t, "Sara", in.Name)
	assert.Equal(t, "I want a French manicure", in.Text)
	assert.Equal(t, ChannelWhatsApp, in.Channel)
	assert.Equal(t, time.Unix(1741600800, 0).UTC(), in.ReceivedAt)
	assert.Equal(t, 2, enq.opts)
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	enq := &stubEnqueuer{}
	h := NewWebhookHandler("tok", "secret", enq, nil, nil)

	for _, header := range []string{"", "sha256=deadbeef", sign(textPayload, "other"), "md5=abc"} {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(textPayload))
		req.Header.Set("X-Hub-Signature-256", header)
		rec := httptest.NewRecorder()
		h.Receive(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
	assert.Empty(t, enq.got)
}

func TestWebhook_DuplicateDeliverySkipped(t *testing.T) {
	enq := &stubEnqueuer{}
	h := NewWebhookHandler("tok", "", enq, events.NewMemoryDedupe(), nil)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(textPayload)))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Len(t, enq.got, 1)
}

func TestWebhook_EnqueueFailureReleasesClaim(t *testing.T) {
	enq := &stubEnqueuer{err: errors.New("queue down")}
	dedupe := events.NewMemoryDedupe()
	h := NewWebhookHandler("tok", "", enq, dedupe, nil)

	rec := httptest.NewRecorder()
	h.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(textPayload)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	enq.err = nil
	rec = httptest.NewRecorder()
	h.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(textPayload)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, enq.got, 1, "redelivery is processed after a failed enqueue")
}

func TestWebhook_BadJSON(t *testing.T) {
	h := NewWebhookHandler("tok", "", &stubEnqueuer{}, nil, nil)
	rec := httptest.NewRecorder()
	h.Receive(rec, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookPayload_InboundMessages(t *testing.T) {
	raw := `{"entry":[{"changes":[
	  {"field":"messages","value":{"messages":[
	    {"from":"96550001234","id":"a","type":"image"},
	    {"from":"96550001234","id":"b","type":"interactive","interactive":{"list_reply":{"title":"Blow Dry"}}}
	  ],"statuses":[{"id":"wamid.x","status":"read"}]}},
	  {"field":"account_update","value":{}}
	]}]}`
	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	now := func() time.Time { return time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC) }
	got := payload.InboundMessages(now)
	require.Len(t, got, 1)
	assert.Equal(t, "Blow Dry", got[0].Text)
	assert.Equal(t, "b", got[0].MessageID)
	assert.Equal(t, now(), got[0].ReceivedAt)
}

func TestPhoneHelpers(t *testing.T) {
	assert.Equal(t, "+96550001234", NormalizeE164(" +965 5000-1234 "))
	assert.Equal(t, "", NormalizeE164("n/a"))
	assert.Equal(t, "96550001234", CustomerID("+965 5000 1234"))
}
