package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var assistantTracer = otel.Tracer("salon.internal.conversation.assistant")

// Inbound is one customer message as received from a channel.
type Inbound struct {
	CustomerID string    `json:"customer_id"`
	Phone      string    `json:"phone,omitempty"`
	Name       string    `json:"name,omitempty"`
	Text       string    `json:"text"`
	MessageID  string    `json:"message_id,omitempty"`
	Channel    string    `json:"channel,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// TurnResult is the reply and resulting state summary for one turn.
type TurnResult struct {
	CustomerID string `json:"customer_id"`
	Reply      string `json:"reply"`
	Phase      Phase  `json:"phase"`
	Action     Action `json:"action"`
	OrderID    string `json:"order_id,omitempty"`
	Language   string `json:"language"`
}

// Service handles a customer turn end to end.
type Service interface {
	HandleMessage(ctx context.Context, in Inbound) (TurnResult, error)
}

// Assistant drives a conversation turn: state, extraction, policy, booking
// and payment checks. Every failure becomes a localized reply.
type Assistant struct {
	states      StateStore
	history     HistoryStore
	policy      *Policy
	booker      *Orchestrator
	payments    *PaymentHandler
	transcripts TranscriptRecorder
	locks       *customerLocks
	now         func() time.Time
	logger      *logging.Logger
}

// AssistantOption customises an Assistant.
type AssistantOption func(*Assistant)

// WithTranscripts persists every turn.
func WithTranscripts(r TranscriptRecorder) AssistantOption {
	return func(a *Assistant) {
		a.transcripts = r
	}
}

// WithAssistantClock overrides the clock used for state timestamps.
func WithAssistantClock(now func() time.Time) AssistantOption {
	return func(a *Assistant) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAssistant wires the turn driver.
func NewAssistant(states StateStore, history HistoryStore, policy *Policy, booker *Orchestrator, payments *PaymentHandler, logger *logging.Logger, opts ...AssistantOption) *Assistant {
	if states == nil {
		panic("conversation: state store cannot be nil")
	}
	if history == nil {
		panic("conversation: history store cannot be nil")
	}
	if policy == nil || booker == nil || payments == nil {
		panic("conversation: policy, orchestrator and payment handler are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	a := &Assistant{
		states:   states,
		history:  history,
		policy:   policy,
		booker:   booker,
		payments: payments,
		locks:    newCustomerLocks(),
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HandleMessage runs one turn. The error is non-nil only for storage
// failures; the returned reply is always safe to send.
func (a *Assistant) HandleMessage(ctx context.Context, in Inbound) (TurnResult, error) {
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	if in.CustomerID == "" {
		return TurnResult{}, fmt.Errorf("conversation: customer id required")
	}
	ctx, span := assistantTracer.Start(ctx, "conversation.turn")
	defer span.End()
	span.SetAttributes(attribute.String("salon.customer_id", in.CustomerID))

	unlock := a.locks.Lock(in.CustomerID)
	defer unlock()

	st, err := a.states.GetOrCreate(ctx, in.CustomerID)
	if err != nil {
		span.RecordError(err)
		return a.failed(in, LangEnglish), fmt.Errorf("conversation: load state: %w", err)
	}
	st.Language = DetectLanguage(in.Text, st.Language)

	// A finished booking starts a new session; its history is dropped only
	// once this turn succeeds.
	fresh := st.Phase == PhaseCompleted && !isPaymentIntent(in.Text)
	if fresh {
		st.Reset(a.now())
	}
	if st.Data.CustomerPhone == "" {
		st.Data.CustomerPhone = firstNonEmpty(in.Phone, in.CustomerID)
	}

	var history []ChatMessage
	if !fresh {
		history, err = a.history.Load(ctx, in.CustomerID)
		if err != nil {
			a.logger.Warn("history unavailable, continuing without it", "customer_id", in.CustomerID, "error", err)
		}
	}

	reply, err := a.policy.Respond(ctx, in.Text, st, history)
	if err != nil {
		span.RecordError(err)
		a.logger.Error("policy failed", "customer_id", in.CustomerID, "error", err)
		turnsTotal.WithLabelValues("error").Inc()
		// stored state and history are untouched so the customer can simply retry
		return a.failed(in, st.Language), nil
	}
	if fresh {
		if err := a.history.Clear(ctx, in.CustomerID); err != nil {
			a.logger.Warn("failed to clear history", "customer_id", in.CustomerID, "error", err)
		}
	}

	result := TurnResult{CustomerID: in.CustomerID, Action: reply.Action, Language: st.Language, Reply: reply.Text}
	switch reply.Action {
	case ActionReset:
		st.Reset(a.now())
		if err := a.history.Clear(ctx, in.CustomerID); err != nil {
			a.logger.Warn("failed to clear history", "customer_id", in.CustomerID, "error", err)
		}
	case ActionCheckPayment:
		outcome := a.payments.Check(ctx, st, in.CustomerID)
		result.Reply = outcome.Message
		result.OrderID = outcome.OrderID
	case ActionBook:
		booked := a.booker.Book(ctx, st, Customer{ID: in.CustomerID, Phone: firstNonEmpty(in.Phone, st.Data.CustomerPhone), Name: in.Name})
		result.Reply = booked.Message
		result.OrderID = booked.OrderID
	}
	if strings.TrimSpace(result.Reply) == "" {
		result.Reply = localize(st.Language, msgGenericError)
	}
	result.Phase = st.Phase
	result.Language = st.Language

	if err := a.states.Save(ctx, st); err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("conversation: save state: %w", err)
	}
	if reply.Action != ActionReset {
		if err := a.history.Append(ctx, in.CustomerID,
			ChatMessage{Role: ChatRoleUser, Content: in.Text},
			ChatMessage{Role: ChatRoleAssistant, Content: result.Reply},
		); err != nil {
			a.logger.Warn("failed to append history", "customer_id", in.CustomerID, "error", err)
		}
	}
	a.record(ctx, in, result)
	turnsTotal.WithLabelValues(string(reply.Action)).Inc()
	a.logger.Info("turn handled", "customer_id", in.CustomerID, "action", reply.Action, "phase", result.Phase, "trigger", reply.Trigger)
	return result, nil
}

// State returns the current state for a customer, or nil.
func (a *Assistant) State(ctx context.Context, customerID string) (*State, error) {
	return a.states.Get(ctx, customerID)
}

// Reset discards a customer's session.
func (a *Assistant) Reset(ctx context.Context, customerID string) error {
	unlock := a.locks.Lock(customerID)
	defer unlock()
	if err := a.states.Reset(ctx, customerID); err != nil {
		return fmt.Errorf("conversation: reset state: %w", err)
	}
	if err := a.history.Clear(ctx, customerID); err != nil {
		return fmt.Errorf("conversation: clear history: %w", err)
	}
	return nil
}

func (a *Assistant) failed(in Inbound, lang string) TurnResult {
	return TurnResult{
		CustomerID: in.CustomerID,
		Reply:      localize(lang, msgGenericError),
		Action:     ActionReply,
		Language:   lang,
	}
}

func (a *Assistant) record(ctx context.Context, in Inbound, res TurnResult) {
	if a.transcripts == nil {
		return
	}
	now := a.now().UTC()
	received := in.ReceivedAt
	if received.IsZero() {
		received = now
	}
	err := a.transcripts.Record(ctx,
		TranscriptEntry{CustomerID: in.CustomerID, Role: ChatRoleUser, Content: in.Text, Phase: res.Phase, MessageID: in.MessageID, CreatedAt: received},
		TranscriptEntry{CustomerID: in.CustomerID, Role: ChatRoleAssistant, Content: res.Reply, Phase: res.Phase, CreatedAt: now},
	)
	if err != nil {
		a.logger.Warn("transcript not recorded", "customer_id", in.CustomerID, "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
