package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/branch"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var policyTracer = otel.Tracer("salon.internal.conversation.policy")

// Action is what the turn driver should do after the policy decides.
type Action string

const (
	ActionReply        Action = "reply"
	ActionBook         Action = "book"
	ActionCheckPayment Action = "check_payment"
	ActionReset        Action = "reset"
	ActionGuard        Action = "guard"
	ActionHours        Action = "outside_hours"
)

// Reply is the policy decision for one turn.
type Reply struct {
	Text        string
	Action      Action
	ReadyToBook bool
	Trigger     string
}

type branchDirectory interface {
	branchMatcher
	ByID(id int) (branch.Branch, bool)
	Branches() []branch.Branch
}

type policyConfig struct {
	model       string
	temperature float32
	maxTokens   int32
	now         func() time.Time
	location    *time.Location
}

// PolicyOption customises the dialogue policy.
type PolicyOption func(*policyConfig)

// WithModel overrides the LLM model name.
func WithModel(model string) PolicyOption {
	return func(cfg *policyConfig) {
		if model != "" {
			cfg.model = model
		}
	}
}

// WithSampling sets temperature and the output token cap.
func WithSampling(temperature float32, maxTokens int32) PolicyOption {
	return func(cfg *policyConfig) {
		if temperature >= 0 {
			cfg.temperature = temperature
		}
		if maxTokens > 0 {
			cfg.maxTokens = maxTokens
		}
	}
}

// WithPolicyClock sets the clock and timezone shown to the model.
func WithPolicyClock(now func() time.Time, loc *time.Location) PolicyOption {
	return func(cfg *policyConfig) {
		if now != nil {
			cfg.now = now
		}
		if loc != nil {
			cfg.location = loc
		}
	}
}

// Policy decides each reply and whether a booking should fire.
type Policy struct {
	llm       LLMClient
	extractor *Extractor
	directory branchDirectory
	cfg       policyConfig
	logger    *logging.Logger
}

// NewPolicy creates a dialogue policy.
func NewPolicy(llm LLMClient, extractor *Extractor, directory branchDirectory, logger *logging.Logger, opts ...PolicyOption) *Policy {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if extractor == nil {
		panic("conversation: extractor cannot be nil")
	}
	if directory == nil {
		panic("conversation: branch directory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := policyConfig{model: defaultOpenAIModel, temperature: 0.4, maxTokens: 400, now: time.Now, location: time.UTC}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Policy{llm: llm, extractor: extractor, directory: directory, cfg: cfg, logger: logger}
}

// Respond extracts fields from the raw message, then picks the turn's action.
// An error is returned only when the model is needed and unreachable.
func (p *Policy) Respond(ctx context.Context, message string, st *State, history []ChatMessage) (Reply, error) {
	ctx, span := policyTracer.Start(ctx, "conversation.policy.respond")
	defer span.End()
	span.SetAttributes(attribute.String("salon.customer_id", st.CustomerID), attribute.String("salon.phase", string(st.Phase)))

	if isCancelIntent(message) {
		return Reply{Action: ActionReset, Text: localize(st.Language, msgCancelled)}, nil
	}
	if isPaymentIntent(message) {
		return Reply{Action: ActionCheckPayment}, nil
	}

	chosen, slotChosen := applySlotChoice(message, st)
	filled := p.extractor.Extract(ctx, message, st)

	if st.Data.PreferredTime != "" && (slotChosen || containsString(filled, "time") || containsString(filled, "location")) {
		if err := p.validateHours(st); err != nil {
			var outside *branch.OutsideHoursError
			if errors.As(err, &outside) {
				requested := branch.DisplayClock(st.Data.PreferredTime)
				st.Data.PreferredTime = ""
				st.Phase = PhaseTimeSelection
				return Reply{Action: ActionHours, Text: localize(st.Language, msgOutsideHours, outside.Branch, outside.Hours, requested)}, nil
			}
			p.logger.Warn("hours validation skipped", "error", err, "customer_id", st.CustomerID)
		}
	}
	advancePhase(st)

	if name, ok := matchBookingTrigger(triggerInput{message: message, slotChosen: slotChosen}); ok {
		if reply, decided := p.bookingDecision(st, name, ""); decided {
			return reply, nil
		}
	}

	raw, err := p.complete(ctx, message, st, history)
	if err != nil {
		span.RecordError(err)
		return Reply{}, err
	}
	parsed := parseModelReply(raw)
	text := parsed.Reply
	if slotChosen {
		text = localize(st.Language, msgSlotChosen, chosen.Text(st.Language)) + " " + text
	}

	if parsed.ReadyToBook && !isOnHold(message) {
		if reply, decided := p.bookingDecision(st, "model_ready", text); decided {
			reply.ReadyToBook = true
			return reply, nil
		}
	}
	return Reply{Action: ActionReply, Text: text, ReadyToBook: parsed.ReadyToBook}, nil
}

// bookingDecision applies the booking guards once a trigger fired.
func (p *Policy) bookingDecision(st *State, trigger, text string) (Reply, bool) {
	if len(st.Data.SelectedServices) == 0 {
		return Reply{Action: ActionGuard, Text: localize(st.Language, msgNeedService), Trigger: trigger}, true
	}
	if !IsBookable(st) {
		return Reply{}, false
	}
	st.Data.ReadyForBooking = true
	st.Phase = PhaseConfirmation
	return Reply{Action: ActionBook, Text: text, Trigger: trigger}, true
}

func (p *Policy) complete(ctx context.Context, message string, st *State, history []ChatMessage) (string, error) {
	now := p.cfg.now().In(p.cfg.location)
	msgs := append(recentHistory(history), ChatMessage{Role: ChatRoleUser, Content: message})
	resp, err := p.llm.Complete(ctx, LLMRequest{
		Model:       p.cfg.model,
		System:      buildSystemPrompt(st, p.directory.Branches(), now),
		Messages:    msgs,
		MaxTokens:   p.cfg.maxTokens,
		Temperature: p.cfg.temperature,
		JSONMode:    true,
	})
	if err != nil {
		return "", fmt.Errorf("conversation: policy completion: %w", err)
	}
	return resp.Text, nil
}

func (p *Policy) validateHours(st *State) error {
	b, ok := p.directory.ByID(st.Data.LocationID)
	if !ok {
		b = p.directory.Default()
	}
	return b.ValidateTime(st.Data.PreferredTime)
}

// applySlotChoice handles a reply to offered alternatives ("2", "option 2", "5:30 pm").
func applySlotChoice(message string, st *State) (TimeSlotOption, bool) {
	if st.Phase != PhaseTimeSelection || len(st.Data.AvailableTimeSlots) == 0 {
		return TimeSlotOption{}, false
	}
	slots := st.Data.AvailableTimeSlots
	pick := -1
	tokens := words(message)
	if len(tokens) <= 2 {
		for _, t := range tokens {
			if n, err := strconv.Atoi(t); err == nil && n >= 1 && n <= len(slots) {
				pick = n - 1
				break
			}
		}
	}
	if pick < 0 {
		if clock, ok := resolveTime(message); ok {
			for i, s := range slots {
				if s.Start == clock {
					pick = i
					break
				}
			}
		}
	}
	if pick < 0 {
		return TimeSlotOption{}, false
	}
	chosen := slots[pick]
	st.Data.PreferredTime = chosen.Start
	st.Data.StaffID = chosen.StaffID
	st.Data.StaffName = chosen.StaffName
	st.Data.AvailableTimeSlots = nil
	st.Phase = PhaseConfirmation
	return chosen, true
}

// advancePhase points the phase at the first missing field.
func advancePhase(st *State) {
	if st.Phase == PhaseCompleted {
		return
	}
	if st.Phase == PhaseTimeSelection && len(st.Data.AvailableTimeSlots) > 0 {
		return
	}
	missing := st.MissingFields()
	if len(missing) == 0 {
		if st.Data.PreferredTime == "" {
			st.Phase = PhaseTimeSelection
			return
		}
		st.Phase = PhaseConfirmation
		return
	}
	switch missing[0] {
	case "service":
		st.Phase = PhaseServiceSelection
	case "location":
		st.Phase = PhaseLocationSelection
	case "date":
		st.Phase = PhaseDateSelection
	default:
		st.Phase = PhaseCustomerInfo
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
