package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/branch"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/catalog"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// Rule fills one kind of field from a customer message.
// Apply reports whether it wrote anything. Rules never overwrite a real value.
type Rule interface {
	Name() string
	Apply(ctx context.Context, message string, st *State) bool
}

type branchMatcher interface {
	Match(message string) (branch.Branch, bool)
	Default() branch.Branch
	DefaultPayment() branch.PaymentOption
}

type serviceFinder interface {
	BestForCategory(ctx context.Context, category, message string, locationID int) (catalog.ServiceRecord, error)
}

// Extractor runs an ordered pipeline of rules over each inbound message.
type Extractor struct {
	rules  []Rule
	logger *logging.Logger
}

type extractorConfig struct {
	now      func() time.Time
	location *time.Location
	logger   *logging.Logger
}

// ExtractorOption customises the default pipeline.
type ExtractorOption func(*extractorConfig)

// WithClock overrides the time source used for relative dates.
func WithClock(now func() time.Time) ExtractorOption {
	return func(cfg *extractorConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithTimezone sets the salon timezone used to resolve "today".
func WithTimezone(loc *time.Location) ExtractorOption {
	return func(cfg *extractorConfig) {
		if loc != nil {
			cfg.location = loc
		}
	}
}

// WithExtractorLogger sets the logger.
func WithExtractorLogger(logger *logging.Logger) ExtractorOption {
	return func(cfg *extractorConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// NewExtractor builds the standard pipeline: location, service, date, time, name, email, payment.
func NewExtractor(directory branchMatcher, services serviceFinder, opts ...ExtractorOption) *Extractor {
	if directory == nil {
		panic("conversation: branch directory cannot be nil")
	}
	if services == nil {
		panic("conversation: service finder cannot be nil")
	}
	cfg := extractorConfig{now: time.Now, location: time.UTC, logger: logging.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	clock := func() time.Time { return cfg.now().In(cfg.location) }
	return NewExtractorWithRules(cfg.logger,
		&locationRule{directory: directory},
		&serviceRule{directory: directory, services: services, logger: cfg.logger},
		&dateRule{now: clock},
		&timeRule{},
		&nameRule{},
		&emailRule{},
		&paymentRule{directory: directory},
	)
}

// NewExtractorWithRules builds an extractor from an explicit pipeline.
func NewExtractorWithRules(logger *logging.Logger, rules ...Rule) *Extractor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Extractor{rules: rules, logger: logger}
}

// Extract applies every rule in order and returns the names of rules that wrote fields.
func (e *Extractor) Extract(ctx context.Context, message string, st *State) []string {
	if st == nil || strings.TrimSpace(message) == "" {
		return nil
	}
	var filled []string
	for _, rule := range e.rules {
		if rule.Apply(ctx, message, st) {
			filled = append(filled, rule.Name())
			fieldsExtracted.WithLabelValues(rule.Name()).Inc()
		}
	}
	if len(filled) > 0 {
		e.logger.Debug("fields extracted", "customer_id", st.CustomerID, "rules", filled)
	}
	return filled
}
