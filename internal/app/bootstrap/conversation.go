package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/bookings"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/branch"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/catalog"
	appconfig "github.com/wolfman30/salon-whatsapp-assistant/internal/config"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/events"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/nailit"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/notify"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

const sweepInterval = 5 * time.Minute

// Dependencies carries shared infrastructure handles. Every field is optional;
// nil handles fall back to in-process implementations.
type Dependencies struct {
	Redis *redis.Client
	Pool  *pgxpool.Pool
	SQLDB *sql.DB
	SES   *sesv2.Client
	LLM   conversation.LLMClient
}

type orderLedger interface {
	conversation.OrderRecorder
	bookings.OrderLister
	MarkPaid(ctx context.Context, orderID int) error
}

// ConversationRuntime is the fully wired assistant plus the collaborators the
// commands need to reach directly.
type ConversationRuntime struct {
	Assistant *conversation.Assistant
	POS       *nailit.Client
	Directory *branch.Directory
	Resolver  *catalog.Resolver
	Syncer    *catalog.Syncer
	Events    events.Publisher

	closers []func()
}

// Close releases connections opened while wiring the runtime.
func (r *ConversationRuntime) Close() {
	if r == nil {
		return
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// BuildConversationRuntime wires the booking assistant from config.
func BuildConversationRuntime(ctx context.Context, cfg *appconfig.Config, deps Dependencies, logger *logging.Logger) (*ConversationRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if deps.LLM == nil {
		return nil, ErrNoLLM
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loc := loadTimezone(cfg.Timezone, logger)
	rt := &ConversationRuntime{}

	cat := BuildCatalog(ctx, cfg, deps.Redis, deps.Pool, logger)
	rt.POS, rt.Directory, rt.Resolver, rt.Syncer = cat.POS, cat.Directory, cat.Resolver, cat.Syncer

	states, history := buildSessionStores(ctx, cfg, deps.Redis, logger)

	var ledger orderLedger = bookings.NewMemoryLedger()
	if deps.Pool != nil {
		ledger = bookings.NewLedger(deps.Pool)
	}
	orders := bookings.NewHistory(ledger, rt.POS, logger)

	rt.Events = buildEventPublisher(ctx, cfg, logger, rt)
	notifier := notify.NewNotifier(buildEmailSender(cfg, deps.SES, logger), logger)

	extractor := conversation.NewExtractor(rt.Directory, rt.Resolver,
		conversation.WithTimezone(loc),
		conversation.WithExtractorLogger(logger),
	)
	policy := conversation.NewPolicy(deps.LLM, extractor, rt.Directory, logger,
		conversation.WithModel(cfg.OpenAIModel),
		conversation.WithSampling(float32(cfg.LLMTemperature), int32(cfg.LLMMaxTokens)),
		conversation.WithPolicyClock(time.Now, loc),
	)
	orchestrator := conversation.NewOrchestrator(rt.POS, rt.Resolver, rt.Directory, logger,
		conversation.WithOrderRecorder(ledger),
		conversation.WithEventPublisher(rt.Events),
		conversation.WithConfirmationMailer(notifier),
	)
	payments := conversation.NewPaymentHandler(rt.POS, orders, ledger, rt.Events, logger)

	var opts []conversation.AssistantOption
	if transcripts := BuildTranscriptStore(deps.SQLDB, cfg, logger); transcripts != nil {
		opts = append(opts, conversation.WithTranscripts(transcripts))
	}
	rt.Assistant = conversation.NewAssistant(states, history, policy, orchestrator, payments, logger, opts...)

	logger.Info("conversation runtime ready",
		"state_backend", stateBackendName(cfg, deps.Redis),
		"ledger", ledgerName(deps.Pool),
		"timezone", loc.String(),
	)
	return rt, nil
}

// Catalog is the POS client, branch directory and service catalog.
type Catalog struct {
	POS       *nailit.Client
	Directory *branch.Directory
	Resolver  *catalog.Resolver
	Syncer    *catalog.Syncer
}

// BuildCatalog wires the catalog read path (Postgres, then Redis cache, or an
// in-process source) and the syncer that fills it from the POS.
func BuildCatalog(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, pool *pgxpool.Pool, logger *logging.Logger) *Catalog {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Catalog{
		POS: nailit.NewClient(cfg.NailItBaseURL, cfg.NailItSecurityToken, cfg.NailItTimeout, logger),
		Directory: branch.NewDirectory(
			branch.Branch{LocationID: cfg.DefaultLocationID, Name: cfg.DefaultLocationName},
			branch.PaymentOption{TypeID: cfg.DefaultPaymentTypeID, Name: cfg.DefaultPaymentTypeName},
		),
	}

	var branchStore *branch.Store
	if redisClient != nil {
		branchStore = branch.NewStore(redisClient)
		if err := branchStore.Refresh(ctx, c.Directory); err != nil {
			logger.Warn("branch snapshot not loaded; using defaults", "error", err)
		}
	}

	memory := catalog.NewMemorySource()
	var (
		source catalog.Source = memory
		repo   *catalog.Repository
		cache  *catalog.CachedSource
	)
	if pool != nil {
		repo = catalog.NewRepository(pool)
		source = repo
	}
	if redisClient != nil {
		cache = catalog.NewCachedSource(redisClient, source, 0, logger)
		source = cache
	}
	c.Resolver = catalog.NewResolver(source, logger)
	c.Syncer = catalog.NewSyncer(c.POS, c.Directory, logger,
		catalog.WithRepository(repo),
		catalog.WithCache(cache),
		catalog.WithBranchStore(branchStore),
		catalog.WithMemorySource(memory),
	)
	return c
}

func buildSessionStores(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (conversation.StateStore, conversation.HistoryStore) {
	if cfg.UsesRedisState() {
		if redisClient != nil {
			return conversation.NewRedisStateStore(redisClient, cfg.SessionTTL),
				conversation.NewRedisHistoryStore(redisClient, cfg.SessionTTL)
		}
		logger.Warn("redis state backend requested but redis unavailable; using memory")
	}
	states := conversation.NewMemoryStateStore(cfg.SessionTTL)
	states.StartSweeper(ctx, sweepInterval)
	return states, conversation.NewMemoryHistoryStore()
}

func buildEventPublisher(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, rt *ConversationRuntime) events.Publisher {
	if strings.TrimSpace(cfg.NATSURL) == "" {
		return events.NoopPublisher{}
	}
	js, err := events.ConnectJetStream(ctx, events.NATSConfig{URL: cfg.NATSURL, Token: cfg.NATSToken}, logger)
	if err != nil {
		logger.Warn("booking events disabled", "error", err)
		return events.NoopPublisher{}
	}
	rt.closers = append(rt.closers, js.Close)
	return js
}

// buildEmailSender picks SendGrid, then SES. A nil return selects the stub sender.
func buildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	if strings.TrimSpace(cfg.SendGridAPIKey) != "" {
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			return sender
		}
	}
	if sesClient != nil && strings.TrimSpace(cfg.SESFromEmail) != "" {
		sender := notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			return sender
		}
	}
	logger.Info("no email provider configured; confirmations are logged only")
	return nil
}

func loadTimezone(name string, logger *logging.Logger) *time.Location {
	if strings.TrimSpace(name) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("invalid timezone; using UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}

func stateBackendName(cfg *appconfig.Config, redisClient *redis.Client) string {
	if cfg.UsesRedisState() && redisClient != nil {
		return "redis"
	}
	return "memory"
}

func ledgerName(pool *pgxpool.Pool) string {
	if pool != nil {
		return "postgres"
	}
	return "memory"
}
