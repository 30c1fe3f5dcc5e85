package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/salon-whatsapp-assistant/internal/http/middleware"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/messaging"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/observability/metrics"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	HTTPMetrics         *metrics.HTTPMetrics
	Webhook             *messaging.WebhookHandler
	ConversationHandler *conversation.Handler
	Transcripts         *handlers.TranscriptHandler
	Health              *handlers.HealthHandler
	MetricsHandler      http.Handler
	// WebhookRateLimit is requests per minute per caller; 0 disables limiting.
	WebhookRateLimit int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger, cfg.HTTPMetrics))

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler(cfg.Logger)
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Method(http.MethodGet, "/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Webhook != nil {
			public.Route("/webhooks/whatsapp", func(wh chi.Router) {
				if cfg.WebhookRateLimit > 0 {
					wh.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, time.Minute))
				}
				wh.Get("/", cfg.Webhook.Verify)
				wh.Post("/", cfg.Webhook.Receive)
			})
		}
	})

	if cfg.ConversationHandler != nil {
		r.Route("/conversations", func(conv chi.Router) {
			conv.Use(middleware.AllowContentType("application/json"))
			conv.Post("/message", cfg.ConversationHandler.Message)
			conv.Get("/jobs/{jobID}", cfg.ConversationHandler.JobStatus)
			conv.Get("/{customerID}/state", cfg.ConversationHandler.State)
			conv.Delete("/{customerID}", cfg.ConversationHandler.Reset)
			if cfg.Transcripts != nil {
				conv.Get("/{customerID}/transcript", cfg.Transcripts.GetTranscript)
			}
		})
	}

	return r
}
