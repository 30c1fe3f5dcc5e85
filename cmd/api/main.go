package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/salon-whatsapp-assistant/cmd/mainconfig"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/api/router"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/salon-whatsapp-assistant/internal/config"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/http/handlers"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/messaging"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/observability/metrics"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting salon-whatsapp-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	infra, err := bootstrap.BuildInfra(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open infrastructure", "error", err)
		os.Exit(1)
	}
	defer infra.Close()

	var awsCfg *aws.Config
	if mainconfig.UsesAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	app, err := setup(ctx, cfg, infra, awsCfg, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, logger)
	if err != nil {
		logger.Error("failed to wire API", "error", err)
		os.Exit(1)
	}
	defer app.close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	app.wait(logger)
	logger.Info("server stopped")
}

type apiApp struct {
	handler http.Handler
	worker  *conversation.Worker
	closers []func()
}

func (a *apiApp) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// wait blocks until the inline worker drains or the grace period ends.
func (a *apiApp) wait(logger *logging.Logger) {
	if a.worker == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		a.worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline worker stopped")
	case <-time.After(30 * time.Second):
		logger.Error("inline worker shutdown timed out")
	}
}

// setup wires the HTTP surface. With an in-memory queue the worker runs in
// this process; with SQS the conversation-worker binary drains the queue.
func setup(ctx context.Context, cfg *appconfig.Config, infra *bootstrap.Infra, awsCfg *aws.Config, reg prometheus.Registerer, gatherer prometheus.Gatherer, logger *logging.Logger) (*apiApp, error) {
	app := &apiApp{}
	pipeline := bootstrap.BuildPipeline(cfg, awsCfg, logger)

	llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, logger)
	app.closers = append(app.closers, closeLLM)
	var runtime *bootstrap.ConversationRuntime
	switch {
	case err == nil:
		deps := bootstrap.Dependencies{Redis: infra.Redis, Pool: infra.Pool, SQLDB: infra.SQLDB, LLM: llm}
		if awsCfg != nil {
			deps.SES = sesv2.NewFromConfig(*awsCfg)
		}
		runtime, err = bootstrap.BuildConversationRuntime(ctx, cfg, deps, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, runtime.Close)
	case errors.Is(err, bootstrap.ErrNoLLM) && !pipeline.InProcess():
		logger.Warn("no llm configured; session endpoints disabled in this process")
	default:
		return nil, err
	}

	var sessions conversation.SessionAdmin
	if runtime != nil {
		sessions = runtime.Assistant
		if pipeline.InProcess() {
			messenger, _ := bootstrap.BuildOutboundMessenger(cfg, nil, logger)
			app.worker = pipeline.Worker(runtime.Assistant, messenger, bootstrap.WorkerOptions(cfg)...)
			app.worker.Start(ctx)
			go func() {
				if _, err := runtime.Syncer.Run(ctx); err != nil {
					logger.Warn("initial catalog sync failed", "error", err)
				}
			}()
			logger.Info("inline conversation worker started", "workers", cfg.WorkerCount)
		}
	}

	var transcripts *handlers.TranscriptHandler
	if store := bootstrap.BuildTranscriptStore(infra.SQLDB, cfg, logger); store != nil {
		transcripts = handlers.NewTranscriptHandler(store, logger)
	}

	app.handler = router.New(&router.Config{
		Logger:              logger,
		HTTPMetrics:         metrics.NewHTTPMetrics(reg),
		Webhook:             messaging.NewWebhookHandler(cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, pipeline.Publisher, infra.Dedupe(), logger),
		ConversationHandler: conversation.NewHandler(pipeline.Publisher, pipeline.Jobs, sessions, logger),
		Transcripts:         transcripts,
		Health:              infra.HealthChecks(handlers.NewHealthHandler(logger)),
		MetricsHandler:      promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		WebhookRateLimit:    cfg.RateLimitPerMinute,
	})
	return app, nil
}
