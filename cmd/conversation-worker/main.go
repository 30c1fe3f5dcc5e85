package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/hibiken/asynq"

	"github.com/wolfman30/salon-whatsapp-assistant/cmd/mainconfig"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/app/bootstrap"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/catalog"
	appconfig "github.com/wolfman30/salon-whatsapp-assistant/internal/config"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

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

	llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build llm client", "error", err)
		os.Exit(1)
	}
	defer closeLLM()

	deps := bootstrap.Dependencies{Redis: infra.Redis, Pool: infra.Pool, SQLDB: infra.SQLDB, LLM: llm}
	if awsCfg != nil {
		deps.SES = sesv2.NewFromConfig(*awsCfg)
	}
	runtime, err := bootstrap.BuildConversationRuntime(ctx, cfg, deps, logger)
	if err != nil {
		logger.Error("failed to build conversation runtime", "error", err)
		os.Exit(1)
	}
	defer runtime.Close()

	pipeline := bootstrap.BuildPipeline(cfg, awsCfg, logger)
	if pipeline.InProcess() {
		logger.Warn("memory queue selected; this worker only sees jobs published in-process")
	}
	messenger, provider := bootstrap.BuildOutboundMessenger(cfg, nil, logger)
	worker := pipeline.Worker(runtime.Assistant, messenger, bootstrap.WorkerOptions(cfg)...)
	worker.Start(ctx)
	logger.Info("conversation worker started", "workers", cfg.WorkerCount, "provider", provider, "queue", pipeline.Backend)

	stopSync := startCatalogSync(ctx, cfg, infra.Redis != nil, runtime.Syncer, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down conversation worker...")
	stopSync()
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("conversation worker stopped")
	case <-doneCtx.Done():
		logger.Error("conversation worker shutdown timed out", "error", doneCtx.Err())
	}
}

// startCatalogSync runs periodic POS catalog syncs through asynq when Redis
// is reachable. Without Redis it performs a single sync at startup.
func startCatalogSync(ctx context.Context, cfg *appconfig.Config, redisUp bool, syncer *catalog.Syncer, logger *logging.Logger) func() {
	if !redisUp {
		go func() {
			if _, err := syncer.Run(ctx); err != nil {
				logger.Warn("startup catalog sync failed", "error", err)
			}
		}()
		logger.Warn("redis unavailable; periodic catalog sync disabled")
		return func() {}
	}

	redisOpt := asynqRedisOpt(cfg)
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{"default": 1},
		Logger:      newAsynqLogger(logger),
	})
	mux := asynq.NewServeMux()
	syncer.RegisterHandlers(mux)
	if err := srv.Start(mux); err != nil {
		logger.Error("catalog task server failed to start", "error", err)
		return func() {}
	}

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: newAsynqLogger(logger)})
	if _, err := catalog.RegisterSchedule(scheduler, cfg.CatalogSyncSpec); err != nil {
		logger.Error("catalog sync schedule rejected", "error", err)
	} else if err := scheduler.Start(); err != nil {
		logger.Error("catalog scheduler failed to start", "error", err)
	}

	client := asynq.NewClient(redisOpt)
	if id, err := catalog.Enqueue(ctx, client); err != nil {
		logger.Warn("startup catalog sync not queued", "error", err)
	} else {
		logger.Info("startup catalog sync queued", "task_id", id, "schedule", cfg.CatalogSyncSpec)
	}

	return func() {
		scheduler.Shutdown()
		srv.Shutdown()
		_ = client.Close()
	}
}

func asynqRedisOpt(cfg *appconfig.Config) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opt
}

// asynqLogger routes asynq's internal logging through the service logger.
type asynqLogger struct {
	logger *logging.Logger
}

func newAsynqLogger(logger *logging.Logger) *asynqLogger {
	return &asynqLogger{logger: logger.With("component", "asynq")}
}

func (l *asynqLogger) Debug(args ...any) { l.logger.Debug(sprint(args)) }
func (l *asynqLogger) Info(args ...any)  { l.logger.Info(sprint(args)) }
func (l *asynqLogger) Warn(args ...any)  { l.logger.Warn(sprint(args)) }
func (l *asynqLogger) Error(args ...any) { l.logger.Error(sprint(args)) }
func (l *asynqLogger) Fatal(args ...any) {
	l.logger.Error(sprint(args))
	os.Exit(1)
}

func sprint(args []any) string { return fmt.Sprint(args...) }
