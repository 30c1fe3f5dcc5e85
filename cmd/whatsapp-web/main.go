// Command whatsapp-web runs the assistant against a personal WhatsApp account
// linked as a WhatsApp Web device. The queue and worker run in-process because
// replies must go out over the same session.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/salon-whatsapp-assistant/cmd/mainconfig"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/salon-whatsapp-assistant/internal/config"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/messaging/waweb"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("whatsapp web bridge failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	local := *cfg
	local.UseMemoryQueue = true
	if local.ReplyProvider == "" {
		local.ReplyProvider = "whatsapp_web"
	}

	infra, err := bootstrap.BuildInfra(ctx, &local, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, &local, logger)
	if err != nil {
		return err
	}
	defer closeLLM()

	deps := bootstrap.Dependencies{Redis: infra.Redis, Pool: infra.Pool, SQLDB: infra.SQLDB, LLM: llm}
	if local.SESFromEmail != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, &local)
		if err != nil {
			return err
		}
		deps.SES = sesv2.NewFromConfig(awsCfg)
	}
	runtime, err := bootstrap.BuildConversationRuntime(ctx, &local, deps, logger)
	if err != nil {
		return err
	}
	defer runtime.Close()

	client, err := waweb.Open(ctx, local.WhatsAppWebStore, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	pipeline := bootstrap.BuildPipeline(&local, nil, logger)
	bridge := waweb.NewBridge(client, pipeline.Publisher, infra.Dedupe(), logger)
	client.AddEventHandler(bridge.HandleEvent)

	messenger, provider := bootstrap.BuildOutboundMessenger(&local, bridge, logger)
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	worker := pipeline.Worker(runtime.Assistant, messenger, bootstrap.WorkerOptions(&local)...)
	worker.Start(workerCtx)

	go func() {
		if _, err := runtime.Syncer.Run(ctx); err != nil {
			logger.Warn("startup catalog sync failed", "error", err)
		}
	}()

	if err := waweb.Connect(ctx, client, os.Stdout, logger); err != nil {
		return err
	}
	logger.Info("whatsapp web bridge running", "provider", provider)

	<-ctx.Done()
	logger.Info("shutting down whatsapp web bridge...")
	cancelWorker()

	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Error("worker shutdown timed out")
	}
	return nil
}
