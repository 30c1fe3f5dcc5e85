package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/salon-whatsapp-assistant/internal/config"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		UseMemoryQueue:      true,
		WorkerCount:         1,
		StateBackend:        "memory",
		NailItBaseURL:       "http://pos.invalid",
		OpenAIAPIKey:        "sk-test",
		OpenAIModel:         "gpt-4o-mini",
		WhatsAppVerifyToken: "verify-me",
		ReplyProvider:       "log",
		RateLimitPerMinute:  100,
	}
}

func TestSetupInlineWorkerStartsAndStops(t *testing.T) {
	logger := logging.New("error")
	ctx, cancel := context.WithCancel(context.Background())
	reg := prometheus.NewRegistry()

	app, err := setup(ctx, testConfig(), &bootstrap.Infra{}, nil, reg, reg, logger)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer app.close()
	if app.worker == nil {
		t.Fatalf("expected inline worker with memory queue")
	}

	cancel()
	app.wait(logger)
}

func TestSetupServesWebhookVerification(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := prometheus.NewRegistry()

	app, err := setup(ctx, testConfig(), &bootstrap.Infra{}, nil, reg, reg, logging.New("error"))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer app.close()

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=abc", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "abc" {
		t.Fatalf("verify = %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "salon_http_requests_total") {
		t.Fatalf("expected http metrics to be exported")
	}
}

func TestSetupWithoutLLMRequiresRemoteWorker(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAIAPIKey = ""
	reg := prometheus.NewRegistry()

	if _, err := setup(context.Background(), cfg, &bootstrap.Infra{}, nil, reg, reg, logging.New("error")); err == nil {
		t.Fatalf("expected error when the inline worker has no llm")
	}
}
