package bootstrap

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	appconfig "github.com/wolfman30/salon-whatsapp-assistant/internal/config"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/messaging"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/notify"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

type stubLLM struct{}

func (stubLLM) Complete(context.Context, conversation.LLMRequest) (conversation.LLMResponse, error) {
	return conversation.LLMResponse{}, errors.New("not used")
}

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		StateBackend:           "memory",
		Timezone:               "Asia/Kuwait",
		NailItBaseURL:          "http://pos.invalid",
		DefaultLocationID:      1,
		DefaultLocationName:    "Al-Plaza Mall",
		DefaultPaymentTypeID:   1,
		DefaultPaymentTypeName: "Cash on Arrival",
		OpenAIModel:            "gpt-4o-mini",
		UseMemoryQueue:         true,
		WorkerCount:            2,
	}
}

func TestBuildConversationRuntimeRequiresConfig(t *testing.T) {
	if _, err := BuildConversationRuntime(context.Background(), nil, Dependencies{}, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildConversationRuntimeRequiresLLM(t *testing.T) {
	_, err := BuildConversationRuntime(context.Background(), testConfig(), Dependencies{}, nil)
	if !errors.Is(err, ErrNoLLM) {
		t.Fatalf("expected ErrNoLLM, got %v", err)
	}
}

func TestBuildConversationRuntimeInMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := BuildConversationRuntime(ctx, testConfig(), Dependencies{LLM: stubLLM{}}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rt.Close()

	if rt.Assistant == nil || rt.Syncer == nil || rt.Resolver == nil {
		t.Fatalf("expected assistant, syncer and resolver to be wired")
	}
	if got := rt.Directory.Default().Name; got != "Al-Plaza Mall" {
		t.Fatalf("default branch = %q", got)
	}
	st, err := rt.Assistant.State(ctx, "96550001234")
	if err != nil {
		t.Fatalf("state lookup: %v", err)
	}
	if st != nil {
		t.Fatalf("expected no state for a new customer, got %+v", st)
	}
}

func TestBuildConversationRuntimeWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.StateBackend = "redis"
	cfg.RedisAddr = mr.Addr()

	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	if client == nil {
		t.Fatalf("expected redis client")
	}
	defer client.Close()

	rt, err := BuildConversationRuntime(context.Background(), cfg, Dependencies{Redis: client, LLM: stubLLM{}}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rt.Close()
	if err := rt.Assistant.Reset(context.Background(), "96550001234"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := stateBackendName(cfg, client); got != "redis" {
		t.Fatalf("state backend = %q", got)
	}
}

func TestBuildRedisClient(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true); client != nil {
		t.Fatalf("expected nil client without address")
	}
	cfg := &appconfig.Config{RedisAddr: "127.0.0.1:1"}
	if client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true); client != nil {
		t.Fatalf("expected nil client when redis is unreachable")
	}
}

func TestBuildLLMClient(t *testing.T) {
	if _, _, err := BuildLLMClient(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, _, err := BuildLLMClient(context.Background(), &appconfig.Config{}, nil); !errors.Is(err, ErrNoLLM) {
		t.Fatalf("expected ErrNoLLM, got %v", err)
	}

	client, cleanup, err := BuildLLMClient(context.Background(), &appconfig.Config{OpenAIAPIKey: "sk-test"}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()
	if _, ok := client.(*conversation.OpenAILLMClient); !ok {
		t.Fatalf("expected OpenAI client, got %T", client)
	}
}

type recordingService struct {
	calls chan conversation.Inbound
}

func (s recordingService) HandleMessage(_ context.Context, in conversation.Inbound) (conversation.TurnResult, error) {
	s.calls <- in
	return conversation.TurnResult{CustomerID: in.CustomerID, Reply: "ok"}, nil
}

func TestBuildPipelineInMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	p := BuildPipeline(cfg, nil, logging.New("error"))
	if !p.InProcess() {
		t.Fatalf("expected in-process pipeline, got %s", p.Backend)
	}
	if _, ok := p.Jobs.(*conversation.MemoryJobStore); !ok {
		t.Fatalf("expected memory job store, got %T", p.Jobs)
	}

	svc := recordingService{calls: make(chan conversation.Inbound, 1)}
	worker := p.Worker(svc, nil, WorkerOptions(cfg)...)
	worker.Start(ctx)

	if _, err := p.Publisher.EnqueueMessage(ctx, conversation.Inbound{CustomerID: "96550001234", Text: "hi"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case in := <-svc.calls:
		if in.CustomerID != "96550001234" {
			t.Fatalf("customer = %q", in.CustomerID)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("worker did not process the queued turn")
	}
	cancel()
	worker.Wait()
}

func TestBuildOutboundMessenger(t *testing.T) {
	logger := logging.New("error")

	m, provider := BuildOutboundMessenger(&appconfig.Config{ReplyProvider: "log"}, nil, logger)
	if provider != messaging.ProviderLog {
		t.Fatalf("provider = %q", provider)
	}
	if _, ok := m.(*messaging.LogMessenger); !ok {
		t.Fatalf("expected log messenger, got %T", m)
	}

	m, provider = BuildOutboundMessenger(&appconfig.Config{
		ReplyProvider:         "auto",
		WhatsAppAccessToken:   "token",
		WhatsAppPhoneNumberID: "123",
	}, nil, logger)
	if provider != messaging.ProviderCloud {
		t.Fatalf("provider = %q", provider)
	}
	if _, ok := m.(*messaging.GraphSender); !ok {
		t.Fatalf("expected graph sender, got %T", m)
	}

	m, provider = BuildOutboundMessenger(&appconfig.Config{ReplyProvider: "whatsapp_cloud"}, nil, logger)
	if provider != messaging.ProviderLog || m == nil {
		t.Fatalf("expected log fallback, got %q %T", provider, m)
	}
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.New("error")
	if sender := buildEmailSender(&appconfig.Config{}, nil, logger); sender != nil {
		t.Fatalf("expected nil sender, got %T", sender)
	}
	// SES needs a client; without one the SES config alone selects nothing.
	if sender := buildEmailSender(&appconfig.Config{SESFromEmail: "book@salon.test"}, nil, logger); sender != nil {
		t.Fatalf("expected nil sender, got %T", sender)
	}
	sender := buildEmailSender(&appconfig.Config{SendGridAPIKey: "SG.key", SendGridFromEmail: "book@salon.test"}, nil, logger)
	if _, ok := sender.(*notify.SendGridSender); !ok {
		t.Fatalf("expected sendgrid sender, got %T", sender)
	}
}

func TestParseConversationExclusions(t *testing.T) {
	got := parseConversationExclusions(" +96550001234, ,96550005678 ")
	want := []string{"+96550001234", "96550005678"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if parseConversationExclusions("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestLoadTimezone(t *testing.T) {
	logger := logging.New("error")
	if loc := loadTimezone("Not/AZone", logger); loc != time.UTC {
		t.Fatalf("expected UTC fallback, got %s", loc)
	}
	if loc := loadTimezone("Asia/Kuwait", logger); loc.String() != "Asia/Kuwait" {
		t.Fatalf("got %s", loc)
	}
}
