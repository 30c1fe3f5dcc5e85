package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appconfig "github.com/wolfman30/salon-whatsapp-assistant/internal/config"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// ErrNoLLM is returned when neither OpenAI nor Gemini credentials are set.
var ErrNoLLM = errors.New("bootstrap: no llm provider configured")

// BuildLLMClient wires OpenAI as the primary model with Gemini as an optional
// fallback. The returned cleanup func is never nil.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.LLMClient, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var primary conversation.LLMClient
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		client, err := conversation.NewOpenAILLMClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAITimeout)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: openai client: %w", err)
		}
		primary = client
	}

	var (
		fallback conversation.LLMClient
		cleanup  = noop
	)
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("gemini fallback unavailable", "error", err)
		} else {
			fallback = gemini
			cleanup = func() { _ = gemini.Close() }
		}
	}

	switch {
	case primary != nil && fallback != nil:
		logger.Info("llm configured", "primary", "openai", "model", cfg.OpenAIModel, "fallback", "gemini")
		return conversation.NewFallbackLLMClient(primary, fallback, logger), cleanup, nil
	case primary != nil:
		logger.Info("llm configured", "primary", "openai", "model", cfg.OpenAIModel)
		return primary, cleanup, nil
	case fallback != nil:
		logger.Warn("openai key missing; using gemini only", "model", cfg.GeminiModel)
		return fallback, cleanup, nil
	default:
		return nil, noop, ErrNoLLM
	}
}
