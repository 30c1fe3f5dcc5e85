package conversation

import (
	"context"
	"errors"

	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// FallbackLLMClient sends a request to the primary model and, when that
// fails, replays it against the fallback. A request whose context is already
// done is not replayed.
type FallbackLLMClient struct {
	primary  LLMClient
	fallback LLMClient
	logger   *logging.Logger
}

func NewFallbackLLMClient(primary, fallback LLMClient, logger *logging.Logger) *FallbackLLMClient {
	if primary == nil {
		panic("conversation: primary llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{primary: primary, fallback: fallback, logger: logger}
}

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if c.fallback == nil || ctx.Err() != nil {
		return LLMResponse{}, err
	}

	c.logger.Warn("primary llm failed; trying fallback", "error", err, "json_mode", req.JSONMode)
	resp, fbErr := c.fallback.Complete(ctx, req)
	if fbErr != nil {
		return LLMResponse{}, errors.Join(err, fbErr)
	}
	llmFallbacksTotal.Inc()
	return resp, nil
}
