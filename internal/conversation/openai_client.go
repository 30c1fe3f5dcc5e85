package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOpenAITimeout = 30 * time.Second
)

var openAITracer = otel.Tracer("salon.internal.conversation.openai")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAILLMClient implements LLMClient with the OpenAI chat completions API.
type OpenAILLMClient struct {
	client  chatClient
	model   string
	timeout time.Duration
}

// NewOpenAILLMClient creates a client from an API key.
func NewOpenAILLMClient(apiKey, model string, timeout time.Duration) (*OpenAILLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: openai api key is required")
	}
	return newOpenAILLMClient(openai.NewClient(apiKey), model, timeout), nil
}

func newOpenAILLMClient(client chatClient, model string, timeout time.Duration) *OpenAILLMClient {
	if client == nil {
		panic("conversation: chat client cannot be nil")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = defaultOpenAITimeout
	}
	return &OpenAILLMClient{client: client, model: model, timeout: timeout}
}

// Complete implements LLMClient.
func (c *OpenAILLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	ctx, span := openAITracer.Start(ctx, "openai.chat_completion")
	defer span.End()
	span.SetAttributes(attribute.String("salon.llm.model", model))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.System)+len(req.Messages))
	for _, sys := range req.System {
		if strings.TrimSpace(sys) == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: sys})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case ChatRoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case ChatRoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	request := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   int(req.MaxTokens),
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if req.JSONMode {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, request)
	llmLatency.WithLabelValues("openai", model).Observe(time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		return LLMResponse{}, fmt.Errorf("conversation: openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return LLMResponse{}, errors.New("conversation: openai returned no choices")
	}

	llmTokensTotal.WithLabelValues("openai", "input").Add(float64(resp.Usage.PromptTokens))
	llmTokensTotal.WithLabelValues("openai", "output").Add(float64(resp.Usage.CompletionTokens))
	return LLMResponse{
		Text: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
		StopReason: string(resp.Choices[0].FinishReason),
	}, nil
}
