package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiLLMClient is the fallback LLMClient backed by Google's Gemini API.
type GeminiLLMClient struct {
	client  *genai.Client
	modelID string
}

func NewGeminiLLMClient(ctx context.Context, apiKey, modelID string) (*GeminiLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: create gemini client: %w", err)
	}
	return &GeminiLLMClient{client: client, modelID: modelID}, nil
}

func (c *GeminiLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	turn, err := newGeminiTurn(req)
	if err != nil {
		return LLMResponse{}, err
	}
	model := c.client.GenerativeModel(c.modelID)
	turn.configure(model, req)

	cs := model.StartChat()
	cs.History = turn.history

	started := time.Now()
	resp, err := cs.SendMessage(ctx, genai.Text(turn.prompt))
	llmLatency.WithLabelValues("gemini", c.modelID).Observe(time.Since(started).Seconds())
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: gemini completion: %w", err)
	}

	result, err := geminiResult(resp)
	if err != nil {
		return LLMResponse{}, err
	}
	llmTokensTotal.WithLabelValues("gemini", "input").Add(float64(result.Usage.InputTokens))
	llmTokensTotal.WithLabelValues("gemini", "output").Add(float64(result.Usage.OutputTokens))
	return result, nil
}

func (c *GeminiLLMClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// geminiTurn is an LLMRequest reshaped for a Gemini chat: system text goes to
// the system instruction, earlier turns become history, the last user
// message is the prompt.
type geminiTurn struct {
	system  string
	history []*genai.Content
	prompt  string
}

func newGeminiTurn(req LLMRequest) (geminiTurn, error) {
	var turn geminiTurn
	system := make([]string, 0, len(req.System))
	for _, s := range req.System {
		if s = strings.TrimSpace(s); s != "" {
			system = append(system, s)
		}
	}

	last := -1
	for i := len(req.Messages) - 1; i >= 0; i-- {
		m := req.Messages[i]
		if m.Role == ChatRoleUser && strings.TrimSpace(m.Content) != "" {
			last = i
			break
		}
	}
	if last < 0 {
		return turn, errors.New("conversation: gemini requires a user message")
	}

	for _, m := range req.Messages[:last] {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if m.Role == ChatRoleSystem {
			system = append(system, content)
			continue
		}
		role := "user"
		if m.Role == ChatRoleAssistant {
			role = "model"
		}
		// Gemini wants alternating roles; consecutive turns share one entry.
		if n := len(turn.history); n > 0 && turn.history[n-1].Role == role {
			turn.history[n-1].Parts = append(turn.history[n-1].Parts, genai.Text(content))
			continue
		}
		turn.history = append(turn.history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(content)}})
	}

	turn.system = strings.Join(system, "\n\n")
	turn.prompt = strings.TrimSpace(req.Messages[last].Content)
	return turn, nil
}

func (t geminiTurn) configure(model *genai.GenerativeModel, req LLMRequest) {
	if req.JSONMode {
		model.ResponseMIMEType = "application/json"
	}
	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.TopP > 0 {
		model.SetTopP(req.TopP)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if t.system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(t.system))
	}
}

func geminiResult(resp *genai.GenerateContentResponse) (LLMResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini returned empty content")
	}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	result := LLMResponse{
		Text:       strings.TrimSpace(text.String()),
		StopReason: candidate.FinishReason.String(),
	}
	if u := resp.UsageMetadata; u != nil {
		result.Usage = TokenUsage{InputTokens: u.PromptTokenCount, OutputTokens: u.CandidatesTokenCount, TotalTokens: u.TotalTokenCount}
	}
	return result, nil
}
