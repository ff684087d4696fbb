package backend

import (
	"context"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"learned/internal/models"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI generates text through any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI builds an OpenAI backend. An empty apiKey yields a backend whose calls fail
// with ErrNotConfigured; an empty endpoint keeps the library default.
func NewOpenAI(apiKey, endpoint, model string) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if apiKey == "" {
		return &OpenAI{model: model}
	}
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = strings.TrimRight(endpoint, "/")
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAI) Provider() string { return ProviderOpenAI }
func (o *OpenAI) Model() string    { return o.model }

func (o *OpenAI) Generate(ctx context.Context, msgs []models.Message, opts Options) (string, error) {
	if o.client == nil {
		return "", &BackendError{Provider: ProviderOpenAI, Err: ErrNotConfigured}
	}
	opts = opts.Normalize()

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(msgs)),
		Temperature: requestTemperature(opts.Temperature),
		MaxTokens:   opts.MaxOutputTokens,
	}
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		if m.Role == models.RoleSystem {
			role = openai.ChatMessageRoleSystem
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &BackendError{Provider: ProviderOpenAI, Err: fmt.Errorf("create chat completion: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return "", noContent(ProviderOpenAI, "")
	}
	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", noContent(ProviderOpenAI, string(choice.FinishReason))
	}
	return text, nil
}

// requestTemperature keeps a zero temperature on the wire; the client omits a literal 0.
func requestTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
