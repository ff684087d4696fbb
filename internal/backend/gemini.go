package backend

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"learned/internal/models"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates text through the Google Gen AI SDK.
type Gemini struct {
	models contentGenerator
	model  string
}

// NewGemini builds a Gemini backend. An empty apiKey yields a backend whose calls fail
// with ErrNotConfigured.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	if apiKey == "" {
		return &Gemini{model: model}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{models: client.Models, model: model}, nil
}

func (g *Gemini) Provider() string { return ProviderGemini }
func (g *Gemini) Model() string    { return g.model }

func (g *Gemini) Generate(ctx context.Context, msgs []models.Message, opts Options) (string, error) {
	if g.models == nil {
		return "", &BackendError{Provider: ProviderGemini, Err: ErrNotConfigured}
	}
	opts = opts.Normalize()

	var (
		system   []string
		contents []*genai.Content
	)
	for _, m := range msgs {
		if m.Role == models.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
	}
	if len(contents) == 0 {
		return "", &BackendError{Provider: ProviderGemini, Err: fmt.Errorf("prompt has no user message")}
	}

	temperature := float32(opts.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(opts.MaxOutputTokens),
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", &BackendError{Provider: ProviderGemini, Err: fmt.Errorf("generate content: %w", err)}
	}
	return geminiText(resp)
}

// geminiText joins the text parts of the first candidate, skipping thought summaries.
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", noContent(ProviderGemini, "")
	}
	if len(resp.Candidates) == 0 {
		reason := ""
		if resp.PromptFeedback != nil {
			reason = string(resp.PromptFeedback.BlockReason)
		}
		return "", noContent(ProviderGemini, reason)
	}

	cand := resp.Candidates[0]
	var b strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", noContent(ProviderGemini, string(cand.FinishReason))
	}
	return text, nil
}
