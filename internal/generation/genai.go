package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// GenAIConfig configures the Gemini generator
type GenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
	// BaseURL and HTTPClient override the API endpoint, used by tests
	BaseURL    string
	HTTPClient *http.Client
}

// GenAIGenerator generates bodies with Google's Gemini API
type GenAIGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

const systemPrompt = "You write concise, friendly and specific B2B outreach emails. " +
	"Never invent facts about the recipient. Never include placeholders in brackets."

// NewGenAIGenerator creates a GenAIGenerator
func NewGenAIGenerator(ctx context.Context, cfg GenAIConfig) (*GenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIGenerator{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}, nil
}

// Generate implements Generator
func (g *GenAIGenerator) Generate(ctx context.Context, prompt string, _ Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.client.Models.GenerateContent(ctx,
		g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:       genai.Ptr(g.temperature),
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		},
	)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	body := Clean(result.Text())
	if body == "" {
		return "", errors.New("GenAI returned an empty body")
	}
	return body, nil
}
