package recovery

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/kalambet/upskill/internal/ollama"
	"github.com/kalambet/upskill/internal/proxy"
)

// ErrMissingAPIKey is returned by NewGenerator when the selected backend
// needs a key that is not configured.
var ErrMissingAPIKey = errors.New("recovery: api key missing")

// Backend names.
const (
	BackendGemini     = "gemini"
	BackendOpenRouter = "openrouter"
	BackendOllama     = "ollama"
)

// Default models per backend, used when none is configured.
const (
	DefaultGeminiModel     = "gemini-3-flash-preview"
	DefaultOpenRouterModel = "google/gemini-2.5-flash"
	DefaultOllamaModel     = "llama3.2"
)

// DefaultModel returns the model used for backend when none is configured.
func DefaultModel(backend string) string {
	switch backend {
	case BackendOpenRouter:
		return DefaultOpenRouterModel
	case BackendOllama:
		return DefaultOllamaModel
	default:
		return DefaultGeminiModel
	}
}

// BackendConfig selects and configures a Generator.
type BackendConfig struct {
	Backend          string
	Model            string
	GeminiAPIKey     string
	OpenRouterAPIKey string
	OllamaURL        string
}

// NewGenerator builds the Generator for cfg.Backend.
// An empty cfg.Model uses DefaultModel(cfg.Backend).
func NewGenerator(ctx context.Context, cfg BackendConfig) (Generator, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Backend)
	}
	switch cfg.Backend {
	case BackendGemini, "":
		if cfg.GeminiAPIKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model)
	case BackendOpenRouter:
		if cfg.OpenRouterAPIKey == "" {
			return nil, ErrMissingAPIKey
		}
		return &OpenRouter{client: proxy.NewClient(cfg.OpenRouterAPIKey), model: cfg.Model}, nil
	case BackendOllama:
		return &Ollama{client: ollama.New(cfg.OllamaURL), model: cfg.Model}, nil
	default:
		return nil, fmt.Errorf("unknown recovery backend %q", cfg.Backend)
	}
}

// Gemini generates plans with the Google GenAI SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator. An empty model uses DefaultGeminiModel.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

// OpenRouter generates plans through the OpenRouter chat API.
type OpenRouter struct {
	client *proxy.Client
	model  string
}

// NewOpenRouter wraps an existing proxy client.
func NewOpenRouter(client *proxy.Client, model string) *OpenRouter {
	return &OpenRouter{client: client, model: model}
}

func (o *OpenRouter) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := o.client.Complete(ctx, o.model, prompt)
	if err != nil {
		return "", fmt.Errorf("openrouter generate: %w", err)
	}
	return text, nil
}

// Ollama generates plans with a local Ollama model.
type Ollama struct {
	client *ollama.Client
	model  string
}

// NewOllama wraps an existing Ollama client.
func NewOllama(client *ollama.Client, model string) *Ollama {
	return &Ollama{client: client, model: model}
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := o.client.Chat(ctx, o.model, []ollama.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return text, nil
}
