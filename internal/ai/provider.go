package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/debatearena/server/internal/ai/ollama"
	"github.com/debatearena/server/internal/ai/openai"
)

// Request is one completion call. JSON asks the backend to constrain its
// output to a JSON object.
type Request struct {
	Model       string
	System      string
	Prompt      string
	JSON        bool
	Temperature float64
	MaxTokens   int
}

type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Config struct {
	Provider      string
	OpenAIKey     string
	OpenAIBaseURL string
	OllamaHost    string
	Timeout       time.Duration
}

// New returns the provider named by cfg.Provider.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		c := openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.Timeout)
		return ProviderFunc(func(ctx context.Context, req Request) (string, error) {
			return c.Chat(ctx, openai.ChatRequest{
				Model: req.Model, System: req.System, Prompt: req.Prompt,
				JSON: req.JSON, Temperature: req.Temperature, MaxTokens: req.MaxTokens,
			})
		}), nil
	case "ollama":
		c := ollama.New(cfg.OllamaHost, cfg.Timeout)
		return ProviderFunc(func(ctx context.Context, req Request) (string, error) {
			return c.Chat(ctx, ollama.ChatRequest{
				Model: req.Model, System: req.System, Prompt: req.Prompt,
				JSON: req.JSON, Temperature: req.Temperature,
			})
		}), nil
	}
	return nil, fmt.Errorf("unknown judge provider %q", cfg.Provider)
}

type ProviderFunc func(ctx context.Context, req Request) (string, error)

func (f ProviderFunc) Complete(ctx context.Context, req Request) (string, error) { return f(ctx, req) }
