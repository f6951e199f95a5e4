package app

import (
	"context"
	"fmt"

	"github.com/xpanvictor/aura/internal/config"
	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/assistant"
	"github.com/xpanvictor/aura/pkg/assistant/providers/gemini"
	"github.com/xpanvictor/aura/pkg/assistant/providers/ollama"
)

// NewChatBackend creates the completion backend selected by llm.provider.
// The returned closer is never nil.
func NewChatBackend(ctx context.Context, cfg config.LLMConfig, logger *Logger.Logger) (assistant.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case "", "openai":
		return assistant.NewOpenAIBackend(assistant.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), noop, nil
	case "ollama":
		p, err := ollama.New(cfg.OllamaURLs, cfg.Model, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create ollama backend: %w", err)
		}
		return p, noop, nil
	case "gemini":
		p, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.Model)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create gemini backend: %w", err)
		}
		return p, p.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NewChatGateway wraps the configured backend with pacing and the retry budget.
func NewChatGateway(backend assistant.Backend, cfg config.LLMConfig, observer assistant.Observer, logger *Logger.Logger) *assistant.Gateway {
	gw := assistant.NewGateway(
		backend,
		assistant.NewPacer(cfg.MinInterval()),
		assistant.GatewayConfig{
			MaxRetries:     cfg.MaxRetries,
			BackoffUnit:    cfg.BackoffUnit(),
			RequestTimeout: cfg.RequestTimeout(),
		},
		logger,
	)
	if observer != nil {
		gw = gw.WithObserver(observer)
	}
	return gw
}
