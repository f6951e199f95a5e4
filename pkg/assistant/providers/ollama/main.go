package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/presbrey/ollamafarm"

	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/assistant"
)

const providerName = "ollama"

// OllamaProvider completes chats on the first online server of a farm.
type OllamaProvider struct {
	ollamafarm *ollamafarm.Farm
	model      string
}

func New(urls []string, model string, logger *Logger.Logger) (*OllamaProvider, error) {
	farm := ollamafarm.New()

	registered := 0
	for _, u := range urls {
		if err := farm.RegisterURL(u, nil); err != nil {
			logger.Warnf("ollama server %s not registered: %v", u, err)
			continue
		}
		registered++
	}
	if registered == 0 {
		return nil, fmt.Errorf("%w: no ollama servers registered", assistant.ErrNoBackend)
	}

	return &OllamaProvider{ollamafarm: farm, model: model}, nil
}

var _ assistant.Backend = (*OllamaProvider)(nil)

func (o *OllamaProvider) Name() string { return providerName }

// Complete implements assistant.Backend.
func (o *OllamaProvider) Complete(ctx context.Context, req assistant.Request) (string, error) {
	// pick first available client
	srv := o.ollamafarm.First(&ollamafarm.Where{Offline: false})
	if srv == nil {
		return "", fmt.Errorf("%w: every ollama server is offline", assistant.ErrNoBackend)
	}

	stream := false
	options := map[string]interface{}{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	chatReq := api.ChatRequest{
		Model:    o.model,
		Messages: convertMsgs(req.Messages),
		Stream:   &stream,
		Options:  options,
	}

	var sb strings.Builder
	err := srv.Client().Chat(ctx, &chatReq, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var se api.StatusError
		if errors.As(err, &se) {
			return "", &assistant.StatusError{Provider: providerName, Code: se.StatusCode, Message: se.ErrorMessage}
		}
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return sb.String(), nil
}

func convertMsgs(msgs []assistant.Message) []api.Message {
	converted := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		converted = append(converted, api.Message{Role: string(msg.Role), Content: msg.Content})
	}
	return converted
}
