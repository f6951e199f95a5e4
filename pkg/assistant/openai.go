package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig targets any OpenAI-compatible chat endpoint (Cerebras by default).
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type openAIBackend struct {
	client openai.Client
	model  string
}

// NewOpenAIBackend builds a Backend with SDK retries disabled; retrying belongs to the Gateway.
func NewOpenAIBackend(cfg OpenAIConfig, opts ...option.RequestOption) Backend {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	return &openAIBackend{
		client: openai.NewClient(append(base, opts...)...),
		model:  cfg.Model,
	}
}

func (o *openAIBackend) Name() string { return "openai" }

// Complete implements Backend.
func (o *openAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    convertToOpenaiMsgs(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: o.Name(), Code: apiErr.StatusCode, Message: apiErr.Message}
		}
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}

func convertToOpenaiMsgs(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case ASSISTANT:
			converted = append(converted, openai.AssistantMessage(msg.Content))
		case SYSTEM:
			converted = append(converted, openai.SystemMessage(msg.Content))
		default:
			converted = append(converted, openai.UserMessage(msg.Content))
		}
	}
	return converted
}
