package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/xpanvictor/aura/pkg/assistant"
)

const providerName = "gemini"

// GeminiProvider completes chats with a Gemini model.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// New creates a new GeminiProvider instance.
func New(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}

	return &GeminiProvider{client: client, model: model}, nil
}

var _ assistant.Backend = (*GeminiProvider)(nil)

func (gp *GeminiProvider) Name() string { return providerName }

// Complete implements assistant.Backend. System messages become the system instruction,
// everything before the last message becomes chat history.
func (gp *GeminiProvider) Complete(ctx context.Context, req assistant.Request) (string, error) {
	model := gp.client.GenerativeModel(gp.model)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	system, history, last := splitMessages(req.Messages)
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", mapError(err)
	}
	return responseText(resp), nil
}

func (gp *GeminiProvider) Close() error {
	return gp.client.Close()
}

func splitMessages(msgs []assistant.Message) (system string, history []*genai.Content, last string) {
	var sys []string
	var convo []assistant.Message
	for _, m := range msgs {
		if m.Role == assistant.SYSTEM {
			sys = append(sys, m.Content)
			continue
		}
		convo = append(convo, m)
	}
	if len(convo) > 0 {
		last = convo[len(convo)-1].Content
		convo = convo[:len(convo)-1]
	}
	for _, m := range convo {
		role := "user"
		if m.Role == assistant.ASSISTANT {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return strings.Join(sys, "\n"), history, last
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &assistant.StatusError{Provider: providerName, Code: gerr.Code, Message: gerr.Message}
	}
	if status.Code(err) == codes.ResourceExhausted {
		return &assistant.StatusError{Provider: providerName, Code: http.StatusTooManyRequests, Message: err.Error()}
	}
	return fmt.Errorf("gemini chat failed: %w", err)
}
