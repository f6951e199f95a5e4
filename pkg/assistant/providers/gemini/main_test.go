package gemini

import (
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/xpanvictor/aura/pkg/assistant"
)

func TestSplitMessages(t *testing.T) {
	system, history, last := splitMessages([]assistant.Message{
		{Role: assistant.SYSTEM, Content: "be kind"},
		{Role: assistant.USER, Content: "hi"},
		{Role: assistant.ASSISTANT, Content: "hello"},
		{Role: assistant.USER, Content: "how are you"},
	})

	assert.Equal(t, "be kind", system)
	assert.Equal(t, "how are you", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, genai.Text("hello"), history[1].Parts[0])
}

func TestMapError(t *testing.T) {
	err := mapError(&googleapi.Error{Code: 429, Message: "quota"})
	assert.True(t, assistant.IsRateLimited(err))

	err = mapError(grpcstatus.Error(codes.ResourceExhausted, "quota"))
	assert.True(t, assistant.IsRateLimited(err))

	err = mapError(&googleapi.Error{Code: 500, Message: "boom"})
	var se *assistant.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.Code)
	assert.False(t, se.RateLimited())

	plain := errors.New("dial tcp: refused")
	assert.ErrorIs(t, mapError(plain), plain)
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("Hi "), genai.Text("there")}},
	}}}
	assert.Equal(t, "Hi there", responseText(resp))
	assert.Equal(t, "", responseText(nil))
}
