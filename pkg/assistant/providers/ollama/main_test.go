package ollama

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/assistant"
)

func TestNewRequiresServers(t *testing.T) {
	_, err := New(nil, "llama3", Logger.NewNop())
	assert.ErrorIs(t, err, assistant.ErrNoBackend)
}

func TestConvertMsgs(t *testing.T) {
	got := convertMsgs([]assistant.Message{
		{Role: assistant.SYSTEM, Content: "s"},
		{Role: assistant.USER, Content: "u"},
	})
	assert.Len(t, got, 2)
	assert.Equal(t, "system", got[0].Role)
	assert.Equal(t, "u", got[1].Content)
}
