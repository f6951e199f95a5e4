package conversation

import (
	"sync"

	"github.com/xpanvictor/aura/pkg/assistant"
)

type Message = assistant.Message

// TurnContext is the condensed memory fed back into prompts. It only grows by whole turns.
type TurnContext struct {
	mu   sync.RWMutex
	msgs []Message
}

func NewTurnContext() *TurnContext {
	return &TurnContext{}
}

// Window returns a copy of the last n messages, oldest first.
func (t *TurnContext) Window(n int) []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := len(t.msgs) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(t.msgs)-start)
	copy(out, t.msgs[start:])
	return out
}

// CommitTurn appends the user's words and the combined agent reply.
func (t *TurnContext) CommitTurn(userText, combined string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs,
		Message{Role: assistant.USER, Content: userText},
		Message{Role: assistant.ASSISTANT, Content: combined},
	)
}

func (t *TurnContext) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}
