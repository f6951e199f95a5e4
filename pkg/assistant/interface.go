package assistant

import (
	"context"
	"time"
)

type Role string

const (
	USER      Role = "user"
	ASSISTANT Role = "assistant"
	SYSTEM    Role = "system"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion attempt handed to a Backend.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Backend performs exactly one completion call against a provider.
// Rate-limit answers must surface as *StatusError so the Gateway can back off.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Chatter is what callers outside this package depend on.
type Chatter interface {
	Chat(ctx context.Context, msgs []Message, temperature float64, maxTokens int) (string, error)
}

// Observer receives one callback per completion attempt.
type Observer interface {
	ObserveChat(provider, outcome string, took time.Duration)
}

const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
	OutcomeEmpty       = "empty"
)
