package conversation

import "context"

// Event names pushed to clients.
const (
	EventSessionStarted     = "session_started"
	EventStatus             = "status"
	EventTranscription      = "transcription"
	EventAgentStatus        = "agent_status"
	EventAgentResponse      = "agent_response"
	EventProcessingComplete = "processing_complete"
	EventSessionExpired     = "session_expired"
	EventSessionEnded       = "session_ended"
	EventError              = "error"
)

const (
	AgentThinking = "thinking"
	AgentSpeaking = "speaking"
)

// Emitter delivers one event to the client. It returns once the event is written.
type Emitter interface {
	Emit(ctx context.Context, event string, payload any) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, event string, payload any) error

func (f EmitterFunc) Emit(ctx context.Context, event string, payload any) error {
	return f(ctx, event, payload)
}

type AgentStatus struct {
	Agent   string `json:"agent"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AgentTurnResult is what a client receives for each agent, in agent order.
type AgentTurnResult struct {
	AgentName        string `json:"agent"`
	Text             string `json:"text"`
	AudioBase64      string `json:"audio,omitempty"`
	Voice            string `json:"voice"`
	Ordinal          int    `json:"agent_index"`
	TotalAgents      int    `json:"total_agents"`
	RemainingSeconds int    `json:"remaining_time"`
	Fallback         bool   `json:"fallback,omitempty"`
}

// HasAudio reports whether synthesis succeeded for this result.
func (r AgentTurnResult) HasAudio() bool {
	return r.AudioBase64 != ""
}
