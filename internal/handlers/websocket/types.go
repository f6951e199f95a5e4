package websocket

import (
	"encoding/json"
	"time"

	"github.com/xpanvictor/aura/internal/domains/room"
)

// MessageType names an inbound client event. Outbound events use the
// conversation package's event names.
type MessageType string

const (
	MessageTypeStartSession MessageType = "start_session"
	MessageTypeProcessAudio MessageType = "process_audio"
	MessageTypeEndSession   MessageType = "end_session"
)

// Status types carried by the status event.
const (
	StatusTranscribing = "transcribing"
	StatusProcessing   = "processing"
	StatusComplete     = "complete"
)

// WSMessage is the envelope for every frame sent to the client.
type WSMessage struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// inboundMessage is the envelope for text frames from the client.
type inboundMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StartSessionMessage selects a configured room by index or name, or carries an
// inline room. DurationMinutes overrides the room's own duration when set.
type StartSessionMessage struct {
	RoomIndex       *int       `json:"room_index,omitempty"`
	RoomName        string     `json:"room_name,omitempty"`
	Room            *room.Room `json:"room,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
}

// ProcessAudioMessage carries one base64 recording. An empty Audio consumes the
// bytes uploaded as binary frames since the last turn.
type ProcessAudioMessage struct {
	Audio  string `json:"audio"`
	Format string `json:"format,omitempty"`
}

type SessionStartedMessage struct {
	Room          string            `json:"room"`
	Duration      int               `json:"duration"`
	Agents        []room.AgentVoice `json:"agents"`
	Greeting      string            `json:"greeting"`
	RemainingTime int               `json:"remaining_time"`
}

type StatusMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type TranscriptionMessage struct {
	Text string `json:"text"`
}

type ProcessingCompleteMessage struct {
	TotalAgents   int `json:"total_agents"`
	RemainingTime int `json:"remaining_time"`
}

// NoticeMessage is the payload of session_expired and session_ended.
type NoticeMessage struct {
	Message string `json:"message"`
}

type ErrorMessage struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}
