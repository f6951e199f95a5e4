package transcript

import (
	"context"
	"errors"
	"time"

	"github.com/xpanvictor/aura/internal/domains/conversation"
)

var ErrNotFound = errors.New("transcript: session not found")

const (
	StatusActive       = "active"
	StatusCompleted    = "completed"
	StatusExpired      = "expired"
	StatusDisconnected = "disconnected"
	StatusReplaced     = "replaced"
)

// SessionDoc is the stored shape of one session's transcript.
type SessionDoc struct {
	ID              string                  `json:"id" bson:"-"`
	RoomName        string                  `json:"room_name" bson:"room_name"`
	OwnerID         string                  `json:"owner_id,omitempty" bson:"owner_id,omitempty"`
	Agents          []string                `json:"agents,omitempty" bson:"agents,omitempty"`
	StartTime       time.Time               `json:"start_time" bson:"start_time"`
	EndTime         *time.Time              `json:"end_time,omitempty" bson:"end_time,omitempty"`
	Status          string                  `json:"status" bson:"status"`
	DurationSeconds float64                 `json:"duration_seconds,omitempty" bson:"duration_seconds,omitempty"`
	Conversation    []conversation.LogEntry `json:"conversation,omitempty" bson:"conversation"`
}

// VisibleTo reports whether ownerID may read doc. Anonymous callers ("") only see
// sessions that were started anonymously.
func (d SessionDoc) VisibleTo(ownerID string) bool { return d.OwnerID == ownerID }

// Summary closes a session document.
type Summary struct {
	EndTime         time.Time
	Status          string
	DurationSeconds float64
}

// Sink receives a session transcript incrementally. Implementations are best-effort
// from the caller's point of view: errors are logged, never surfaced to clients.
type Sink interface {
	CreateSession(ctx context.Context, doc SessionDoc) (string, error)
	Append(ctx context.Context, id string, entry conversation.LogEntry) error
	Finalize(ctx context.Context, id string, s Summary) error
}

// Nop discards everything. Used when no store is configured.
type Nop struct{}

func (Nop) CreateSession(ctx context.Context, doc SessionDoc) (string, error) { return "", nil }

func (Nop) Append(ctx context.Context, id string, entry conversation.LogEntry) error { return nil }

func (Nop) Finalize(ctx context.Context, id string, s Summary) error { return nil }

// Archive reads finished sessions back. ListCompleted returns only sessions owned by
// ownerID; an empty ownerID selects the anonymous ones.
type Archive interface {
	ListCompleted(ctx context.Context, ownerID string, limit int64) ([]SessionDoc, error)
	Get(ctx context.Context, id string) (SessionDoc, error)
}

// LiveReader reads a mirrored in-flight session.
type LiveReader interface {
	Live(ctx context.Context, id string) (SessionDoc, error)
}
