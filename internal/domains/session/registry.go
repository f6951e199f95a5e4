package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xpanvictor/aura/internal/repository/transcript"
	"github.com/xpanvictor/aura/pkg/Logger"
)

// Factory builds a session once the registry has made room for it.
type Factory func(ctx context.Context) (*Session, error)

// Observer is told when sessions come and go.
type Observer interface {
	SessionStarted()
	SessionEnded(status string, lifetime time.Duration)
}

// Registry maps live connections to their session. It is shared by all connections.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	observer Observer
	logger   *Logger.Logger
}

func NewRegistry(logger *Logger.Logger) *Registry {
	if logger == nil {
		logger = Logger.NewNop()
	}
	return &Registry{sessions: make(map[string]*Session), logger: logger.Named("registry")}
}

func (r *Registry) WithObserver(o Observer) *Registry {
	r.observer = o
	return r
}

// Start creates the connection's session. A session already bound to connID is
// finalized with status "replaced" before the new one is built.
func (r *Registry) Start(ctx context.Context, connID string, factory Factory) (*Session, error) {
	r.mu.Lock()
	old := r.sessions[connID]
	delete(r.sessions, connID)
	r.mu.Unlock()

	if old != nil {
		r.logger.Infof("replacing session %s on %s", old.ID, connID)
		r.finalize(ctx, old, transcript.StatusReplaced)
	}

	s, err := factory(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if racing := r.sessions[connID]; racing != nil {
		defer r.finalize(ctx, racing, transcript.StatusReplaced)
	}
	r.sessions[connID] = s
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.SessionStarted()
	}
	return s, nil
}

func (r *Registry) Get(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

// End removes and finalizes the connection's session. It returns ErrNoSession when there is none.
func (r *Registry) End(ctx context.Context, connID, status string) (transcript.Summary, error) {
	r.mu.Lock()
	s, ok := r.sessions[connID]
	delete(r.sessions, connID)
	r.mu.Unlock()

	if !ok {
		return transcript.Summary{}, ErrNoSession
	}
	return r.finalize(ctx, s, status), nil
}

func (r *Registry) finalize(ctx context.Context, s *Session, status string) transcript.Summary {
	sum, first := s.End(ctx, status)
	if first && r.observer != nil {
		r.observer.SessionEnded(status, sum.EndTime.Sub(s.StartTime))
	}
	return sum
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot lists live sessions, oldest first.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// CloseAll finalizes every session, used on shutdown.
func (r *Registry) CloseAll(ctx context.Context, status string) int {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		r.finalize(ctx, s, status)
	}
	return len(sessions)
}
