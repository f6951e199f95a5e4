package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/xpanvictor/aura/internal/domains/conversation"
	"github.com/xpanvictor/aura/internal/domains/room"
	"github.com/xpanvictor/aura/internal/repository/transcript"
	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/assistant"
)

var (
	ErrSessionExpired = errors.New("session expired")
	ErrSessionEnded   = errors.New("session ended")
	ErrNoSession      = errors.New("no active session")
)

type Phase string

const (
	ACTIVE  Phase = "active"
	EXPIRED Phase = "expired"
	ENDED   Phase = "ended"
)

const (
	evExpire = "expire"
	evEnd    = "end"
)

const sinkTimeout = 5 * time.Second

// Runner is the part of the pipeline a session drives.
type Runner interface {
	Run(ctx context.Context, userText string, agents []room.AgentSpec, tc *conversation.TurnContext,
		emit conversation.Emitter, hooks conversation.Hooks) ([]conversation.AgentTurnResult, error)
}

type Config struct {
	ConnID   string
	OwnerID  string
	Room     room.Room
	Pipeline Runner
	Sink     transcript.Sink
	Logger   *Logger.Logger
	Now      func() time.Time
}

// Session is one time-boxed conversation between a client and a room's agents.
// Expiry is evaluated lazily at the start of each turn.
type Session struct {
	ID        string
	ConnID    string
	OwnerID   string
	Room      room.Room
	StartTime time.Time
	EndTime   time.Time

	turnMu sync.Mutex // one turn at a time

	mu      sync.Mutex
	machine *fsm.FSM
	turnCtx *conversation.TurnContext
	log     []conversation.LogEntry
	turns   int
	sinkID  string
	summary *transcript.Summary

	pipeline Runner
	sink     transcript.Sink
	now      func() time.Time
	logger   *Logger.Logger
}

// New starts a session. A room with no agents cannot be run.
func New(ctx context.Context, cfg Config) (*Session, error) {
	if len(cfg.Room.Agents) == 0 {
		return nil, fmt.Errorf("%w: room %q has no agents", room.ErrInvalidRoom, cfg.Room.Name)
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("session: pipeline is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sink == nil {
		cfg.Sink = transcript.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = Logger.NewNop()
	}

	start := cfg.Now()
	s := &Session{
		ID:        uuid.NewString(),
		ConnID:    cfg.ConnID,
		OwnerID:   cfg.OwnerID,
		Room:      cfg.Room,
		StartTime: start,
		EndTime:   start.Add(time.Duration(cfg.Room.SessionDurationMinutes) * time.Minute),
		machine: fsm.NewFSM(
			string(ACTIVE),
			fsm.Events{
				{Name: evExpire, Src: []string{string(ACTIVE)}, Dst: string(EXPIRED)},
				{Name: evEnd, Src: []string{string(ACTIVE), string(EXPIRED)}, Dst: string(ENDED)},
			},
			fsm.Callbacks{},
		),
		turnCtx:  conversation.NewTurnContext(),
		pipeline: cfg.Pipeline,
		sink:     cfg.Sink,
		now:      cfg.Now,
	}
	s.logger = cfg.Logger.With("session", s.ID, "room", cfg.Room.Name)

	agents := make([]string, len(cfg.Room.Agents))
	for i, a := range cfg.Room.Agents {
		agents[i] = a.Name
	}
	sctx, cancel := sinkContext(ctx)
	defer cancel()
	id, err := s.sink.CreateSession(sctx, transcript.SessionDoc{
		RoomName:  cfg.Room.Name,
		OwnerID:   cfg.OwnerID,
		Agents:    agents,
		StartTime: start,
		Status:    transcript.StatusActive,
	})
	if err != nil {
		s.logger.Warnf("transcript store unavailable, continuing without it: %v", err)
	}
	s.sinkID = id

	s.logger.Infof("session started for %s, ends at %s", cfg.ConnID, s.EndTime.Format(time.RFC3339))
	return s, nil
}

func sinkContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Phase(s.machine.Current())
}

// RemainingSeconds is max(0, EndTime-now) in whole seconds.
func (s *Session) RemainingSeconds() int {
	left := s.EndTime.Sub(s.now())
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// admit checks the session may take a turn, expiring it if its time is up.
func (s *Session) admit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch Phase(s.machine.Current()) {
	case ENDED:
		return ErrSessionEnded
	case EXPIRED:
		return ErrSessionExpired
	}
	if !s.now().Before(s.EndTime) {
		if err := s.machine.Event(context.Background(), evExpire); err != nil {
			s.logger.Errorf("expire transition: %v", err)
		}
		s.logger.Infof("session expired")
		return ErrSessionExpired
	}
	return nil
}

// CheckActive reports ErrSessionExpired or ErrSessionEnded when the session can no
// longer take turns. Callers use it to skip transcription work up front.
func (s *Session) CheckActive() error {
	return s.admit()
}

// ProcessTurn runs userText through the room's agents. An expired or ended session is
// rejected before anything is logged or any provider is called.
func (s *Session) ProcessTurn(ctx context.Context, userText string, emit conversation.Emitter) ([]conversation.AgentTurnResult, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	if err := s.admit(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.turns++
	s.mu.Unlock()

	s.LogInteraction(ctx, string(assistant.USER), userText, "")
	return s.pipeline.Run(ctx, userText, s.Room.Agents, s.turnCtx, emit, conversation.Hooks{
		Log: func(role, content, agentName string) {
			s.LogInteraction(ctx, role, content, agentName)
		},
		Remaining: s.RemainingSeconds,
	})
}

// Greet records the room greeting as the first assistant line and returns it.
func (s *Session) Greet(ctx context.Context) string {
	greeting := s.Room.Greeting
	if greeting == "" {
		greeting = room.DefaultGreeting
	}
	s.LogInteraction(ctx, string(assistant.ASSISTANT), greeting, "")
	return greeting
}

// LogInteraction appends to the full log and forwards the entry to the transcript sink.
// Sink failures are logged only.
func (s *Session) LogInteraction(ctx context.Context, role, content, agentName string) {
	entry := conversation.LogEntry{
		Timestamp: s.now(),
		Role:      role,
		Content:   content,
		AgentName: agentName,
	}
	s.mu.Lock()
	s.log = append(s.log, entry)
	sinkID := s.sinkID
	s.mu.Unlock()

	if sinkID == "" {
		return
	}
	sctx, cancel := sinkContext(ctx)
	defer cancel()
	if err := s.sink.Append(sctx, sinkID, entry); err != nil {
		s.logger.Warnf("transcript append failed: %v", err)
	}
}

// End finalizes the session. Only the first call has any effect; it reports whether
// this call was that one.
func (s *Session) End(ctx context.Context, status string) (transcript.Summary, bool) {
	s.mu.Lock()
	if s.summary != nil {
		sum := *s.summary
		s.mu.Unlock()
		return sum, false
	}
	if err := s.machine.Event(context.Background(), evEnd); err != nil {
		s.logger.Errorf("end transition: %v", err)
	}
	end := s.now()
	sum := transcript.Summary{
		EndTime:         end,
		Status:          status,
		DurationSeconds: math.Round(end.Sub(s.StartTime).Seconds()*1000) / 1000,
	}
	s.summary = &sum
	sinkID := s.sinkID
	s.mu.Unlock()

	if sinkID != "" {
		sctx, cancel := sinkContext(ctx)
		defer cancel()
		if err := s.sink.Finalize(sctx, sinkID, sum); err != nil {
			s.logger.Warnf("transcript finalize failed: %v", err)
		}
	}
	s.logger.Infof("session ended (%s) after %.1fs", status, sum.DurationSeconds)
	return sum, true
}

// Log returns a copy of the full interaction log.
func (s *Session) Log() []conversation.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conversation.LogEntry, len(s.log))
	copy(out, s.log)
	return out
}

// Context exposes the turn memory, read-only by convention.
func (s *Session) Context() *conversation.TurnContext { return s.turnCtx }

// TranscriptID is the id the sink assigned, empty when none did.
func (s *Session) TranscriptID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sinkID
}

type Info struct {
	ID               string    `json:"id"`
	ConnID           string    `json:"conn_id"`
	TranscriptID     string    `json:"transcript_id,omitempty"`
	Room             string    `json:"room"`
	Phase            Phase     `json:"phase"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	RemainingSeconds int       `json:"remaining_time"`
	Turns            int       `json:"turns"`
	LogEntries       int       `json:"log_entries"`
}

func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:               s.ID,
		ConnID:           s.ConnID,
		TranscriptID:     s.sinkID,
		Room:             s.Room.Name,
		Phase:            Phase(s.machine.Current()),
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		RemainingSeconds: s.RemainingSeconds(),
		Turns:            s.turns,
		LogEntries:       len(s.log),
	}
}
