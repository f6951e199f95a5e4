package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xpanvictor/aura/internal/domains/conversation"
	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/io/audioring"
)

const writeWait = 10 * time.Second

var errConnClosed = errors.New("connection closed")

// Connection is one client socket. Writes are serialized; at most one turn runs at a time.
type Connection struct {
	ID          string
	OwnerID     string
	Conn        *websocket.Conn
	ConnectedAt time.Time

	audio  audioring.Buffer
	logger *Logger.Logger

	mutex      sync.Mutex
	closed     bool
	sessionID  string
	lastActive time.Time

	busy       atomic.Bool
	turns      sync.WaitGroup
	turnMu     sync.Mutex
	cancelTurn context.CancelFunc
}

func NewConnection(conn *websocket.Conn, ownerID string, audioBytes int, logger *Logger.Logger) *Connection {
	id := uuid.NewString()
	now := time.Now()
	return &Connection{
		ID:          id,
		OwnerID:     ownerID,
		Conn:        conn,
		ConnectedAt: now,
		lastActive:  now,
		audio:       audioring.New(audioBytes),
		logger:      logger.With("conn", id),
	}
}

// Emit implements conversation.Emitter.
func (c *Connection) Emit(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.SendWebSocketMessage(event, payload)
}

func (c *Connection) SendWebSocketMessage(msgType string, data any) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return errConnClosed
	}
	msg := WSMessage{
		Type:      msgType,
		Data:      data,
		SessionID: c.sessionID,
		Timestamp: time.Now(),
	}
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(msg)
}

// SendError sends an error event. Write failures are only logged; the read loop
// notices a dead socket on its own.
func (c *Connection) SendError(message string, recoverable bool) {
	if err := c.SendWebSocketMessage(conversation.EventError, ErrorMessage{
		Message:     message,
		Recoverable: recoverable,
	}); err != nil && !errors.Is(err, errConnClosed) {
		c.logger.Debugf("error event not delivered: %v", err)
	}
}

func (c *Connection) setSessionID(id string) {
	c.mutex.Lock()
	c.sessionID = id
	c.mutex.Unlock()
}

func (c *Connection) SessionID() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.sessionID
}

func (c *Connection) touch() {
	c.mutex.Lock()
	c.lastActive = time.Now()
	c.mutex.Unlock()
}

func (c *Connection) LastActive() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.lastActive
}

// startTurn reserves the connection for one turn. It returns false while another
// turn is running.
func (c *Connection) startTurn(parent context.Context) (context.Context, bool) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	c.turnMu.Lock()
	c.cancelTurn = cancel
	c.turnMu.Unlock()
	c.turns.Add(1)
	return ctx, true
}

func (c *Connection) finishTurn() {
	c.turnMu.Lock()
	if c.cancelTurn != nil {
		c.cancelTurn()
		c.cancelTurn = nil
	}
	c.turnMu.Unlock()
	c.busy.Store(false)
	c.turns.Done()
}

// abortTurn cancels the running turn, if any, and waits for it to return.
func (c *Connection) abortTurn() {
	c.turnMu.Lock()
	if c.cancelTurn != nil {
		c.cancelTurn()
	}
	c.turnMu.Unlock()
	c.turns.Wait()
}

func (c *Connection) Busy() bool { return c.busy.Load() }

// Close marks the connection closed and closes the socket.
func (c *Connection) Close() error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return nil
	}
	c.closed = true
	c.mutex.Unlock()
	c.audio.Reset()
	return c.Conn.Close()
}
