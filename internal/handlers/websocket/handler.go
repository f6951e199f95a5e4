package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/xpanvictor/aura/internal/domains/conversation"
	"github.com/xpanvictor/aura/internal/domains/room"
	"github.com/xpanvictor/aura/internal/domains/session"
	"github.com/xpanvictor/aura/internal/domains/user"
	"github.com/xpanvictor/aura/internal/repository/transcript"
	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/io/audioring"
	"github.com/xpanvictor/aura/pkg/io/stt"
)

const (
	maxMessageBytes   = 32 << 20
	defaultAudioBytes = 8 << 20
)

// AudioNormalizer turns browser recordings into WAV for transcription.
type AudioNormalizer interface {
	Normalize(ctx context.Context, data []byte, hint string) ([]byte, error)
}

// Observer is told about connection churn and transcription outcomes.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	ObserveTranscription(outcome string, took time.Duration)
}

type Deps struct {
	Registry    *session.Registry
	Catalog     *room.Catalog
	Voices      room.VoicePolicy
	Durations   []int
	Pipeline    session.Runner
	Sink        transcript.Sink
	Normalizer  AudioNormalizer
	Transcriber stt.Transcriber
	// UserService is optional; without it every connection is anonymous.
	UserService user.UserService
	Observer    Observer
	AudioBytes  int
	Logger      *Logger.Logger
}

// WebSocketHandler runs conversation sessions over WebSocket connections.
type WebSocketHandler struct {
	deps              Deps
	logger            *Logger.Logger
	connectionManager *ConnectionManager
	upgrader          websocket.Upgrader
}

func NewWebSocketHandler(deps Deps) *WebSocketHandler {
	if deps.Logger == nil {
		deps.Logger = Logger.NewNop()
	}
	if deps.Sink == nil {
		deps.Sink = transcript.Nop{}
	}
	if deps.AudioBytes <= 0 {
		deps.AudioBytes = defaultAudioBytes
	}
	logger := deps.Logger.Named("ws")
	return &WebSocketHandler{
		deps:              deps,
		logger:            logger,
		connectionManager: NewConnectionManager(logger),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/ws", h.HandleWebSocket)
	router.GET("/ws/stats", h.HandleStats)
}

// HandleWebSocket upgrades the request and serves one client until it disconnects.
// A token query parameter, when present, must be valid and ties transcripts to its user.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	var ownerID string
	if token := c.Query("token"); token != "" && h.deps.UserService != nil {
		claims, err := h.deps.UserService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			h.logger.Debugf("websocket token rejected: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		ownerID = claims.UserID
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("websocket upgrade failed: %v", err)
		return
	}
	ws.SetReadLimit(maxMessageBytes)

	conn := NewConnection(ws, ownerID, h.deps.AudioBytes, h.logger)
	h.connectionManager.RegisterConnection(conn)
	if h.deps.Observer != nil {
		h.deps.Observer.ConnectionOpened()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		conn.abortTurn()
		h.finalize(conn, transcript.StatusDisconnected)
		h.connectionManager.UnregisterConnection(conn.ID)
		if h.deps.Observer != nil {
			h.deps.Observer.ConnectionClosed()
		}
	}()

	h.handleConnection(ctx, conn)
}

// HandleStats reports open connections and live sessions
// @Summary WebSocket statistics
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /ws/stats [get]
func (h *WebSocketHandler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"data": gin.H{
			"active_connections": h.connectionManager.Count(),
			"active_sessions":    h.deps.Registry.Len(),
			"connections":        h.connectionManager.Snapshot(),
			"sessions":           h.deps.Registry.Snapshot(),
		},
	})
}

func (h *WebSocketHandler) handleConnection(ctx context.Context, conn *Connection) {
	for {
		messageType, data, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				conn.logger.Warnf("websocket read error: %v", err)
			} else {
				conn.logger.Infof("websocket closed")
			}
			return
		}
		conn.touch()

		switch messageType {
		case websocket.TextMessage:
			h.handleTextMessage(ctx, conn, data)
		case websocket.BinaryMessage:
			h.handleBinaryMessage(conn, data)
		}
	}
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, conn *Connection, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		conn.SendError("Invalid message format", true)
		return
	}

	switch msg.Type {
	case MessageTypeStartSession:
		var req StartSessionMessage
		if err := decodeData(msg.Data, &req); err != nil {
			conn.SendError("Invalid start_session payload", true)
			return
		}
		h.startSession(ctx, conn, req)

	case MessageTypeProcessAudio:
		var req ProcessAudioMessage
		if err := decodeData(msg.Data, &req); err != nil {
			conn.SendError("Invalid process_audio payload", true)
			return
		}
		turnCtx, ok := conn.startTurn(ctx)
		if !ok {
			conn.SendError("Still processing the previous message", true)
			return
		}
		go func() {
			defer conn.finishTurn()
			h.runTurn(turnCtx, conn, req)
		}()

	case MessageTypeEndSession:
		conn.abortTurn()
		h.finalize(conn, transcript.StatusCompleted)
		if err := conn.SendWebSocketMessage(conversation.EventSessionEnded, NoticeMessage{Message: "Session saved"}); err != nil {
			conn.logger.Debugf("session_ended not delivered: %v", err)
		}

	default:
		conn.SendError(fmt.Sprintf("Unknown message type: %s", msg.Type), true)
	}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (h *WebSocketHandler) handleBinaryMessage(conn *Connection, data []byte) {
	if len(data) == 0 {
		return
	}
	err := conn.audio.Enqueue(audioring.Chunk{Data: data, Timestamp: time.Now()})
	if errors.Is(err, audioring.ErrBufferFull) {
		conn.SendError("Audio buffer full; send process_audio to consume it", true)
		return
	}
	if err != nil {
		conn.logger.Errorf("buffer audio: %v", err)
		conn.SendError("Failed to buffer audio", true)
	}
}

// resolveRoom picks the room a start_session request asks for.
func (h *WebSocketHandler) resolveRoom(req StartSessionMessage) (room.Room, error) {
	var (
		r   room.Room
		err error
	)
	switch {
	case req.Room != nil:
		r = *req.Room
		r.Agents = append([]room.AgentSpec(nil), req.Room.Agents...)
		if req.DurationMinutes > 0 {
			r.SessionDurationMinutes = req.DurationMinutes
		}
		r.Normalize()
		if err := r.Validate(h.deps.Durations); err != nil {
			return room.Room{}, err
		}
		return r, nil
	case req.RoomName != "":
		r, err = h.deps.Catalog.ByName(req.RoomName)
	default:
		idx := 0
		if req.RoomIndex != nil {
			idx = *req.RoomIndex
		}
		r, err = h.deps.Catalog.ByIndex(idx)
	}
	if err != nil {
		return room.Room{}, err
	}
	if req.DurationMinutes > 0 {
		if err := room.ValidateDuration(req.DurationMinutes, h.deps.Durations); err != nil {
			return room.Room{}, err
		}
		r.SessionDurationMinutes = req.DurationMinutes
	}
	return r, nil
}

func (h *WebSocketHandler) startSession(ctx context.Context, conn *Connection, req StartSessionMessage) {
	if conn.Busy() {
		conn.SendError("Still processing the previous message", true)
		return
	}
	r, err := h.resolveRoom(req)
	if err != nil {
		conn.SendError(err.Error(), false)
		return
	}

	s, err := h.deps.Registry.Start(ctx, conn.ID, func(ctx context.Context) (*session.Session, error) {
		return session.New(ctx, session.Config{
			ConnID:   conn.ID,
			OwnerID:  conn.OwnerID,
			Room:     r,
			Pipeline: h.deps.Pipeline,
			Sink:     h.deps.Sink,
			Logger:   conn.logger,
		})
	})
	if err != nil {
		conn.logger.Errorf("start session: %v", err)
		conn.SendError(err.Error(), false)
		return
	}
	conn.audio.Reset()
	conn.setSessionID(s.ID)

	greeting := s.Greet(ctx)
	if err := conn.SendWebSocketMessage(conversation.EventSessionStarted, SessionStartedMessage{
		Room:          r.Name,
		Duration:      r.SessionDurationMinutes,
		Agents:        r.Voices(h.deps.Voices),
		Greeting:      greeting,
		RemainingTime: s.RemainingSeconds(),
	}); err != nil {
		conn.logger.Debugf("session_started not delivered: %v", err)
	}
}

// finalize ends the connection's session, if any. An expired session keeps its
// expired status regardless of how it was closed.
func (h *WebSocketHandler) finalize(conn *Connection, status string) {
	s, ok := h.deps.Registry.Get(conn.ID)
	if !ok {
		return
	}
	if s.Phase() == session.EXPIRED {
		status = transcript.StatusExpired
	}
	if _, err := h.deps.Registry.End(context.Background(), conn.ID, status); err != nil && !errors.Is(err, session.ErrNoSession) {
		conn.logger.Warnf("finalize session: %v", err)
	}
	conn.setSessionID("")
}

// Close closes every open socket.
func (h *WebSocketHandler) Close() error {
	return h.connectionManager.Close()
}

func (h *WebSocketHandler) ConnectionCount() int {
	return h.connectionManager.Count()
}
