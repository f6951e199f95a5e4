package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpanvictor/aura/internal/domains/conversation"
	"github.com/xpanvictor/aura/internal/domains/room"
	"github.com/xpanvictor/aura/internal/domains/session"
	"github.com/xpanvictor/aura/internal/repository/transcript"
	"github.com/xpanvictor/aura/pkg/assistant"
	"github.com/xpanvictor/aura/pkg/io/stt"
)

type passthrough struct{}

func (passthrough) Normalize(ctx context.Context, data []byte, hint string) ([]byte, error) {
	return data, nil
}

type scriptedSTT struct {
	mu    sync.Mutex
	heard [][]byte
}

// Transcribe echoes the audio bytes back as text.
func (s *scriptedSTT) Transcribe(ctx context.Context, wav []byte) (stt.Result, error) {
	s.mu.Lock()
	s.heard = append(s.heard, wav)
	s.mu.Unlock()
	return stt.Result{Text: string(wav), Confidence: 0.9}, nil
}

func (s *scriptedSTT) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.heard) == 0 {
		return ""
	}
	return string(s.heard[len(s.heard)-1])
}

type gatedChat struct {
	gate chan struct{}
}

func (c *gatedChat) Chat(ctx context.Context, msgs []assistant.Message, temperature float64, maxTokens int) (string, error) {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	system := msgs[0].Content
	return "reply from " + strings.TrimPrefix(system, "You are "), nil
}

type fakeTTS struct{}

func (fakeTTS) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return []byte("wav:" + voice), nil
}

type recordingSink struct {
	mu       sync.Mutex
	statuses []string
}

func (s *recordingSink) CreateSession(ctx context.Context, doc transcript.SessionDoc) (string, error) {
	return "doc-1", nil
}

func (s *recordingSink) Append(ctx context.Context, id string, e conversation.LogEntry) error {
	return nil
}

func (s *recordingSink) Finalize(ctx context.Context, id string, sum transcript.Summary) error {
	s.mu.Lock()
	s.statuses = append(s.statuses, sum.Status)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) finalized() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statuses...)
}

type harness struct {
	server   *httptest.Server
	registry *session.Registry
	stt      *scriptedSTT
	sink     *recordingSink
	handler  *WebSocketHandler
}

func newHarness(t *testing.T, chat *gatedChat) *harness {
	gin.SetMode(gin.TestMode)
	voices := room.NewVoicePolicy("aura-", []string{"aura-d0", "aura-d1", "aura-d2"})
	catalog, err := room.NewCatalog([]room.Room{{
		Name:                   "Panel",
		Greeting:               "Welcome",
		SessionDurationMinutes: 5,
		Agents: []room.AgentSpec{
			{Name: "A", SystemPrompt: "You are A", Voice: "aura-a"},
			{Name: "B", SystemPrompt: "You are B"},
		},
	}}, []int{5, 15})
	require.NoError(t, err)

	h := &harness{
		registry: session.NewRegistry(nil),
		stt:      &scriptedSTT{},
		sink:     &recordingSink{},
	}
	pipeline := conversation.NewPipeline(chat, fakeTTS{}, conversation.PipelineConfig{Voices: voices}, nil)
	h.handler = NewWebSocketHandler(Deps{
		Registry:    h.registry,
		Catalog:     catalog,
		Voices:      voices,
		Durations:   []int{5, 15},
		Pipeline:    pipeline,
		Sink:        h.sink,
		Normalizer:  passthrough{},
		Transcriber: h.stt,
		AudioBytes:  1024,
	})

	r := gin.New()
	h.handler.RegisterRoutes(r)
	h.server = httptest.NewServer(r)
	t.Cleanup(h.server.Close)
	return h
}

type event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	SessionID string          `json:"sessionId"`
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, typ string, data any) {
	require.NoError(t, c.WriteJSON(map[string]any{"type": typ, "data": data}))
}

func read(t *testing.T, c *websocket.Conn) event {
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev event
	require.NoError(t, c.ReadJSON(&ev))
	return ev
}

func readTypes(t *testing.T, c *websocket.Conn, n int) []event {
	out := make([]event, n)
	for i := range out {
		out[i] = read(t, c)
	}
	return out
}

func types(evs []event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}

// waitIdle blocks until no connection has a turn in flight.
func waitIdle(t *testing.T, h *harness) {
	require.Eventually(t, func() bool {
		for _, c := range h.handler.connectionManager.Snapshot() {
			if c.Busy {
				return false
			}
		}
		return true
	}, 5*time.Second, 5*time.Millisecond)
}

func startPanel(t *testing.T, c *websocket.Conn) SessionStartedMessage {
	send(t, c, "start_session", map[string]any{"room_index": 0})
	ev := read(t, c)
	require.Equal(t, conversation.EventSessionStarted, ev.Type, string(ev.Data))
	var started SessionStartedMessage
	require.NoError(t, json.Unmarshal(ev.Data, &started))
	return started
}

func TestFullTurnOverWebSocket(t *testing.T) {
	h := newHarness(t, &gatedChat{})
	c := h.dial(t)

	started := startPanel(t, c)
	assert.Equal(t, "Panel", started.Room)
	assert.Equal(t, 5, started.Duration)
	assert.Equal(t, "Welcome", started.Greeting)
	assert.Equal(t, []room.AgentVoice{{Name: "A", Voice: "aura-a"}, {Name: "B", Voice: "aura-d1"}}, started.Agents)
	assert.InDelta(t, 300, started.RemainingTime, 1)
	assert.Equal(t, 1, h.registry.Len())

	send(t, c, "process_audio", map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte("hello there"))})
	evs := readTypes(t, c, 11)
	assert.Equal(t, []string{
		"status", "transcription", "status",
		"agent_status", "agent_status", "agent_response",
		"agent_status", "agent_status", "agent_response",
		"status", "processing_complete",
	}, types(evs))

	var tr TranscriptionMessage
	require.NoError(t, json.Unmarshal(evs[1].Data, &tr))
	assert.Equal(t, "hello there", tr.Text)

	var second conversation.AgentTurnResult
	require.NoError(t, json.Unmarshal(evs[8].Data, &second))
	assert.Equal(t, "B", second.AgentName)
	assert.Equal(t, "reply from B", second.Text)
	assert.Equal(t, "aura-d1", second.Voice)
	assert.Equal(t, 1, second.Ordinal)
	assert.Equal(t, 2, second.TotalAgents)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("wav:aura-d1")), second.AudioBase64)
	assert.NotEmpty(t, evs[8].SessionID)

	var done ProcessingCompleteMessage
	require.NoError(t, json.Unmarshal(evs[10].Data, &done))
	assert.Equal(t, 2, done.TotalAgents)

	send(t, c, "end_session", nil)
	ev := read(t, c)
	assert.Equal(t, conversation.EventSessionEnded, ev.Type)
	assert.Equal(t, 0, h.registry.Len())
	assert.Equal(t, []string{transcript.StatusCompleted}, h.sink.finalized())
}

func TestBinaryFramesAreBuffered(t *testing.T) {
	h := newHarness(t, &gatedChat{})
	c := h.dial(t)
	startPanel(t, c)

	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, []byte("good ")))
	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, []byte("morning")))
	send(t, c, "process_audio", map[string]any{"audio": ""})

	evs := readTypes(t, c, 2)
	require.Equal(t, "transcription", evs[1].Type)
	assert.Equal(t, "good morning", h.stt.last())
	readTypes(t, c, 9)
	waitIdle(t, h)

	send(t, c, "process_audio", map[string]any{})
	ev := read(t, c)
	assert.Equal(t, "error", ev.Type)
	assert.Contains(t, string(ev.Data), "No audio data received")
}

func TestBinaryBufferOverflow(t *testing.T) {
	h := newHarness(t, &gatedChat{})
	c := h.dial(t)
	startPanel(t, c)

	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, make([]byte, 2048)))
	ev := read(t, c)
	assert.Equal(t, "error", ev.Type)
	var msg ErrorMessage
	require.NoError(t, json.Unmarshal(ev.Data, &msg))
	assert.True(t, msg.Recoverable)
}

func TestProcessAudioWithoutSession(t *testing.T) {
	h := newHarness(t, &gatedChat{})
	c := h.dial(t)

	send(t, c, "process_audio", map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte("hi"))})
	ev := read(t, c)
	require.Equal(t, "error", ev.Type)
	var msg ErrorMessage
	require.NoError(t, json.Unmarshal(ev.Data, &msg))
	assert.Equal(t, ErrorMessage{Message: "No active session", Recoverable: false}, msg)
}

func TestBusyConnectionRejectsSecondTurn(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, &gatedChat{gate: gate})
	c := h.dial(t)
	startPanel(t, c)

	audio := base64.StdEncoding.EncodeToString([]byte("one"))
	send(t, c, "process_audio", map[string]any{"audio": audio})
	evs := readTypes(t, c, 4)
	require.Equal(t, "agent_status", evs[3].Type)

	send(t, c, "process_audio", map[string]any{"audio": audio})
	ev := read(t, c)
	require.Equal(t, "error", ev.Type)
	assert.Contains(t, string(ev.Data), "Still processing")

	close(gate)
	rest := readTypes(t, c, 7)
	assert.Equal(t, "processing_complete", rest[6].Type)
}

func TestUnknownRoomAndBadMessages(t *testing.T) {
	h := newHarness(t, &gatedChat{})
	c := h.dial(t)

	send(t, c, "start_session", map[string]any{"room_index": 9})
	ev := read(t, c)
	assert.Equal(t, "error", ev.Type)

	send(t, c, "start_session", map[string]any{"room_index": 0, "duration_minutes": 7})
	ev = read(t, c)
	assert.Equal(t, "error", ev.Type)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("{not json")))
	ev = read(t, c)
	assert.Equal(t, "error", ev.Type)

	send(t, c, "dance", nil)
	ev = read(t, c)
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, 0, h.registry.Len())
}

func TestInlineRoom(t *testing.T) {
	h := newHarness(t, &gatedChat{})
	c := h.dial(t)

	send(t, c, "start_session", map[string]any{
		"room": map[string]any{
			"name":   "Custom Session",
			"agents": []map[string]any{{"name": "Solo", "system_prompt": "You are Solo"}},
		},
		"duration_minutes": 15,
	})
	ev := read(t, c)
	require.Equal(t, conversation.EventSessionStarted, ev.Type, string(ev.Data))
	var started SessionStartedMessage
	require.NoError(t, json.Unmarshal(ev.Data, &started))
	assert.Equal(t, 15, started.Duration)
	assert.Equal(t, []room.AgentVoice{{Name: "Solo", Voice: "aura-d0"}}, started.Agents)
}

func TestDuplicateStartReplacesSession(t *testing.T) {
	h := newHarness(t, &gatedChat{})
	c := h.dial(t)
	startPanel(t, c)
	startPanel(t, c)
	assert.Equal(t, 1, h.registry.Len())
	assert.Equal(t, []string{transcript.StatusReplaced}, h.sink.finalized())
}

func TestDisconnectFinalizesSession(t *testing.T) {
	h := newHarness(t, &gatedChat{})
	c := h.dial(t)
	startPanel(t, c)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return h.registry.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{transcript.StatusDisconnected}, h.sink.finalized())
	require.Eventually(t, func() bool { return h.handler.ConnectionCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestStats(t *testing.T) {
	h := newHarness(t, &gatedChat{})
	c := h.dial(t)
	startPanel(t, c)

	resp, err := http.Get(h.server.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			ActiveConnections int            `json:"active_connections"`
			ActiveSessions    int            `json:"active_sessions"`
			Sessions          []session.Info `json:"sessions"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Data.ActiveConnections)
	assert.Equal(t, 1, body.Data.ActiveSessions)
	require.Len(t, body.Data.Sessions, 1)
	assert.Equal(t, "Panel", body.Data.Sessions[0].Room)
}
