package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/xpanvictor/aura/internal/config"
	"github.com/xpanvictor/aura/internal/repository/transcript"
	"github.com/xpanvictor/aura/internal/server"
	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/assistant"
	"github.com/xpanvictor/aura/pkg/io/stt"
	sttdeepgram "github.com/xpanvictor/aura/pkg/io/stt/deepgram"
	"github.com/xpanvictor/aura/pkg/io/stt/whisper"
	ttsdeepgram "github.com/xpanvictor/aura/pkg/io/tts/deepgram"
	"github.com/xpanvictor/aura/pkg/io/tts/piper"
)

const testRooms = `{"rooms": [{
  "name": "Panel",
  "greeting": "Welcome",
  "session_duration_minutes": 5,
  "agents": [{"name": "A", "system_prompt": "You are A"}, {"name": "B", "system_prompt": "You are B"}]
}]}`

type echoBackend struct{}

func (echoBackend) Name() string { return "echo" }

func (echoBackend) Complete(ctx context.Context, req assistant.Request) (string, error) {
	return "ok", nil
}

type silentSynth struct{}

func (silentSynth) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return []byte("RIFF"), nil
}

type fixedSTT struct{}

func (fixedSTT) Transcribe(ctx context.Context, wav []byte) (stt.Result, error) {
	return stt.Result{Text: "hello"}, nil
}

func testSettings(t *testing.T, redisAddr string) *config.Settings {
	dir := t.TempDir()
	rooms := filepath.Join(dir, "rooms.json")
	require.NoError(t, os.WriteFile(rooms, []byte(testRooms), 0o644))

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
env: test
auth:
  jwt_secret: test-secret
redis:
  enabled: true
  addr: `+redisAddr+`
session:
  rooms_path: `+rooms+`
`), 0o644))
	cfg, err := config.LoadFile(cfgPath)
	require.NoError(t, err)
	return cfg
}

func testDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func newTestApp(t *testing.T) (*App, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	a, err := NewAppWith(t.Context(), testSettings(t, mr.Addr()), Logger.NewNop(), Overrides{
		Backend:     echoBackend{},
		Synthesizer: silentSynth{},
		Transcriber: fixedSTT{},
		DB:          testDB(t),
	})
	require.NoError(t, err)
	return a, mr
}

func TestNewAppWiring(t *testing.T) {
	a, _ := newTestApp(t)
	defer func() { assert.NoError(t, a.Shutdown(context.Background())) }()

	assert.Equal(t, 1, a.Catalog.Len())
	assert.NotNil(t, a.UserService)
	assert.Nil(t, a.Archive)
	assert.NotNil(t, a.Live)
	assert.IsType(t, &transcript.RedisMirror{}, a.Sink)
	assert.Equal(t, "echo", a.Gateway.Provider())
}

func TestNewAppRequiresJWTSecret(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testSettings(t, mr.Addr())
	cfg.Auth.JWTSecret = ""

	_, err := NewAppWith(t.Context(), cfg, nil, Overrides{
		Backend:     echoBackend{},
		Synthesizer: silentSynth{},
		Transcriber: fixedSTT{},
		DB:          testDB(t),
	})
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestNewAppBadRoomsFile(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testSettings(t, mr.Addr())
	cfg.Session.RoomsPath = filepath.Join(t.TempDir(), "missing.json")

	_, err := NewAppWith(t.Context(), cfg, nil, Overrides{Backend: echoBackend{}})
	assert.Error(t, err)
}

func TestNewChatBackend(t *testing.T) {
	b, closer, err := NewChatBackend(t.Context(), config.LLMConfig{Provider: "openai", APIKey: "k", Model: "m"}, Logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "openai", b.Name())
	assert.NoError(t, closer())

	_, closer, err = NewChatBackend(t.Context(), config.LLMConfig{Provider: "carrier-pigeon"}, Logger.NewNop())
	assert.Error(t, err)
	assert.NotNil(t, closer)
}

func TestAppServesSessionEndToEnd(t *testing.T) {
	a, mr := newTestApp(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	server.InitializeRoutes(t.Context(), a.Config, r, a.GetServerDependencies())
	srv := httptest.NewServer(r)
	defer srv.Close()

	// account
	body, _ := json.Marshal(map[string]string{"email": "Ada@Example.com", "password": "pw"})
	resp, err := http.Post(srv.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	resp.Body.Close()
	require.NotEmpty(t, login.Token)

	// session
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + login.Token
	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteJSON(map[string]any{"type": "start_session", "data": map[string]any{"room_index": 0}}))
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev struct {
		Type string `json:"type"`
	}
	require.NoError(t, c.ReadJSON(&ev))
	assert.Equal(t, "session_started", ev.Type)
	require.Equal(t, 1, a.Registry.Len())
	assert.NotEmpty(t, mr.Keys())

	live, err := a.Live.Live(t.Context(), a.Registry.Snapshot()[0].TranscriptID)
	require.NoError(t, err)
	assert.Equal(t, "Panel", live.RoomName)
	assert.NotEmpty(t, live.OwnerID)
	require.Len(t, live.Conversation, 1)
	assert.Equal(t, "Welcome", live.Conversation[0].Content)

	// shutdown finalizes the running session
	require.NoError(t, a.Shutdown(context.Background()))
	assert.Equal(t, 0, a.Registry.Len())
}

func TestSpeechFactories(t *testing.T) {
	cfg := config.SpeechConfig{STTProvider: "whisper", TTSProvider: "piper", WhisperURL: "http://w", PiperURL: "http://p"}
	assert.IsType(t, &whisper.WhisperClient{}, NewTranscriber(cfg, Logger.NewNop()))
	assert.IsType(t, &piper.Piper{}, NewSynthesizer(cfg, Logger.NewNop()))

	cfg = config.SpeechConfig{STTProvider: "deepgram", TTSProvider: "deepgram", DeepgramAPIKey: "k"}
	assert.IsType(t, &sttdeepgram.Client{}, NewTranscriber(cfg, Logger.NewNop()))
	assert.IsType(t, &ttsdeepgram.Aura{}, NewSynthesizer(cfg, Logger.NewNop()))
}
