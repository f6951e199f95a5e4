package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/xpanvictor/aura/internal/domains/room"
	"github.com/xpanvictor/aura/internal/domains/user"
	"github.com/xpanvictor/aura/internal/repository/transcript"
	userRepo "github.com/xpanvictor/aura/internal/repository/user"
	"github.com/xpanvictor/aura/pkg/Logger"
)

type fakeArchive struct {
	docs      map[string]transcript.SessionDoc
	lastOwner string
}

func (f *fakeArchive) ListCompleted(ctx context.Context, ownerID string, limit int64) ([]transcript.SessionDoc, error) {
	f.lastOwner = ownerID
	var out []transcript.SessionDoc
	for _, d := range f.docs {
		if d.Status == transcript.StatusActive {
			continue
		}
		if d.OwnerID != ownerID {
			continue
		}
		d.Conversation = nil
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeArchive) Get(ctx context.Context, id string) (transcript.SessionDoc, error) {
	d, ok := f.docs[id]
	if !ok {
		return transcript.SessionDoc{}, transcript.ErrNotFound
	}
	return d, nil
}

type testServer struct {
	router  *gin.Engine
	archive *fakeArchive
	users   user.UserService
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	logger := Logger.NewNop()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&userRepo.UserEntity{}))
	users := user.NewUserService(userRepo.NewGormUserRepo(db), logger, "test-secret", 0)

	voices := room.NewVoicePolicy("aura-", []string{"aura-d0", "aura-d1", "aura-d2"})
	catalog, err := room.NewCatalog([]room.Room{{
		Name:                   "Debate",
		SessionDurationMinutes: 5,
		Agents:                 []room.AgentSpec{{Name: "Pro", Voice: "aura-x"}, {Name: "Con", Voice: "bogus"}},
	}}, []int{5, 15})
	require.NoError(t, err)
	builder := room.CustomRoomBuilder{AgentCount: 3, AllowedDurations: []int{5, 15}, Voices: voices}

	archive := &fakeArchive{docs: map[string]transcript.SessionDoc{
		"a": {ID: "a", RoomName: "Debate", OwnerID: "u1", Status: transcript.StatusCompleted},
		"b": {ID: "b", RoomName: "Panel", Status: transcript.StatusActive},
		"c": {ID: "c", RoomName: "Debate", Status: transcript.StatusExpired},
	}}

	r := gin.New()
	r.Use(ErrorHandlerMiddleware(logger))
	r.GET("/health", Health(func() int { return 2 }))
	api := r.Group("/api")
	api.Use(RateLimitMiddleware(t.Context(), 1000, 1000))
	rh := NewRoomHandler(catalog, builder, logger)
	api.GET("/rooms", rh.ListRooms)
	api.POST("/custom-room", rh.CreateCustomRoom)
	uh := NewUserHandler(users, logger)
	api.POST("/auth/register", uh.Register)
	api.POST("/auth/login", uh.Login)
	api.GET("/auth/me", AuthMiddleware(users, logger), uh.GetProfile)
	ch := NewConversationHandler(archive, nil, logger)
	conv := api.Group("/conversations", OptionalAuthMiddleware(users, logger))
	conv.GET("", ch.ListConversations)
	conv.GET("/:id", ch.GetConversation)
	conv.GET("/:id/live", ch.GetLiveConversation)

	return &testServer{router: r, archive: archive, users: users}
}

func (s *testServer) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, HealthResponse{Status: "ok", Sessions: 2}, decode[HealthResponse](t, w))
}

func TestListRoomsResolvesVoices(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/api/rooms", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	rooms := decode[RoomsResponse](t, w).Rooms
	require.Len(t, rooms, 1)
	assert.Equal(t, "aura-x", rooms[0].Agents[0].Voice)
	assert.Equal(t, "aura-d1", rooms[0].Agents[1].Voice)
}

func TestCustomRoom(t *testing.T) {
	s := newTestServer(t)
	agents := []room.CustomAgent{{Name: "A", Prompt: "p"}, {Name: "B"}, {Name: "C", Voice: "aura-c"}}

	w := s.do(http.MethodPost, "/api/custom-room", room.CustomRoomRequest{Agents: agents, DurationMinutes: 15}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[CustomRoomResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, 15, resp.Room.SessionDurationMinutes)
	assert.Len(t, resp.Room.Agents, 3)

	w = s.do(http.MethodPost, "/api/custom-room", room.CustomRoomRequest{Agents: agents[:2], DurationMinutes: 5}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/custom-room", room.CustomRoomRequest{Agents: agents, DurationMinutes: 7}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	creds := map[string]string{"email": "ada@example.com", "password": "pw"}

	w := s.do(http.MethodPost, "/api/auth/register", creds, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[RegisterResponse](t, w)
	assert.NotEmpty(t, reg.UserID)

	w = s.do(http.MethodPost, "/api/auth/register", creds, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/auth/register", map[string]string{"email": "x@y.z"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "bad"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", decode[ErrorResponse](t, w).Error)

	w = s.do(http.MethodPost, "/api/auth/login", creds, "")
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[LoginResponse](t, w)
	assert.Equal(t, "Login successful", login.Message)
	assert.Equal(t, reg.UserID, login.User.ID)
	require.NotEmpty(t, login.Token)

	w = s.do(http.MethodGet, "/api/auth/me", nil, login.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ada@example.com", decode[ProfileResponse](t, w).User.Email)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", nil, "garbage").Code)
}

func TestConversations(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/conversations", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[ConversationsResponse](t, w).Conversations
	require.Len(t, list, 1)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "", s.archive.lastOwner)

	w = s.do(http.MethodGet, "/api/conversations/c", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Debate", decode[ConversationResponse](t, w).Conversation.RoomName)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/conversations/zzz", nil, "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/api/conversations/a/live", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/conversations", nil, "garbage").Code)
}

func TestConversationsScopedToOwner(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	bob, err := s.users.Register(ctx, user.CreateUserRequest{Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)
	_, token, err := s.users.Login(ctx, user.LoginRequest{Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)
	s.archive.docs["d"] = transcript.SessionDoc{ID: "d", RoomName: "Panel", OwnerID: bob.ID, Status: transcript.StatusCompleted}

	w := s.do(http.MethodGet, "/api/conversations", nil, token.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[ConversationsResponse](t, w).Conversations
	require.Len(t, list, 1)
	assert.Equal(t, "d", list[0].ID)
	assert.Equal(t, bob.ID, s.archive.lastOwner)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/conversations/d", nil, token.AccessToken).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/conversations/a", nil, token.AccessToken).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/conversations/c", nil, token.AccessToken).Code)
}

func TestConversationsHideOwnedFromAnonymous(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/conversations", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	for _, d := range decode[ConversationsResponse](t, w).Conversations {
		assert.Empty(t, d.OwnerID, "owned session %s listed anonymously", d.ID)
	}
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/conversations/a", nil, "").Code)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(t.Context(), 0.001, 2))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes[i] = w.Code
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}
