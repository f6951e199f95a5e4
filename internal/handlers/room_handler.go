package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xpanvictor/aura/internal/domains/room"
	"github.com/xpanvictor/aura/pkg/Logger"
)

type RoomHandler struct {
	catalog *room.Catalog
	builder room.CustomRoomBuilder
	voices  room.VoicePolicy
	logger  *Logger.Logger
}

func NewRoomHandler(catalog *room.Catalog, builder room.CustomRoomBuilder, logger *Logger.Logger) *RoomHandler {
	return &RoomHandler{catalog: catalog, builder: builder, voices: builder.Voices, logger: logger}
}

// ListRooms returns every configured room
// @Summary List rooms
// @Description Configured rooms in index order, each agent carrying its effective voice
// @Tags Rooms
// @Produce json
// @Success 200 {object} RoomsResponse
// @Router /rooms [get]
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms := h.catalog.List()
	out := make([]room.Room, len(rooms))
	for i, r := range rooms {
		out[i] = r.WithResolvedVoices(h.voices)
	}
	c.JSON(http.StatusOK, RoomsResponse{Rooms: out})
}

// CreateCustomRoom validates a client-defined room
// @Summary Validate a custom room
// @Description Builds a room from client-supplied agents; send it back in start_session to use it
// @Tags Rooms
// @Accept json
// @Produce json
// @Param request body room.CustomRoomRequest true "Custom agents and duration"
// @Success 200 {object} CustomRoomResponse
// @Failure 400 {object} ErrorResponse "Invalid room"
// @Router /custom-room [post]
func (h *RoomHandler) CreateCustomRoom(c *gin.Context) {
	var req room.CustomRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request data", Details: err.Error()})
		return
	}

	r, err := h.builder.Build(req)
	if err != nil {
		if errors.Is(err, room.ErrInvalidRoom) || errors.Is(err, room.ErrInvalidDuration) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid room", Details: err.Error()})
			return
		}
		h.logger.Errorf("custom room: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, CustomRoomResponse{Room: r, Success: true})
}
