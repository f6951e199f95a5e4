package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xpanvictor/aura/internal/repository/transcript"
	"github.com/xpanvictor/aura/pkg/Logger"
)

const conversationListLimit = 50

// ConversationHandler serves stored session transcripts. Either store may be nil
// when it is not configured; its routes then answer 503.
type ConversationHandler struct {
	archive transcript.Archive
	live    transcript.LiveReader
	logger  *Logger.Logger
}

func NewConversationHandler(archive transcript.Archive, live transcript.LiveReader, logger *Logger.Logger) *ConversationHandler {
	return &ConversationHandler{archive: archive, live: live, logger: logger}
}

// ListConversations returns the latest finished sessions
// @Summary List conversations
// @Description Latest 50 finished sessions, newest first, without transcripts. Authenticated callers see their own, anonymous callers see anonymous sessions only.
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ConversationsResponse
// @Failure 503 {object} ErrorResponse "Transcript store not configured"
// @Router /conversations [get]
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Transcript store not configured"})
		return
	}
	docs, err := h.archive.ListCompleted(c.Request.Context(), c.GetString(ctxUserID), conversationListLimit)
	if err != nil {
		h.logger.Errorf("list conversations: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	if docs == nil {
		docs = []transcript.SessionDoc{}
	}
	c.JSON(http.StatusOK, ConversationsResponse{Conversations: docs})
}

// GetConversation returns one stored session with its transcript
// @Summary Get conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} ConversationResponse
// @Failure 404 {object} ErrorResponse "Conversation not found"
// @Router /conversations/{id} [get]
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Transcript store not configured"})
		return
	}
	doc, err := h.archive.Get(c.Request.Context(), c.Param("id"))
	h.respondDoc(c, doc, err)
}

// GetLiveConversation reads an in-flight transcript from the mirror
// @Summary Get live conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} ConversationResponse
// @Failure 404 {object} ErrorResponse "Conversation not found"
// @Router /conversations/{id}/live [get]
func (h *ConversationHandler) GetLiveConversation(c *gin.Context) {
	if h.live == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Live mirror not configured"})
		return
	}
	doc, err := h.live.Live(c.Request.Context(), c.Param("id"))
	h.respondDoc(c, doc, err)
}

func (h *ConversationHandler) respondDoc(c *gin.Context, doc transcript.SessionDoc, err error) {
	if err != nil {
		if errors.Is(err, transcript.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Conversation not found"})
			return
		}
		h.logger.Errorf("get conversation: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	if !doc.VisibleTo(c.GetString(ctxUserID)) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Conversation not found"})
		return
	}
	c.JSON(http.StatusOK, ConversationResponse{Conversation: doc})
}
