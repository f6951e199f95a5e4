package websocket

import (
	"context"
	"encoding/base64"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"github.com/xpanvictor/aura/internal/domains/conversation"
	"github.com/xpanvictor/aura/internal/domains/session"
	"github.com/xpanvictor/aura/pkg/io/stt"
)

// runTurn takes one recording from audio to agent replies. It never panics out of
// the worker goroutine.
func (h *WebSocketHandler) runTurn(ctx context.Context, conn *Connection, req ProcessAudioMessage) {
	defer func() {
		if r := recover(); r != nil {
			conn.logger.Errorf("turn panicked (session %s): %v\n%s", conn.SessionID(), r, debug.Stack())
			conn.SendError("Internal error while processing audio", true)
		}
	}()

	s, ok := h.deps.Registry.Get(conn.ID)
	if !ok {
		conn.SendError("No active session", false)
		return
	}
	if err := s.CheckActive(); err != nil {
		h.rejectInactive(ctx, conn, err)
		return
	}

	raw, err := h.collectAudio(conn, req)
	if err != nil {
		conn.SendError(err.Error(), true)
		return
	}

	h.status(ctx, conn, StatusTranscribing, "Listening...")
	text, err := h.transcribe(ctx, raw, req.Format)
	if err != nil {
		if ctx.Err() == nil {
			conn.logger.Warnf("transcription failed: %v", err)
			conn.SendError("Could not process audio. Please try again.", true)
		}
		return
	}
	if text == "" {
		conn.SendError("Could not understand. Please try again.", true)
		return
	}
	if err := conn.Emit(ctx, conversation.EventTranscription, TranscriptionMessage{Text: text}); err != nil {
		return
	}

	h.status(ctx, conn, StatusProcessing, "Processing...")
	results, err := s.ProcessTurn(ctx, text, conn)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionExpired), errors.Is(err, session.ErrSessionEnded):
			h.rejectInactive(ctx, conn, err)
		case ctx.Err() != nil:
			conn.logger.Infof("turn cancelled after %d replies", len(results))
		default:
			conn.logger.Warnf("turn stopped after %d replies: %v", len(results), err)
		}
		return
	}

	h.status(ctx, conn, StatusComplete, "Ready for next question")
	_ = conn.Emit(ctx, conversation.EventProcessingComplete, ProcessingCompleteMessage{
		TotalAgents:   len(results),
		RemainingTime: s.RemainingSeconds(),
	})
}

func (h *WebSocketHandler) rejectInactive(ctx context.Context, conn *Connection, err error) {
	if errors.Is(err, session.ErrSessionExpired) {
		_ = conn.Emit(ctx, conversation.EventSessionExpired, NoticeMessage{Message: "Session time limit reached"})
		return
	}
	conn.SendError("No active session", false)
}

func (h *WebSocketHandler) status(ctx context.Context, conn *Connection, kind, message string) {
	_ = conn.Emit(ctx, conversation.EventStatus, StatusMessage{Type: kind, Message: message})
}

// collectAudio decodes the inline recording or, when none was sent, drains the
// bytes streamed as binary frames.
func (h *WebSocketHandler) collectAudio(conn *Connection, req ProcessAudioMessage) ([]byte, error) {
	encoded := strings.TrimSpace(req.Audio)
	if i := strings.Index(encoded, ";base64,"); i >= 0 {
		encoded = encoded[i+len(";base64,"):]
	}
	if encoded == "" {
		if data := conn.audio.Drain(); len(data) > 0 {
			return data, nil
		}
		return nil, errors.New("No audio data received")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("Invalid audio encoding")
	}
	if len(data) == 0 {
		return nil, errors.New("No audio data received")
	}
	return data, nil
}

func (h *WebSocketHandler) transcribe(ctx context.Context, raw []byte, format string) (string, error) {
	wav, err := h.deps.Normalizer.Normalize(ctx, raw, format)
	if err != nil {
		return "", err
	}

	started := time.Now()
	res, err := h.deps.Transcriber.Transcribe(ctx, wav)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		var apiErr *stt.APIError
		if errors.As(err, &apiErr) && apiErr.IsRateLimited() {
			outcome = "rate_limited"
		}
	case !res.Heard():
		outcome = "empty"
	}
	if h.deps.Observer != nil {
		h.deps.Observer.ObserveTranscription(outcome, time.Since(started))
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}
