package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrEmptyAudio = errors.New("stt: empty audio")

// Result is a finished transcription. The zero value means nothing intelligible was heard.
type Result struct {
	Text       string
	Confidence float64
	Duration   time.Duration
}

// Heard reports whether the transcript carries any words.
func (r Result) Heard() bool {
	return strings.TrimSpace(r.Text) != ""
}

// Transcriber turns a complete WAV recording into text.
// A recording with no speech yields Result{} and a nil error.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (Result, error)
}

// APIError is a non-2xx answer from a transcription provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stt [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}
