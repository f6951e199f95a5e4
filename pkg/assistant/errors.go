package assistant

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrRetriesExhausted = errors.New("assistant: retries exhausted")
	ErrEmptyCompletion  = errors.New("assistant: empty completion")
	ErrNoBackend        = errors.New("assistant: no backend available")
)

// StatusError is an HTTP-level failure reported by a chat provider.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("assistant [%s]: status %d: %s", e.Provider, e.Code, e.Message)
}

// RateLimited reports whether the provider asked us to slow down.
func (e *StatusError) RateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

// IsRateLimited unwraps err looking for a rate-limit StatusError.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.RateLimited()
}
