package deepgram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/io/stt"
)

func newTestClient(url string) *Client {
	return NewClient(Options{BaseURL: url, APIKey: "secret"}, Logger.NewNop())
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/listen", r.URL.Path)
		assert.Equal(t, "nova-2", r.URL.Query().Get("model"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "true", r.URL.Query().Get("smart_format"))
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "RIFFdata", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"metadata":{"duration":1.5},"results":{"channels":[{"alternatives":[{"transcript":" hello there ","confidence":0.93}]}]}}`)
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Transcribe(context.Background(), []byte("RIFFdata"))
	require.NoError(t, err)
	assert.True(t, res.Heard())
	assert.Equal(t, "hello there", res.Text)
	assert.InDelta(t, 0.93, res.Confidence, 1e-9)
	assert.Equal(t, 1500*time.Millisecond, res.Duration)
}

func TestTranscribeNoSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":{"channels":[{"alternatives":[{"transcript":""}]}]}}`)
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Transcribe(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.False(t, res.Heard())
}

func TestTranscribeNoChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":{"channels":[]}}`)
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Transcribe(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, stt.Result{}, res)
}

func TestTranscribeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Transcribe(context.Background(), []byte("x"))
	var apiErr *stt.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.True(t, apiErr.IsUnauthorized())
}

func TestTranscribeEmptyAudio(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").Transcribe(context.Background(), nil)
	assert.ErrorIs(t, err, stt.ErrEmptyAudio)
}
