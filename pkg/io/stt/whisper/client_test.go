package whisper

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpanvictor/aura/pkg/io/stt"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/asr", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("output"))
		assert.Equal(t, "fr", r.URL.Query().Get("language"))

		f, _, err := r.FormFile("audio_file")
		if assert.NoError(t, err) {
			b, _ := io.ReadAll(f)
			assert.Equal(t, "RIFFwav", string(b))
		}
		_, _ = w.Write([]byte(`{"text":" bonjour ","language":"fr","segments":[{"id":0,"start":0,"end":1.5,"text":"bonjour"}]}`))
	}))
	defer srv.Close()

	c := NewWhisperClient(srv.URL, "fr", 0, nil)
	res, err := c.Transcribe(t.Context(), []byte("RIFFwav"))
	require.NoError(t, err)
	assert.Equal(t, "bonjour", res.Text)
	assert.Equal(t, 1500*time.Millisecond, res.Duration)
}

func TestTranscribePlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello world\n"))
	}))
	defer srv.Close()

	res, err := NewWhisperClient(srv.URL, "", 0, nil).Transcribe(t.Context(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
}

func TestTranscribeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewWhisperClient(srv.URL, "", 0, nil)
	_, err := c.Transcribe(t.Context(), []byte("x"))
	var apiErr *stt.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsRateLimited())

	_, err = c.Transcribe(t.Context(), nil)
	assert.ErrorIs(t, err, stt.ErrEmptyAudio)
}
