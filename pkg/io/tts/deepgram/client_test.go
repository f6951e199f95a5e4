package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/io/tts"
)

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/speak", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "aura-arcas-en", q.Get("model"))
		assert.Equal(t, "linear16", q.Get("encoding"))
		assert.Equal(t, "wav", q.Get("container"))
		assert.Equal(t, "16000", q.Get("sample_rate"))
		assert.Equal(t, "Token k", r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hi there", body["text"])

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF...."))
	}))
	defer srv.Close()

	audio, err := New(srv.URL, "k", Logger.NewNop()).Synthesize(context.Background(), "hi there", "aura-arcas-en")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF...."), audio)
}

func TestSynthesizeEmptyText(t *testing.T) {
	_, err := New("http://127.0.0.1:1", "k", nil).Synthesize(context.Background(), "  ", "aura-asteria-en")
	assert.ErrorIs(t, err, tts.ErrEmptyText)
}

func TestSynthesizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k", nil).Synthesize(context.Background(), "hello", "aura-asteria-en")
	var apiErr *tts.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsRateLimited())
	assert.Equal(t, "deepgram", apiErr.Provider)
}
