package piper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/io/tts"
)

const providerName = "piper"

// Piper talks to a self-hosted wyoming-piper HTTP server.
type Piper struct {
	BaseURL string        // e.g. "http://tts:5000"
	Client  *http.Client  // inject; default if nil
	Voice   string        // used when the caller passes no voice
	Timeout time.Duration // per request
	Logger  *Logger.Logger
}

func New(baseURL, voice string, logger *Logger.Logger) *Piper {
	return &Piper{BaseURL: baseURL, Voice: voice, Logger: logger}
}

var _ tts.Synthesizer = (*Piper)(nil)

// Synthesize returns the WAV body piper streams for text.
func (p *Piper) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}
	if voice == "" {
		voice = p.Voice
	}

	// GET /api/text-to-speech?text=...&voice=...
	u, err := url.Parse(strings.TrimRight(p.BaseURL, "/") + "/api/text-to-speech")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("text", text)
	if voice != "" {
		q.Set("voice", voice)
	}
	u.RawQuery = q.Encode()

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/wav")

	hc := p.Client
	if hc == nil {
		hc = http.DefaultClient
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, &tts.APIError{Provider: providerName, StatusCode: resp.StatusCode, Message: string(b)}
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if p.Logger != nil {
		p.Logger.Debugf("piper synthesized %d chars into %d bytes in %s", len(text), len(audio), time.Since(start))
	}
	return audio, nil
}
