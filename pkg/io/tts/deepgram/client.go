package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/io/tts"
)

const providerName = "deepgram"

type Aura struct {
	BaseURL    string // e.g. "https://api.deepgram.com"
	APIKey     string
	SampleRate int           // 16000
	Timeout    time.Duration // per request
	Client     *http.Client  // inject; default if nil
	Logger     *Logger.Logger
}

func New(baseURL, apiKey string, logger *Logger.Logger) *Aura {
	return &Aura{BaseURL: baseURL, APIKey: apiKey, Logger: logger}
}

var _ tts.Synthesizer = (*Aura)(nil)

// Synthesize asks Aura for a 16-bit linear PCM WAV clip. The voice is used as the model name as is.
func (a *Aura) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}

	u, err := url.Parse(strings.TrimRight(ifEmpty(a.BaseURL, "https://api.deepgram.com"), "/") + "/v1/speak")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("model", voice)
	q.Set("encoding", "linear16")
	q.Set("container", "wav")
	q.Set("sample_rate", strconv.Itoa(ifZero(a.SampleRate, 16000)))
	u.RawQuery = q.Encode()

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+a.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	hc := a.Client
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
	if a.Logger != nil {
		a.Logger.Debugf("synthesized %d chars into %d bytes with %s in %s", len(text), len(audio), voice, time.Since(start))
	}
	return audio, nil
}

func ifEmpty(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

func ifZero(n, d int) int {
	if n == 0 {
		return d
	}
	return n
}
