package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/io/stt"
)

const providerName = "deepgram"

// listenResponse is the subset of the prerecorded response we read.
type listenResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Client talks to Deepgram's prerecorded transcription endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	language   string
	httpClient *http.Client
	logger     *Logger.Logger
}

type Options struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

// NewClient creates a new Deepgram STT client
func NewClient(opts Options, logger *Logger.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.deepgram.com"
	}
	if opts.Model == "" {
		opts.Model = "nova-2"
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		language:   opts.Language,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger,
	}
}

var _ stt.Transcriber = (*Client)(nil)

// Transcribe uploads a WAV recording and returns the top alternative of the first channel.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (stt.Result, error) {
	if len(wav) == 0 {
		return stt.Result{}, stt.ErrEmptyAudio
	}

	q := url.Values{}
	q.Set("model", c.model)
	q.Set("language", c.language)
	q.Set("smart_format", "true")
	requestURL := fmt.Sprintf("%s/v1/listen?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(wav))
	if err != nil {
		return stt.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Errorf("Deepgram listen error (status %d): %s", resp.StatusCode, string(body))
		return stt.Result{}, &stt.APIError{Provider: providerName, StatusCode: resp.StatusCode, Message: string(body)}
	}

	var parsed listenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return stt.Result{}, fmt.Errorf("failed to decode response: %w", err)
	}

	result := stt.Result{
		Duration: time.Duration(parsed.Metadata.Duration * float64(time.Second)),
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		c.logger.Debugf("Deepgram returned no alternatives for %d bytes", len(wav))
		return result, nil
	}
	alt := parsed.Results.Channels[0].Alternatives[0]
	result.Text = strings.TrimSpace(alt.Transcript)
	result.Confidence = alt.Confidence

	c.logger.Debugf("Deepgram transcription: %q (confidence %.2f)", result.Text, result.Confidence)
	return result, nil
}
