package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/io/stt"
)

const providerName = "whisper"

// asrResponse is the JSON body of the whisper-asr-webservice /asr endpoint.
type asrResponse struct {
	Text     string       `json:"text"`
	Language string       `json:"language"`
	Segments []asrSegment `json:"segments,omitempty"`
}

type asrSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	ID    int     `json:"id"`
}

// WhisperClient handles communication with a self-hosted Whisper STT service
type WhisperClient struct {
	baseURL    string
	language   string
	httpClient *http.Client
	logger     *Logger.Logger
}

// NewWhisperClient creates a new Whisper client
func NewWhisperClient(baseURL, language string, timeout time.Duration, logger *Logger.Logger) *WhisperClient {
	if language == "" {
		language = "en"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = Logger.NewNop()
	}
	return &WhisperClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   language,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

var _ stt.Transcriber = (*WhisperClient)(nil)

// Transcribe uploads a WAV recording as multipart form data.
func (w *WhisperClient) Transcribe(ctx context.Context, wav []byte) (stt.Result, error) {
	if len(wav) == 0 {
		return stt.Result{}, stt.ErrEmptyAudio
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio_file", "audio.wav")
	if err != nil {
		return stt.Result{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return stt.Result{}, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return stt.Result{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	q := url.Values{}
	q.Set("encode", "true")
	q.Set("task", "transcribe")
	q.Set("language", w.language)
	q.Set("output", "json")
	requestURL := fmt.Sprintf("%s/asr?%s", w.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, &body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		w.logger.Errorf("Whisper service error (status %d): %s", resp.StatusCode, string(responseBody))
		return stt.Result{}, &stt.APIError{Provider: providerName, StatusCode: resp.StatusCode, Message: string(responseBody)}
	}

	var parsed asrResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		// some deployments answer output=json with plain text
		w.logger.Debugf("treating whisper response as plain text: %q", string(responseBody))
		return stt.Result{Text: strings.TrimSpace(string(responseBody))}, nil
	}

	result := stt.Result{Text: strings.TrimSpace(parsed.Text)}
	if n := len(parsed.Segments); n > 0 {
		result.Duration = time.Duration(parsed.Segments[n-1].End * float64(time.Second))
	}
	w.logger.Debugf("Whisper transcription: %q (language: %s)", result.Text, parsed.Language)
	return result, nil
}
