package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/xpanvictor/aura/pkg/Logger"
)

var ErrNormalize = errors.New("audio: normalization failed")

// DefaultFormats is the order container formats are tried in when the client gives no hint.
var DefaultFormats = []string{"webm", "ogg"}

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Normalizer converts browser recordings to mono 16-bit PCM WAV at a fixed sample rate via ffmpeg.
type Normalizer struct {
	FFmpegPath string
	SampleRate int
	Formats    []string
	Run        Runner
	TempDir    string
	logger     *Logger.Logger
}

func NewNormalizer(ffmpegPath string, sampleRate int, logger *Logger.Logger) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Normalizer{
		FFmpegPath: ffmpegPath,
		SampleRate: sampleRate,
		Formats:    DefaultFormats,
		Run:        execRunner,
		logger:     logger,
	}
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// Normalize returns a WAV rendition of data. The hinted format, if any, is tried before the defaults.
// Every temporary file is removed before returning.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, hint string) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrNormalize)
	}
	if hint == "" && IsWAV(data) {
		hint = "wav"
	}

	dir, err := os.MkdirTemp(n.TempDir, "aura-audio-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNormalize, err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNormalize, err)
	}
	out := filepath.Join(dir, "output.wav")

	var lastErr error
	for _, format := range n.candidates(hint) {
		args := []string{
			"-hide_banner", "-loglevel", "error", "-y",
			"-f", format,
			"-i", in,
			"-ac", "1",
			"-ar", strconv.Itoa(n.SampleRate),
			"-sample_fmt", "s16",
			"-f", "wav",
			out,
		}
		output, err := n.Run(ctx, n.FFmpegPath, args...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("ffmpeg -f %s: %v: %s", format, err, bytes.TrimSpace(output))
			if n.logger != nil {
				n.logger.Debugf("audio conversion as %s failed: %v", format, lastErr)
			}
			continue
		}
		wav, err := os.ReadFile(out)
		if err != nil || len(wav) == 0 {
			lastErr = fmt.Errorf("ffmpeg -f %s produced no output", format)
			continue
		}
		return wav, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrNormalize, lastErr)
}

func (n *Normalizer) candidates(hint string) []string {
	formats := n.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	if hint == "" {
		return formats
	}
	out := []string{hint}
	for _, f := range formats {
		if f != hint {
			out = append(out, f)
		}
	}
	return out
}
