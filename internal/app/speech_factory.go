package app

import (
	"github.com/xpanvictor/aura/internal/config"
	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/io/stt"
	sttdeepgram "github.com/xpanvictor/aura/pkg/io/stt/deepgram"
	"github.com/xpanvictor/aura/pkg/io/stt/whisper"
	"github.com/xpanvictor/aura/pkg/io/tts"
	ttsdeepgram "github.com/xpanvictor/aura/pkg/io/tts/deepgram"
	"github.com/xpanvictor/aura/pkg/io/tts/piper"
)

// NewTranscriber returns the speech-to-text client selected by speech.stt_provider.
func NewTranscriber(cfg config.SpeechConfig, logger *Logger.Logger) stt.Transcriber {
	if cfg.STTProvider == "whisper" {
		return whisper.NewWhisperClient(cfg.WhisperURL, cfg.Language, cfg.Timeout(), logger)
	}
	return sttdeepgram.NewClient(sttdeepgram.Options{
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.DeepgramAPIKey,
		Model:    cfg.STTModel,
		Language: cfg.Language,
		Timeout:  cfg.Timeout(),
	}, logger)
}

// NewSynthesizer returns the text-to-speech client selected by speech.tts_provider.
func NewSynthesizer(cfg config.SpeechConfig, logger *Logger.Logger) tts.Synthesizer {
	if cfg.TTSProvider == "piper" {
		p := piper.New(cfg.PiperURL, cfg.PiperVoice, logger)
		p.Timeout = cfg.Timeout()
		return p
	}
	aura := ttsdeepgram.New(cfg.BaseURL, cfg.DeepgramAPIKey, logger)
	aura.SampleRate = cfg.SampleRate
	aura.Timeout = cfg.Timeout()
	return aura
}
