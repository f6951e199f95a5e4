package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrMissingCredential = errors.New("missing provider credential")
	ErrInvalidSetting    = errors.New("invalid setting")
)

type ServerConfig struct {
	Addr                string  `mapstructure:"addr"`
	ShutdownTimeoutSecs int     `mapstructure:"shutdown_timeout_secs"`
	RateLimitRPS        float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst      int     `mapstructure:"rate_limit_burst"`
}

type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
}

// DSN builds a MySQL data source name.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Addr              string `mapstructure:"addr"`
	Pass              string `mapstructure:"pass"`
	DB                int    `mapstructure:"db"`
	TranscriptTTLMins int    `mapstructure:"transcript_ttl_mins"`
}

func (r RedisConfig) TranscriptTTL() time.Duration {
	return time.Duration(r.TranscriptTTLMins) * time.Minute
}

type MongoConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type SpeechConfig struct {
	// STTProvider is deepgram or whisper; TTSProvider is deepgram or piper.
	STTProvider    string `mapstructure:"stt_provider"`
	TTSProvider    string `mapstructure:"tts_provider"`
	DeepgramAPIKey string `mapstructure:"deepgram_api_key"`
	BaseURL        string `mapstructure:"base_url"`
	STTModel       string `mapstructure:"stt_model"`
	Language       string `mapstructure:"language"`
	SampleRate     int    `mapstructure:"sample_rate"`
	TimeoutSecs    int    `mapstructure:"timeout_secs"`
	FFmpegPath     string `mapstructure:"ffmpeg_path"`
	WhisperURL     string `mapstructure:"whisper_url"`
	PiperURL       string `mapstructure:"piper_url"`
	PiperVoice     string `mapstructure:"piper_voice"`
}

func (s SpeechConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

type LLMConfig struct {
	// Provider selects the chat backend: openai, ollama or gemini.
	Provider           string   `mapstructure:"provider"`
	APIKey             string   `mapstructure:"api_key"`
	BaseURL            string   `mapstructure:"base_url"`
	Model              string   `mapstructure:"model"`
	MaxTokens          int      `mapstructure:"max_tokens"`
	MinIntervalMs      int      `mapstructure:"min_interval_ms"`
	MaxRetries         int      `mapstructure:"max_retries"`
	BackoffUnitSecs    int      `mapstructure:"backoff_unit_secs"`
	RequestTimeoutSecs int      `mapstructure:"request_timeout_secs"`
	OllamaURLs         []string `mapstructure:"ollama_urls"`
	GeminiAPIKey       string   `mapstructure:"gemini_api_key"`
}

func (l LLMConfig) MinInterval() time.Duration {
	return time.Duration(l.MinIntervalMs) * time.Millisecond
}

func (l LLMConfig) BackoffUnit() time.Duration {
	return time.Duration(l.BackoffUnitSecs) * time.Second
}

func (l LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(l.RequestTimeoutSecs) * time.Second
}

type SessionConfig struct {
	RoomsPath        string   `mapstructure:"rooms_path"`
	AllowedDurations []int    `mapstructure:"allowed_durations"`
	ContextWindow    int      `mapstructure:"context_window"`
	DefaultVoices    []string `mapstructure:"default_voices"`
	VoicePrefix      string   `mapstructure:"voice_prefix"`
	CustomAgentCount int      `mapstructure:"custom_agent_count"`
	AudioBufferBytes int      `mapstructure:"audio_buffer_bytes"`
}

type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
}

type Settings struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"database"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Speech  SpeechConfig  `mapstructure:"speech"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Session SessionConfig `mapstructure:"session"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Env     string        `mapstructure:"env"`
	Debug   bool          `mapstructure:"debug"`
}

// Load reads config_<ENV>.yaml from the working directory (or ./config),
// layering environment overrides on top. A missing file is not an error.
func Load() (*Settings, error) {
	v := newViper()
	v.SetConfigName("config_" + genEnv(v))
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return unmarshal(v)
}

// LoadFile reads settings from an explicit file path.
func LoadFile(path string) (*Settings, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Settings, error) {
	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &settings, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// well-known secret names used by deployments
	_ = v.BindEnv("speech.deepgram_api_key", "DEEPGRAM_API_KEY")
	_ = v.BindEnv("llm.api_key", "CEREBRAS_API_KEY", "LLM_API_KEY")
	_ = v.BindEnv("llm.gemini_api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("mongo.uri", "MONGO_URI")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.shutdown_timeout_secs", 5)
	v.SetDefault("server.rate_limit_rps", 10)
	v.SetDefault("server.rate_limit_burst", 20)

	v.SetDefault("database.port", 3306)
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.transcript_ttl_mins", 60)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017/")
	v.SetDefault("mongo.database", "aura_database")

	v.SetDefault("speech.stt_provider", "deepgram")
	v.SetDefault("speech.tts_provider", "deepgram")
	v.SetDefault("speech.base_url", "https://api.deepgram.com")
	v.SetDefault("speech.stt_model", "nova-2")
	v.SetDefault("speech.language", "en")
	v.SetDefault("speech.sample_rate", 16000)
	v.SetDefault("speech.timeout_secs", 30)
	v.SetDefault("speech.ffmpeg_path", "ffmpeg")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.cerebras.ai/v1")
	v.SetDefault("llm.model", "llama-3.3-70b")
	v.SetDefault("llm.max_tokens", 200)
	v.SetDefault("llm.min_interval_ms", 1000)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.backoff_unit_secs", 2)
	v.SetDefault("llm.request_timeout_secs", 30)

	v.SetDefault("session.rooms_path", "rooms.json")
	v.SetDefault("session.allowed_durations", []int{5, 15})
	v.SetDefault("session.context_window", 6)
	v.SetDefault("session.default_voices", []string{"aura-asteria-en", "aura-arcas-en", "aura-athena-en"})
	v.SetDefault("session.voice_prefix", "aura-")
	v.SetDefault("session.custom_agent_count", 3)
	v.SetDefault("session.audio_buffer_bytes", 8*1024*1024)

	v.SetDefault("auth.token_ttl_hours", 24*7)
}

func genEnv(v *viper.Viper) string {
	env := v.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}

// Validate checks everything a session needs before the server accepts connections.
func (s *Settings) Validate() error {
	if err := s.Speech.validate(); err != nil {
		return err
	}

	switch s.LLM.Provider {
	case "openai":
		if s.LLM.APIKey == "" {
			return fmt.Errorf("%w: llm.api_key", ErrMissingCredential)
		}
	case "gemini":
		if s.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("%w: llm.gemini_api_key", ErrMissingCredential)
		}
	case "ollama":
		if len(s.LLM.OllamaURLs) == 0 {
			return fmt.Errorf("%w: llm.ollama_urls is empty", ErrInvalidSetting)
		}
	default:
		return fmt.Errorf("%w: unknown llm.provider %q", ErrInvalidSetting, s.LLM.Provider)
	}

	if s.LLM.MaxRetries < 1 {
		return fmt.Errorf("%w: llm.max_retries must be at least 1", ErrInvalidSetting)
	}
	if s.Session.ContextWindow < 0 {
		return fmt.Errorf("%w: session.context_window", ErrInvalidSetting)
	}
	if len(s.Session.DefaultVoices) == 0 {
		return fmt.Errorf("%w: session.default_voices is empty", ErrInvalidSetting)
	}
	if len(s.Session.AllowedDurations) == 0 {
		return fmt.Errorf("%w: session.allowed_durations is empty", ErrInvalidSetting)
	}
	return nil
}

func (s SpeechConfig) validate() error {
	switch s.STTProvider {
	case "deepgram":
	case "whisper":
		if s.WhisperURL == "" {
			return fmt.Errorf("%w: speech.whisper_url", ErrInvalidSetting)
		}
	default:
		return fmt.Errorf("%w: unknown speech.stt_provider %q", ErrInvalidSetting, s.STTProvider)
	}
	switch s.TTSProvider {
	case "deepgram":
	case "piper":
		if s.PiperURL == "" {
			return fmt.Errorf("%w: speech.piper_url", ErrInvalidSetting)
		}
	default:
		return fmt.Errorf("%w: unknown speech.tts_provider %q", ErrInvalidSetting, s.TTSProvider)
	}
	if (s.STTProvider == "deepgram" || s.TTSProvider == "deepgram") && s.DeepgramAPIKey == "" {
		return fmt.Errorf("%w: speech.deepgram_api_key", ErrMissingCredential)
	}
	return nil
}
