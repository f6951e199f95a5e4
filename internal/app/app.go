package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"

	"github.com/xpanvictor/aura/internal/config"
	"github.com/xpanvictor/aura/internal/database"
	"github.com/xpanvictor/aura/internal/domains/conversation"
	"github.com/xpanvictor/aura/internal/domains/room"
	"github.com/xpanvictor/aura/internal/domains/session"
	"github.com/xpanvictor/aura/internal/domains/user"
	"github.com/xpanvictor/aura/internal/handlers/websocket"
	"github.com/xpanvictor/aura/internal/metrics"
	"github.com/xpanvictor/aura/internal/repository/transcript"
	userRepo "github.com/xpanvictor/aura/internal/repository/user"
	"github.com/xpanvictor/aura/internal/server"
	"github.com/xpanvictor/aura/pkg/Logger"
	"github.com/xpanvictor/aura/pkg/assistant"
	"github.com/xpanvictor/aura/pkg/io/audio"
	"github.com/xpanvictor/aura/pkg/io/stt"
	"github.com/xpanvictor/aura/pkg/io/tts"
)

var ErrMissingJWTSecret = errors.New("auth.jwt_secret is required when the user database is enabled")

// App represents the application with all its dependencies
type App struct {
	Config *config.Settings
	Logger *Logger.Logger
	DB     *gorm.DB
	RC     *redis.Client
	Mongo  *mongo.Client

	Metrics   *metrics.Collector
	Catalog   *room.Catalog
	Voices    room.VoicePolicy
	Gateway   *assistant.Gateway
	Pipeline  *conversation.Pipeline
	Registry  *session.Registry
	Sink      transcript.Sink
	WebSocket *websocket.WebSocketHandler

	UserService user.UserService
	Archive     transcript.Archive
	Live        transcript.LiveReader

	ServerDeps server.Dependencies

	closers []func(ctx context.Context) error
}

// Overrides replaces external collaborators, mostly for tests.
type Overrides struct {
	Backend     assistant.Backend
	Synthesizer tts.Synthesizer
	Transcriber stt.Transcriber
	DB          *gorm.DB
}

// NewApp creates a new application instance with all dependencies properly wired
func NewApp(ctx context.Context, cfg *config.Settings, logger *Logger.Logger) (*App, error) {
	return NewAppWith(ctx, cfg, logger, Overrides{})
}

func NewAppWith(ctx context.Context, cfg *config.Settings, logger *Logger.Logger, o Overrides) (*App, error) {
	if logger == nil {
		logger = Logger.NewNop()
	}
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewCollector("aura"),
	}
	if err := a.setupDependencies(ctx, o); err != nil {
		_ = a.Shutdown(context.Background())
		return nil, err
	}
	return a, nil
}

// setupDependencies initializes all application dependencies
func (a *App) setupDependencies(ctx context.Context, o Overrides) error {
	cfg := a.Config

	// 1. rooms
	catalog, err := room.LoadCatalog(cfg.Session.RoomsPath, cfg.Session.AllowedDurations)
	if err != nil {
		return err
	}
	a.Catalog = catalog
	a.Voices = room.NewVoicePolicy(cfg.Session.VoicePrefix, cfg.Session.DefaultVoices)
	a.Logger.Infof("loaded %d rooms from %s", catalog.Len(), cfg.Session.RoomsPath)

	// 2. llm
	backend := o.Backend
	if backend == nil {
		b, closeBackend, err := NewChatBackend(ctx, cfg.LLM, a.Logger)
		if err != nil {
			return err
		}
		backend = b
		a.onShutdown(func(context.Context) error { return closeBackend() })
	}
	a.Gateway = NewChatGateway(backend, cfg.LLM, a.Metrics, a.Logger)

	// 3. speech
	synth := o.Synthesizer
	if synth == nil {
		synth = NewSynthesizer(cfg.Speech, a.Logger.Named("tts"))
	}
	transcriber := o.Transcriber
	if transcriber == nil {
		transcriber = NewTranscriber(cfg.Speech, a.Logger.Named("stt"))
	}
	normalizer := audio.NewNormalizer(cfg.Speech.FFmpegPath, cfg.Speech.SampleRate, a.Logger)

	a.Pipeline = conversation.NewPipeline(a.Gateway, synth, conversation.PipelineConfig{
		ContextWindow: cfg.Session.ContextWindow,
		MaxTokens:     cfg.LLM.MaxTokens,
		Voices:        a.Voices,
	}, a.Logger).WithObserver(a.Metrics)

	// 4. transcripts
	if err := a.setupTranscripts(ctx); err != nil {
		return err
	}

	// 5. accounts
	if err := a.setupUsers(o.DB); err != nil {
		return err
	}

	// 6. sessions and transport
	a.Registry = session.NewRegistry(a.Logger).WithObserver(a.Metrics)
	a.WebSocket = websocket.NewWebSocketHandler(websocket.Deps{
		Registry:    a.Registry,
		Catalog:     a.Catalog,
		Voices:      a.Voices,
		Durations:   cfg.Session.AllowedDurations,
		Pipeline:    a.Pipeline,
		Sink:        a.Sink,
		Normalizer:  normalizer,
		Transcriber: transcriber,
		UserService: a.UserService,
		Observer:    a.Metrics,
		AudioBytes:  cfg.Session.AudioBufferBytes,
		Logger:      a.Logger,
	})

	a.ServerDeps = server.NewServerDependencies(
		a.Catalog,
		room.CustomRoomBuilder{
			AgentCount:       cfg.Session.CustomAgentCount,
			AllowedDurations: cfg.Session.AllowedDurations,
			Voices:           a.Voices,
		},
		a.UserService,
		a.Archive,
		a.Live,
		a.WebSocket,
		a.Metrics,
		a.Registry.Len,
		a.Logger,
	)
	return nil
}

// setupTranscripts wires MongoDB as the durable store and Redis as the live mirror.
// Either may be disabled; with both off transcripts are dropped.
func (a *App) setupTranscripts(ctx context.Context) error {
	cfg := a.Config
	var sinks []transcript.Sink

	if cfg.Mongo.Enabled {
		client, db, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		a.Mongo = client
		a.onShutdown(client.Disconnect)

		store := transcript.NewMongoStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create transcript indexes: %w", err)
		}
		sinks = append(sinks, store)
		a.Archive = store
	} else {
		a.Logger.Warn("mongo disabled, conversations will not be archived")
	}

	if cfg.Redis.Enabled {
		rc, err := database.NewRedis(cfg.Redis)
		if err != nil {
			return err
		}
		a.RC = rc
		a.onShutdown(func(context.Context) error { return rc.Close() })

		mirror := transcript.NewRedisMirror(rc, cfg.Redis.TranscriptTTL())
		sinks = append(sinks, mirror)
		a.Live = mirror
	}

	switch len(sinks) {
	case 0:
		a.Sink = transcript.Nop{}
	case 1:
		a.Sink = sinks[0]
	default:
		a.Sink = transcript.NewFanout(sinks[0], sinks[1:]...)
	}
	return nil
}

func (a *App) setupUsers(db *gorm.DB) error {
	cfg := a.Config
	if db == nil {
		if !cfg.DB.Enabled {
			a.Logger.Warn("user database disabled, all connections are anonymous")
			return nil
		}
		conn, err := database.InitDB(cfg.DB)
		if err != nil {
			return err
		}
		db = conn
	}
	a.DB = db
	a.onShutdown(func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if err := database.MigrateDB(db); err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	a.UserService = user.NewUserService(
		userRepo.NewGormUserRepo(db),
		a.Logger,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour,
	)
	return nil
}

func (a *App) onShutdown(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// GetServerDependencies returns the server dependencies
func (a *App) GetServerDependencies() server.Dependencies {
	return a.ServerDeps
}

// Shutdown closes live connections, finalizes running sessions and releases stores
// in reverse order of creation.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.WebSocket != nil {
		if err := a.WebSocket.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Registry != nil {
		if n := a.Registry.CloseAll(ctx, transcript.StatusDisconnected); n > 0 {
			a.Logger.Infof("finalized %d sessions on shutdown", n)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
