package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xpanvictor/aura/pkg/Logger"
)

type GatewayConfig struct {
	MaxRetries     int           // total attempts, 3
	BackoffUnit    time.Duration // 2s; the n-th rate-limited attempt waits n units
	RequestTimeout time.Duration // per attempt, 30s
}

// Gateway wraps a Backend with pacing, rate-limit backoff and a bounded retry budget.
type Gateway struct {
	backend  Backend
	pacer    *Pacer
	cfg      GatewayConfig
	sleep    SleepFunc
	observer Observer
	logger   *Logger.Logger
}

var _ Chatter = (*Gateway)(nil)

func NewGateway(backend Backend, pacer *Pacer, cfg GatewayConfig, logger *Logger.Logger) *Gateway {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if logger == nil {
		logger = Logger.NewNop()
	}
	return &Gateway{
		backend: backend,
		pacer:   pacer,
		cfg:     cfg,
		sleep:   sleepCtx,
		logger:  logger.Named("assistant"),
	}
}

// WithSleep replaces the backoff sleeper.
func (g *Gateway) WithSleep(fn SleepFunc) *Gateway {
	g.sleep = fn
	return g
}

func (g *Gateway) WithObserver(o Observer) *Gateway {
	g.observer = o
	return g
}

func (g *Gateway) Provider() string { return g.backend.Name() }

// Chat runs one completion. Only rate-limit answers are retried; every other failure,
// including an attempt timeout, is returned immediately.
func (g *Gateway) Chat(ctx context.Context, msgs []Message, temperature float64, maxTokens int) (string, error) {
	req := Request{Messages: msgs, Temperature: temperature, MaxTokens: maxTokens}

	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxRetries; attempt++ {
		if err := g.pacer.Wait(ctx); err != nil {
			return "", err
		}

		text, took, err := g.pacedAttempt(ctx, req)

		switch {
		case err == nil && strings.TrimSpace(text) == "":
			g.observe(OutcomeEmpty, took)
			return "", ErrEmptyCompletion
		case err == nil:
			g.observe(OutcomeOK, took)
			return strings.TrimSpace(text), nil
		case IsRateLimited(err):
			g.observe(OutcomeRateLimited, took)
			lastErr = err
			if attempt == g.cfg.MaxRetries-1 {
				g.logger.Warnf("%s rate limited, giving up (attempt %d/%d)", g.backend.Name(), attempt+1, g.cfg.MaxRetries)
				break
			}
			wait := time.Duration(attempt+1) * g.cfg.BackoffUnit
			g.logger.Warnf("%s rate limited, waiting %s (attempt %d/%d)", g.backend.Name(), wait, attempt+1, g.cfg.MaxRetries)
			if err := g.sleep(ctx, wait); err != nil {
				return "", err
			}
		default:
			g.observe(OutcomeError, took)
			return "", err
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, g.cfg.MaxRetries, lastErr)
}

// pacedAttempt releases the pacer once the backend returns, even on panic.
func (g *Gateway) pacedAttempt(ctx context.Context, req Request) (string, time.Duration, error) {
	defer g.pacer.Done()
	start := time.Now()
	text, err := g.attempt(ctx, req)
	return text, time.Since(start), err
}

func (g *Gateway) attempt(ctx context.Context, req Request) (string, error) {
	if g.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()
	}
	text, err := g.backend.Complete(ctx, req)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%s request timed out after %s: %w", g.backend.Name(), g.cfg.RequestTimeout, err)
	}
	return text, err
}

func (g *Gateway) observe(outcome string, took time.Duration) {
	if g.observer != nil {
		g.observer.ObserveChat(g.backend.Name(), outcome, took)
	}
}
