package assistant

import (
	"context"
	"sync"
	"time"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pacer keeps at most one provider call in flight and starts the next one no sooner than
// interval after the previous one ended. One Pacer is shared by the whole process.
// A zero interval disables pacing.
type Pacer struct {
	slot     chan struct{}
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	now   func() time.Time
	sleep SleepFunc
}

func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{slot: make(chan struct{}, 1), interval: interval, now: time.Now, sleep: sleepCtx}
}

// WithClock swaps the time source and sleeper, mostly for tests.
func (p *Pacer) WithClock(now func() time.Time, sleep SleepFunc) *Pacer {
	p.now = now
	p.sleep = sleep
	return p
}

func (p *Pacer) Interval() time.Duration { return p.interval }

// Wait blocks until no other call holds the pacer and a full interval has passed since
// the previous call ended. Every nil return must be paired with Done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}
	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	last := p.last
	p.mu.Unlock()
	if last.IsZero() {
		return nil
	}
	if d := last.Add(p.interval).Sub(p.now()); d > 0 {
		if err := p.sleep(ctx, d); err != nil {
			<-p.slot
			return err
		}
	}
	return nil
}

// Done stamps the end of the call and hands the pacer to the next waiter.
func (p *Pacer) Done() {
	if p.interval <= 0 {
		return
	}
	p.mu.Lock()
	p.last = p.now()
	p.mu.Unlock()
	<-p.slot
}
