package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpanvictor/aura/internal/repository/transcript"
)

type tally struct {
	mu      sync.Mutex
	started int
	ended   map[string]int
}

func (t *tally) SessionStarted() {
	t.mu.Lock()
	t.started++
	t.mu.Unlock()
}

func (t *tally) SessionEnded(status string, lifetime time.Duration) {
	t.mu.Lock()
	if t.ended == nil {
		t.ended = map[string]int{}
	}
	t.ended[status]++
	t.mu.Unlock()
}

func (f *fixture) factory(connID string) Factory {
	return func(ctx context.Context) (*Session, error) {
		return New(ctx, f.config(connID))
	}
}

func TestRegistryStartGetEnd(t *testing.T) {
	f := newFixture()
	obs := &tally{}
	r := NewRegistry(nil).WithObserver(obs)
	ctx := context.Background()

	s, err := r.Start(ctx, "c1", f.factory("c1"))
	require.NoError(t, err)
	got, ok := r.Get("c1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())

	sum, err := r.End(ctx, "c1", transcript.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, transcript.StatusCompleted, sum.Status)
	assert.Equal(t, ENDED, s.Phase())
	assert.Equal(t, 0, r.Len())

	_, err = r.End(ctx, "c1", transcript.StatusCompleted)
	assert.ErrorIs(t, err, ErrNoSession)

	assert.Equal(t, 1, obs.started)
	assert.Equal(t, 1, obs.ended[transcript.StatusCompleted])
}

func TestRegistryReplacesDuplicateStart(t *testing.T) {
	f := newFixture()
	r := NewRegistry(nil)
	ctx := context.Background()

	first, err := r.Start(ctx, "c1", f.factory("c1"))
	require.NoError(t, err)
	second, err := r.Start(ctx, "c1", f.factory("c1"))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, ENDED, first.Phase())
	assert.Equal(t, ACTIVE, second.Phase())
	require.Len(t, f.sink.finalized, 1)
	assert.Equal(t, transcript.StatusReplaced, f.sink.finalized[0].Status)

	got, _ := r.Get("c1")
	assert.Same(t, second, got)
}

func TestRegistryFactoryError(t *testing.T) {
	r := NewRegistry(nil)
	boom := errors.New("boom")
	_, err := r.Start(context.Background(), "c1", func(context.Context) (*Session, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryConcurrentConnections(t *testing.T) {
	f := newFixture()
	r := NewRegistry(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", i)
			s, err := r.Start(ctx, conn, f.factory(conn))
			if !assert.NoError(t, err) {
				return
			}
			_, err = s.ProcessTurn(ctx, "hi", nopEmitter)
			assert.NoError(t, err)
			_ = r.Snapshot()
			if i%2 == 0 {
				_, err = r.End(ctx, conn, transcript.StatusCompleted)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, r.Len())
	assert.Len(t, r.Snapshot(), 25)
	assert.Equal(t, 25, r.CloseAll(ctx, transcript.StatusDisconnected))
	assert.Equal(t, 0, r.Len())
	assert.Len(t, f.sink.finalized, 50)
}
