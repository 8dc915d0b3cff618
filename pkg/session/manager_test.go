package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/agentloop/pkg/adapters/memory"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/ports"
	"github.com/aretw0/agentloop/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLocker records lock usage and can simulate another replica holding a key.
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	unlocked int
}

func (f *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = make(map[string]bool)
	}
	if f.held[key] {
		return nil, domain.ErrSessionBusy
	}
	f.held[key] = true
	return func(ctx context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
		f.unlocked++
		return nil
	}, nil
}

func TestManager_RejectsConcurrentRuns(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	var acquired atomic.Int32
	var wg sync.WaitGroup
	releases := make(chan session.ReleaseFunc, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := mgr.Acquire(ctx, "same")
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrSessionBusy)
				return
			}
			acquired.Add(1)
			releases <- release
		}()
	}
	wg.Wait()
	close(releases)

	assert.Equal(t, int32(1), acquired.Load())
	assert.True(t, mgr.Busy("same"))
	for release := range releases {
		release()
	}
	assert.False(t, mgr.Busy("same"))

	// Free again after release.
	release, err := mgr.Acquire(ctx, "same")
	require.NoError(t, err)
	release()
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &fakeLocker{}
	mgr := session.NewManager(memory.NewStore(), session.WithLocker(locker))
	ctx := context.Background()

	// Another replica holds the session.
	locker.held = map[string]bool{"remote": true}
	_, err := mgr.Acquire(ctx, "remote")
	assert.ErrorIs(t, err, domain.ErrSessionBusy)
	assert.False(t, mgr.Busy("remote"), "local claim must be rolled back")

	release, err := mgr.Acquire(ctx, "local")
	require.NoError(t, err)
	release()
	assert.Equal(t, 1, locker.unlocked)
}

func TestManager_HistoryIsIdempotent(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, mgr.Commit(ctx, "s1", []domain.Message{
		domain.NewUserMessage("hi"),
		domain.NewModelMessage("hello", nil),
	}))

	first, err := mgr.History(ctx, "s1")
	require.NoError(t, err)
	second, err := mgr.History(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []domain.HistoryEntry{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleModel, Content: "hello"},
	}, first)
}

func TestManager_HistoryOfUnknownSessionIsEmpty(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())

	history, err := mgr.History(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, history)

	sessions, err := mgr.List(context.Background())
	require.NoError(t, err)
	assert.Contains(t, sessions, "never-seen")
}
