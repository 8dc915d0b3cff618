package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/agentloop/pkg/adapters/redis"
	"github.com/aretw0/agentloop/pkg/domain"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Locker) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return mr, redis.NewLocker(client, "test:")
}

func TestLocker_TryLock(t *testing.T) {
	mr, locker := setup(t)
	ctx := context.Background()

	unlock, err := locker.TryLock(ctx, "s1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:s1"))

	// Second attempt is rejected without waiting
	_, err = locker.TryLock(ctx, "s1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrSessionBusy)

	// Other sessions are unaffected
	unlockOther, err := locker.TryLock(ctx, "s2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlockOther(ctx))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:s1"))

	unlock, err = locker.TryLock(ctx, "s1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestLocker_TTL_Expiration(t *testing.T) {
	mr, locker := setup(t)
	ctx := context.Background()

	_, err := locker.TryLock(ctx, "crashed", time.Second)
	require.NoError(t, err)

	// Holder never unlocks; TTL frees the session.
	mr.FastForward(2 * time.Second)

	unlock, err := locker.TryLock(ctx, "crashed", time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestLocker_StaleUnlockKeepsNewOwner(t *testing.T) {
	mr, locker := setup(t)
	ctx := context.Background()

	staleUnlock, err := locker.TryLock(ctx, "s1", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	_, err = locker.TryLock(ctx, "s1", time.Minute)
	require.NoError(t, err)

	// The expired owner must not release the new owner's lock
	require.NoError(t, staleUnlock(ctx))
	assert.True(t, mr.Exists("test:lock:s1"))
}
