package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It allows the session manager to reject concurrent runs across multiple instances (replicas).
type DistributedLocker interface {
	// TryLock attempts to acquire the lock for key without waiting.
	// It returns domain.ErrSessionBusy if another holder owns the lock.
	// The lock expires after ttl if never released.
	// Returns an UnlockFunc that MUST be called to release the lock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
