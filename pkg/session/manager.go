package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/agentloop/internal/logging"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock survives a crashed holder.
const DefaultLockTTL = 2 * time.Minute

// ReleaseFunc gives a session back after a run.
type ReleaseFunc func()

// Manager orchestrates session access.
// At most one run may hold a session at a time; a second run is rejected
// with domain.ErrSessionBusy instead of being queued.
type Manager struct {
	store ports.SessionStore

	mu   sync.Mutex          // Global lock for the map
	busy map[string]struct{} // Sessions with a run in flight

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		busy:    make(map[string]struct{}),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire claims exclusive use of a session for one run.
// The returned ReleaseFunc MUST be called when the run ends.
func (m *Manager) Acquire(ctx context.Context, sessionID string) (ReleaseFunc, error) {
	m.mu.Lock()
	if _, held := m.busy[sessionID]; held {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionBusy, sessionID)
	}
	m.busy[sessionID] = struct{}{}
	m.mu.Unlock()

	releaseLocal := func() {
		m.mu.Lock()
		delete(m.busy, sessionID)
		m.mu.Unlock()
	}

	if m.locker == nil {
		return releaseLocal, nil
	}

	unlock, err := m.locker.TryLock(ctx, sessionID, m.lockTTL)
	if err != nil {
		releaseLocal()
		return nil, err
	}

	return func() {
		// The run context may already be canceled; unlocking must still reach the backend.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := unlock(ctx); err != nil {
			m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
				"session_id", sessionID,
				"err", err,
			)
		}
		releaseLocal()
	}, nil
}

// Busy reports whether a run currently holds the session on this instance.
func (m *Manager) Busy(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.busy[sessionID]
	return held
}

// Load returns the committed messages of a session.
func (m *Manager) Load(ctx context.Context, sessionID string) ([]domain.Message, error) {
	msgs, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return msgs, nil
}

// History returns the role/content projection of a session.
func (m *Manager) History(ctx context.Context, sessionID string) ([]domain.HistoryEntry, error) {
	msgs, err := m.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return domain.Entries(msgs), nil
}

// Commit persists the full log of a session after a completed run.
func (m *Manager) Commit(ctx context.Context, sessionID string, msgs []domain.Message) error {
	if err := m.store.Save(ctx, sessionID, msgs); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	return nil
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
