package ports

import (
	"context"

	"github.com/aretw0/agentloop/pkg/domain"
)

// SessionStore holds the committed conversation log of every session.
type SessionStore interface {
	// Load returns the committed messages of a session.
	// A session that was never referenced is created empty.
	Load(ctx context.Context, sessionID string) ([]domain.Message, error)

	// Save replaces the committed messages of a session.
	Save(ctx context.Context, sessionID string, msgs []domain.Message) error

	// List returns the known session IDs.
	List(ctx context.Context) ([]string, error)
}
