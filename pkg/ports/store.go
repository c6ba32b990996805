package ports

import (
	"context"

	"github.com/aretw0/chatflow/pkg/domain"
)

// ContextStore defines the interface for keeping per-user sessions.
type ContextStore interface {
	// Save stores the session for a given user ID, replacing any previous one.
	Save(ctx context.Context, userID string, session *domain.Session) error

	// Load retrieves the session for a given user ID.
	// Returns domain.ErrSessionNotFound if the user has no session.
	Load(ctx context.Context, userID string) (*domain.Session, error)

	// Delete removes the session for a given user ID. Deleting a missing session is not an error.
	Delete(ctx context.Context, userID string) error

	// List returns the user IDs with a stored session.
	List(ctx context.Context) ([]string, error)
}
