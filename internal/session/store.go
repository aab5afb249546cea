// Package session persists per-session router snapshots keyed by session id.
package session

import (
	"context"

	"github.com/evogene-server/internal/domain"
)

// Backend names reported by stores
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Store is the checkpoint persistence capability used by the router service
type Store interface {
	// Load returns the latest snapshot for sessionID, or an error wrapping
	// domain.ErrNotFound when the session has none.
	Load(ctx context.Context, sessionID string) (*domain.Checkpoint, error)

	// Save replaces the snapshot for checkpoint.SessionID
	Save(ctx context.Context, checkpoint *domain.Checkpoint) error

	// Backend names the storage implementation
	Backend() string

	Close() error
}
