package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evogene-server/internal/domain"
)

// SQLiteStore keeps checkpoints in a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on a database opened with
// database.OpenSQLite
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load retrieves the snapshot for sessionID
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*domain.Checkpoint, error) {
	var (
		checkpoint domain.Checkpoint
		state      string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT session_id, state, updated_at FROM checkpoints WHERE session_id = ?",
		sessionID,
	).Scan(&checkpoint.SessionID, &state, &checkpoint.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	checkpoint.State = json.RawMessage(state)

	return &checkpoint, nil
}

// Save upserts the snapshot
func (s *SQLiteStore) Save(ctx context.Context, checkpoint *domain.Checkpoint) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (session_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, checkpoint.SessionID, string(checkpoint.State), now)
	if err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	checkpoint.UpdatedAt = now
	return nil
}

// Backend returns BackendSQLite
func (s *SQLiteStore) Backend() string {
	return BackendSQLite
}

// Close is a no-op; the database handle is shared and owned by the caller
func (s *SQLiteStore) Close() error {
	return nil
}
