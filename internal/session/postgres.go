package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evogene-server/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps checkpoints in the checkpoints table. The schema is
// created by migrations.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a store on an established pool
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load retrieves the snapshot for sessionID
func (s *PostgresStore) Load(ctx context.Context, sessionID string) (*domain.Checkpoint, error) {
	query := `SELECT session_id, state, updated_at FROM checkpoints WHERE session_id = $1`

	var (
		checkpoint domain.Checkpoint
		state      []byte
	)
	err := s.db.QueryRow(ctx, query, sessionID).Scan(&checkpoint.SessionID, &state, &checkpoint.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	checkpoint.State = json.RawMessage(state)

	return &checkpoint, nil
}

// Save upserts the snapshot
func (s *PostgresStore) Save(ctx context.Context, checkpoint *domain.Checkpoint) error {
	query := `
		INSERT INTO checkpoints (session_id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	if _, err := s.db.Exec(ctx, query, checkpoint.SessionID, string(checkpoint.State), now); err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	checkpoint.UpdatedAt = now
	return nil
}

// Backend returns BackendPostgres
func (s *PostgresStore) Backend() string {
	return BackendPostgres
}

// Close is a no-op; the pool is owned by the caller
func (s *PostgresStore) Close() error {
	return nil
}
