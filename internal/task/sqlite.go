package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evogene-server/internal/domain"
)

// SQLiteStore keeps task results in a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on a database opened with
// database.OpenSQLite
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save upserts a task result
func (s *SQLiteStore) Save(ctx context.Context, result *domain.TaskResult) error {
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_results (task_id, status, payload, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			status = excluded.status,
			payload = excluded.payload
	`, result.TaskID, string(result.Status), string(result.Payload), result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save task result: %w", err)
	}
	return nil
}

// Get retrieves a task result
func (s *SQLiteStore) Get(ctx context.Context, taskID string) (*domain.TaskResult, error) {
	var (
		result  domain.TaskResult
		status  string
		payload string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT task_id, status, payload, created_at FROM task_results WHERE task_id = ?",
		taskID,
	).Scan(&result.TaskID, &status, &payload, &result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task result: %w", err)
	}

	result.Status = domain.TaskStatus(status)
	result.Payload = json.RawMessage(payload)
	return &result, nil
}

// Purge deletes results created before cutoff
func (s *SQLiteStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM task_results WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge task results: %w", err)
	}
	return res.RowsAffected()
}

// Backend returns "sqlite"
func (s *SQLiteStore) Backend() string {
	return "sqlite"
}

// Close is a no-op; the database handle is shared and owned by the caller
func (s *SQLiteStore) Close() error {
	return nil
}
