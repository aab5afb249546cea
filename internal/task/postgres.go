package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evogene-server/internal/domain"
	_ "github.com/lib/pq"
)

// PostgresStore keeps task results in the task_results table.
// It expects the schema to already exist (created via migrations).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store on an open database handle
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens a lib/pq handle for databaseURL
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Save upserts a task result
func (s *PostgresStore) Save(ctx context.Context, result *domain.TaskResult) error {
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO task_results (task_id, status, payload, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (task_id) DO UPDATE SET
			status = EXCLUDED.status,
			payload = EXCLUDED.payload`

	_, err := s.db.ExecContext(ctx, query,
		result.TaskID,
		string(result.Status),
		string(result.Payload),
		result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task result: %w", err)
	}
	return nil
}

// Get retrieves a task result
func (s *PostgresStore) Get(ctx context.Context, taskID string) (*domain.TaskResult, error) {
	query := `SELECT task_id, status, payload, created_at FROM task_results WHERE task_id = $1`

	var (
		result  domain.TaskResult
		status  string
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, query, taskID).Scan(&result.TaskID, &status, &payload, &result.CreatedAt)
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
func (s *PostgresStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM task_results WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge task results: %w", err)
	}
	return res.RowsAffected()
}

// Backend returns "postgres"
func (s *PostgresStore) Backend() string {
	return "postgres"
}

// Ping verifies the connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
