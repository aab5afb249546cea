package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evogene-server/internal/database"
	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// exerciseStore runs the behavior every Store implementation shares
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	first := &domain.Checkpoint{
		SessionID: "patient-1",
		State:     json.RawMessage(`{"report_history":{"dna_report":"first","brain_report":"","diabetes_report":""}}`),
	}
	require.NoError(t, store.Save(ctx, first))
	assert.False(t, first.UpdatedAt.IsZero())

	loaded, err := store.Load(ctx, "patient-1")
	require.NoError(t, err)
	assert.Equal(t, "patient-1", loaded.SessionID)
	assert.Equal(t, "first", loaded.History().DNAReport)

	second := &domain.Checkpoint{
		SessionID: "patient-1",
		State:     json.RawMessage(`{"report_history":{"dna_report":"second","brain_report":"b","diabetes_report":""}}`),
	}
	require.NoError(t, store.Save(ctx, second))

	loaded, err = store.Load(ctx, "patient-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportHistory{DNAReport: "second", BrainReport: "b"}, loaded.History())

	_, err = store.Load(ctx, "patient-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	store, err := NewMemoryStore(10)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, BackendMemory, store.Backend())
	exerciseStore(t, store)
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	store, err := NewMemoryStore(2)
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, store.Save(ctx, &domain.Checkpoint{SessionID: id, State: json.RawMessage(`{}`)}))
	}
	_, err = store.Load(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, &domain.Checkpoint{SessionID: "c", State: json.RawMessage(`{}`)}))

	assert.Equal(t, 2, store.Len())
	_, err = store.Load(ctx, "b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Load(ctx, "a")
	assert.NoError(t, err)
}

func TestMemoryStore_CopiesState(t *testing.T) {
	store, err := NewMemoryStore(0)
	require.NoError(t, err)
	ctx := context.Background()

	checkpoint := &domain.Checkpoint{SessionID: "s", State: json.RawMessage(`{"a":1}`)}
	require.NoError(t, store.Save(ctx, checkpoint))
	checkpoint.State[2] = 'b'

	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(loaded.State))
}

func TestSQLiteStore(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLiteStore(db)
	assert.Equal(t, BackendSQLite, store.Backend())
	exerciseStore(t, store)
}

func TestPostgresStore(t *testing.T) {
	if os.Getenv("EVOGENE_TEST_CONTAINERS") != "1" {
		t.Skip("EVOGENE_TEST_CONTAINERS not set, skipping PostgreSQL container tests")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("evogene"),
		postgres.WithUsername("evogene"),
		postgres.WithPassword("evogene"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	runner, err := database.NewMigrationRunner(dsn, "../../migrations", logging.Discard())
	require.NoError(t, err)
	require.NoError(t, runner.Up())
	require.NoError(t, runner.Close())

	db, err := database.NewConnection(ctx, dsn, domain.DatabaseConfig{MaxConns: 4}, logging.Discard())
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db.Pool)
	assert.Equal(t, BackendPostgres, store.Backend())
	exerciseStore(t, store)
}
