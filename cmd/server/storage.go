package main

import (
	"context"
	"fmt"
	"io"

	"github.com/evogene-server/internal/database"
	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/internal/health"
	"github.com/evogene-server/internal/repository"
	"github.com/evogene-server/internal/session"
	"github.com/evogene-server/internal/task"
	"github.com/sirupsen/logrus"
)

// records is the account and analysis persistence used by the handlers
type records interface {
	domain.UserRepository
	domain.PredictionRepository
}

// storage holds the stores selected at startup
type storage struct {
	sessions session.Store
	tasks    task.ResultStore
	records  records
	backend  string
	checks   []health.Check
	closers  []func()
}

// backends reports the active implementation of each store
func (s *storage) backends() map[string]string {
	return map[string]string{
		"sessions": s.sessions.Backend(),
		"tasks":    s.tasks.Backend(),
		"records":  s.backend,
	}
}

// Close releases stores in reverse order of opening
func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func closeQuietly(logger *logrus.Logger, name string, c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.WithError(err).WithField("store", name).Warn("Failed to close store")
		}
	}
}

// openStorage opens the configured backend. When a durable backend cannot be
// opened the server keeps running on memory stores in degraded mode.
func openStorage(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger) (*storage, error) {
	cfg := configManager.GetConfig()

	var (
		st  *storage
		err error
	)
	switch cfg.Storage.Backend {
	case session.BackendPostgres:
		st, err = openPostgres(ctx, configManager, logger)
	case session.BackendSQLite:
		st, err = openSQLite(cfg.Storage.SQLitePath, logger)
	case session.BackendMemory:
		return openMemory(cfg.Storage, logger, false)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}

	if err != nil {
		logger.WithFields(logrus.Fields{
			"backend": cfg.Storage.Backend,
			"error":   err,
		}).Warn("Durable storage unavailable, falling back to in-memory stores")
		return openMemory(cfg.Storage, logger, true)
	}
	return st, nil
}

func openPostgres(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger) (*storage, error) {
	dbConfig := configManager.GetDatabaseConfig()
	dsn := configManager.GetDatabaseConnectionString()

	db, err := database.NewConnection(ctx, dsn, *dbConfig, logger)
	if err != nil {
		return nil, err
	}

	if dbConfig.AutoMigrate {
		if err := migrateUp(dsn, dbConfig.MigrationsPath, logger); err != nil {
			db.Close()
			return nil, err
		}
	}

	tasks, err := task.NewPostgresStoreFromURL(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening task store: %w", err)
	}

	return &storage{
		sessions: session.NewPostgresStore(db.Pool),
		tasks:    tasks,
		records:  repository.NewPostgresRepository(db.Pool, logger),
		backend:  session.BackendPostgres,
		checks: []health.Check{
			health.NewPingCheck("database", db.Health).WithStats(func() map[string]interface{} {
				stats := db.Stats()
				return map[string]interface{}{
					"total_conns":    stats.TotalConns(),
					"idle_conns":     stats.IdleConns(),
					"acquired_conns": stats.AcquiredConns(),
					"max_conns":      stats.MaxConns(),
				}
			}),
			health.NewPingCheck("task_store", tasks.Ping),
		},
		closers: []func(){
			db.Close,
			closeQuietly(logger, "tasks", tasks),
		},
	}, nil
}

func openSQLite(path string, logger *logrus.Logger) (*storage, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}

	logger.WithField("path", path).Info("SQLite storage opened")
	return &storage{
		sessions: session.NewSQLiteStore(db),
		tasks:    task.NewSQLiteStore(db),
		records:  repository.NewSQLiteRepository(db),
		backend:  session.BackendSQLite,
		checks:   []health.Check{health.NewPingCheck("database", db.PingContext)},
		closers:  []func(){closeQuietly(logger, "sqlite", db)},
	}, nil
}

func openMemory(cfg domain.StorageConfig, logger *logrus.Logger, degraded bool) (*storage, error) {
	sessions, err := session.NewMemoryStore(cfg.MemoryMaxSessions)
	if err != nil {
		return nil, fmt.Errorf("creating memory session store: %w", err)
	}
	tasks := task.NewMemoryStore(cfg.TaskResultTTL)

	state, message := health.StateHealthy, "in-memory stores configured"
	if degraded {
		state, message = health.StateWarning, "durable storage unavailable, running on in-memory fallback"
	}

	return &storage{
		sessions: sessions,
		tasks:    tasks,
		records:  repository.NewMemoryRepository(),
		backend:  session.BackendMemory,
		checks:   []health.Check{health.Static("storage", state, message)},
		closers: []func(){
			closeQuietly(logger, "sessions", sessions),
			closeQuietly(logger, "tasks", tasks),
		},
	}, nil
}

func migrateUp(dsn, migrationsPath string, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(dsn, migrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	if err := runner.Up(); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
