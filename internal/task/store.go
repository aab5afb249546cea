// Package task runs background analyses on a bounded worker pool and keeps
// their results for polling.
package task

import (
	"context"
	"time"

	"github.com/evogene-server/internal/domain"
	"github.com/sirupsen/logrus"
)

// ResultStore keeps task outcomes keyed by task id
type ResultStore interface {
	// Save stores or replaces the result for result.TaskID
	Save(ctx context.Context, result *domain.TaskResult) error

	// Get returns the result for taskID, or an error wrapping
	// domain.ErrNotFound while the task has not finished.
	Get(ctx context.Context, taskID string) (*domain.TaskResult, error)

	// Purge removes results created before cutoff
	Purge(ctx context.Context, cutoff time.Time) (int64, error)

	Backend() string
	Close() error
}

// RunJanitor purges results older than ttl every interval until ctx ends
func RunJanitor(ctx context.Context, store ResultStore, ttl, interval time.Duration, logger *logrus.Logger) {
	if ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Purge(ctx, time.Now().UTC().Add(-ttl))
			if err != nil {
				logger.WithError(err).Warn("Failed to purge task results")
				continue
			}
			if removed > 0 {
				logger.WithField("removed", removed).Info("Purged expired task results")
			}
		}
	}
}
