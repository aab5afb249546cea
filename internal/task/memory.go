package task

import (
	"context"
	"fmt"
	"time"

	"github.com/evogene-server/internal/domain"
	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps task results in process memory and expires them after
// the configured ttl
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore creates a store whose entries live for ttl
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cleanup := ttl / 2
	if cleanup > 10*time.Minute {
		cleanup = 10 * time.Minute
	}
	return &MemoryStore{cache: cache.New(ttl, cleanup)}
}

// Save stores a copy of result
func (s *MemoryStore) Save(_ context.Context, result *domain.TaskResult) error {
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	stored := *result
	stored.Payload = append([]byte(nil), result.Payload...)
	s.cache.Set(result.TaskID, &stored, cache.DefaultExpiration)
	return nil
}

// Get returns a copy of the stored result
func (s *MemoryStore) Get(_ context.Context, taskID string) (*domain.TaskResult, error) {
	x, found := s.cache.Get(taskID)
	if !found {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	result := *x.(*domain.TaskResult)
	return &result, nil
}

// Purge removes results created before cutoff
func (s *MemoryStore) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	for id, item := range s.cache.Items() {
		if result, ok := item.Object.(*domain.TaskResult); ok && result.CreatedAt.Before(cutoff) {
			s.cache.Delete(id)
			removed++
		}
	}
	return removed, nil
}

// Backend returns "memory"
func (s *MemoryStore) Backend() string {
	return "memory"
}

// Close drops all results
func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
