package session

import (
	"context"
	"fmt"
	"time"

	"github.com/evogene-server/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySessions bounds the memory store when no size is configured
const DefaultMemorySessions = 10000

// MemoryStore keeps the most recently used sessions in process memory.
// Snapshots are lost on restart.
type MemoryStore struct {
	cache *lru.Cache[string, domain.Checkpoint]
}

// NewMemoryStore creates a store holding at most size sessions
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemorySessions
	}
	cache, err := lru.New[string, domain.Checkpoint](size)
	if err != nil {
		return nil, fmt.Errorf("creating session cache: %w", err)
	}
	return &MemoryStore{cache: cache}, nil
}

// Load returns a copy of the snapshot for sessionID
func (s *MemoryStore) Load(_ context.Context, sessionID string) (*domain.Checkpoint, error) {
	checkpoint, ok := s.cache.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	checkpoint.State = append([]byte(nil), checkpoint.State...)
	return &checkpoint, nil
}

// Save stores a copy of checkpoint, evicting the least recently used session
// when full
func (s *MemoryStore) Save(_ context.Context, checkpoint *domain.Checkpoint) error {
	checkpoint.UpdatedAt = time.Now().UTC()
	stored := *checkpoint
	stored.State = append([]byte(nil), checkpoint.State...)
	s.cache.Add(checkpoint.SessionID, stored)
	return nil
}

// Len reports the number of sessions held
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// Backend returns BackendMemory
func (s *MemoryStore) Backend() string {
	return BackendMemory
}

// Close drops all sessions
func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
