package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evogene-server/internal/domain"
)

// MemoryRepository keeps records in process memory. It backs the server
// when no database is available.
type MemoryRepository struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	predictions map[int64]domain.DiabetesPrediction
	scans       map[int64]domain.BrainScan
	nextID      int64
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:       make(map[string]domain.User),
		predictions: make(map[int64]domain.DiabetesPrediction),
		scans:       make(map[int64]domain.BrainScan),
	}
}

func (r *MemoryRepository) id() int64 {
	r.nextID++
	return r.nextID
}

// CreateUser stores user; emails are unique case-insensitively
func (r *MemoryRepository) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := r.users[key]; exists {
		return ErrEmailTaken
	}
	user.ID = r.id()
	user.CreatedAt = time.Now().UTC()
	r.users[key] = *user
	return nil
}

// GetUserByEmail retrieves a user by email
func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return &user, nil
}

// SaveDiabetesPrediction stores p
func (r *MemoryRepository) SaveDiabetesPrediction(_ context.Context, p *domain.DiabetesPrediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.ID = r.id()
	p.CreatedAt = time.Now().UTC()
	r.predictions[p.ID] = *p
	return nil
}

// GetDiabetesPrediction retrieves a prediction by ID
func (r *MemoryRepository) GetDiabetesPrediction(_ context.Context, id int64) (*domain.DiabetesPrediction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.predictions[id]
	if !ok {
		return nil, fmt.Errorf("diabetes prediction not found: %w", domain.ErrNotFound)
	}
	return &p, nil
}

// SaveBrainScan stores s
func (r *MemoryRepository) SaveBrainScan(_ context.Context, s *domain.BrainScan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.ID = r.id()
	s.CreatedAt = time.Now().UTC()
	r.scans[s.ID] = *s
	return nil
}

// UpdateBrainScanMask records the generated mask for a stored scan
func (r *MemoryRepository) UpdateBrainScanMask(_ context.Context, id int64, maskPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.scans[id]
	if !ok {
		return fmt.Errorf("brain scan not found: %w", domain.ErrNotFound)
	}
	s.MaskPath = maskPath
	r.scans[id] = s
	return nil
}

// GetBrainScan retrieves a scan by ID
func (r *MemoryRepository) GetBrainScan(_ context.Context, id int64) (*domain.BrainScan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scans[id]
	if !ok {
		return nil, fmt.Errorf("brain scan not found: %w", domain.ErrNotFound)
	}
	return &s, nil
}
