// Package health runs component checks for the health endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the health of a component or of the whole service
type State string

const (
	StateHealthy   State = "healthy"
	StateWarning   State = "warning"
	StateUnhealthy State = "unhealthy"
)

// Component is the outcome of one check
type Component struct {
	Name     string                 `json:"name"`
	Status   State                  `json:"status"`
	Message  string                 `json:"message"`
	Duration string                 `json:"duration"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Status aggregates all component results
type Status struct {
	Overall    State                `json:"overall"`
	Components map[string]Component `json:"components"`
	CheckedAt  time.Time            `json:"checked_at"`
}

// Check inspects one component
type Check interface {
	Name() string
	Check(ctx context.Context) Component
}

// Checker runs registered checks on demand
type Checker struct {
	mu      sync.RWMutex
	checks  []Check
	timeout time.Duration
	log     *logrus.Logger
}

// NewChecker creates a checker. Each run is bounded by timeout.
func NewChecker(timeout time.Duration, logger *logrus.Logger, checks ...Check) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  checks,
		timeout: timeout,
		log:     logger,
	}
}

// Register adds a check
func (c *Checker) Register(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check)
}

// Run executes all checks in parallel. The overall state is the worst
// component state.
func (c *Checker) Run(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.RLock()
	checks := append([]Check(nil), c.checks...)
	c.mu.RUnlock()

	results := make(chan Component, len(checks))
	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(check Check) {
			defer wg.Done()
			start := time.Now()
			result := check.Check(ctx)
			result.Name = check.Name()
			result.Duration = time.Since(start).String()
			results <- result
		}(check)
	}
	wg.Wait()
	close(results)

	status := Status{
		Overall:    StateHealthy,
		Components: make(map[string]Component, len(checks)),
		CheckedAt:  time.Now().UTC(),
	}
	var failing []string
	for result := range results {
		status.Components[result.Name] = result
		switch result.Status {
		case StateUnhealthy:
			status.Overall = StateUnhealthy
			failing = append(failing, result.Name)
		case StateWarning:
			if status.Overall == StateHealthy {
				status.Overall = StateWarning
			}
			failing = append(failing, result.Name)
		}
	}

	if status.Overall != StateHealthy {
		c.log.WithFields(logrus.Fields{
			"overall_status": status.Overall,
			"components":     failing,
		}).Warn("Health check completed with issues")
	}
	return status
}
