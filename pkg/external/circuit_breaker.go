package external

import (
	"sync"

	"github.com/evogene-server/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerRegistry keeps the circuit breakers created for remote services so
// their state can be reported by health checks.
type BreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
	log      *logrus.Logger
}

// NewBreakerRegistry creates an empty registry
func NewBreakerRegistry(logger *logrus.Logger) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		log:      logger,
	}
}

// New creates and registers a breaker named name
func (r *BreakerRegistry) New(name string, config domain.CircuitBreakerConfig) *gobreaker.CircuitBreaker {
	minRequests := config.MinRequests
	if minRequests == 0 {
		minRequests = 3
	}
	failureRatio := config.FailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.6
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= failureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	r.mu.Lock()
	r.breakers[name] = breaker
	r.mu.Unlock()

	return breaker
}

// States returns the current state of every registered breaker
func (r *BreakerRegistry) States() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]string, len(r.breakers))
	for name, breaker := range r.breakers {
		states[name] = breaker.State().String()
	}
	return states
}
