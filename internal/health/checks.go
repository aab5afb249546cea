package health

import (
	"context"
	"fmt"
	"sort"
)

// PingCheck reports a dependency healthy when its ping succeeds. A failing
// optional dependency is a warning rather than unhealthy.
type PingCheck struct {
	name     string
	optional bool
	ping     func(ctx context.Context) error
	stats    func() map[string]interface{}
}

// NewPingCheck creates a check named name around ping
func NewPingCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping}
}

// Optional downgrades failures to warnings
func (p *PingCheck) Optional() *PingCheck {
	p.optional = true
	return p
}

// WithStats attaches metadata collected after a successful ping
func (p *PingCheck) WithStats(stats func() map[string]interface{}) *PingCheck {
	p.stats = stats
	return p
}

// Name implements Check
func (p *PingCheck) Name() string {
	return p.name
}

// Check implements Check
func (p *PingCheck) Check(ctx context.Context) Component {
	if err := p.ping(ctx); err != nil {
		state := StateUnhealthy
		if p.optional {
			state = StateWarning
		}
		return Component{
			Status:  state,
			Message: fmt.Sprintf("%s ping failed", p.name),
			Error:   err.Error(),
		}
	}

	c := Component{Status: StateHealthy, Message: fmt.Sprintf("%s reachable", p.name)}
	if p.stats != nil {
		c.Metadata = p.stats()
	}
	return c
}

// staticCheck reports a state fixed at startup
type staticCheck struct {
	name    string
	state   State
	message string
}

// Static returns a check that always reports state with message
func Static(name string, state State, message string) Check {
	return staticCheck{name: name, state: state, message: message}
}

func (s staticCheck) Name() string {
	return s.name
}

func (s staticCheck) Check(context.Context) Component {
	return Component{Status: s.state, Message: s.message}
}

// BreakerCheck warns while any circuit breaker is not closed
type BreakerCheck struct {
	states func() map[string]string
}

// NewBreakerCheck creates a check over a breaker state snapshot function
func NewBreakerCheck(states func() map[string]string) *BreakerCheck {
	return &BreakerCheck{states: states}
}

// Name implements Check
func (b *BreakerCheck) Name() string {
	return "circuit_breakers"
}

// Check implements Check
func (b *BreakerCheck) Check(context.Context) Component {
	states := b.states()
	metadata := make(map[string]interface{}, len(states))
	var tripped []string
	for name, state := range states {
		metadata[name] = state
		if state != "closed" {
			tripped = append(tripped, name)
		}
	}

	if len(tripped) > 0 {
		sort.Strings(tripped)
		return Component{
			Status:   StateWarning,
			Message:  fmt.Sprintf("circuit open for %v", tripped),
			Metadata: metadata,
		}
	}
	return Component{Status: StateHealthy, Message: "all circuits closed", Metadata: metadata}
}
