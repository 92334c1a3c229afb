package membership

import (
	"context"

	"membersync/pkg/circuitbreaker"
	"membersync/pkg/rules"
)

// CircuitBreakerSource guards a CandidateSource with a circuit breaker. While
// the breaker is open refreshes fail fast with the breaker error and the
// stored membership stays untouched.
type CircuitBreakerSource[E rules.Entity] struct {
	source CandidateSource[E]
	cb     *circuitbreaker.Wrapper
}

func NewCircuitBreakerSource[E rules.Entity](source CandidateSource[E], cb *circuitbreaker.Wrapper) *CircuitBreakerSource[E] {
	return &CircuitBreakerSource[E]{source: source, cb: cb}
}

func (s *CircuitBreakerSource[E]) ListEntities(ctx context.Context, storeID string) ([]E, error) {
	if s.cb == nil {
		return s.source.ListEntities(ctx, storeID)
	}
	return circuitbreaker.Execute(ctx, s.cb, func() ([]E, error) {
		return s.source.ListEntities(ctx, storeID)
	})
}
