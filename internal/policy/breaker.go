// Package policy implements the Error/Policy Layer of spec.md §2: retry
// budgets and circuit-breaking on degraded peers (spec.md §7's
// TransportUnavailable → retry-with-backoff → DEGRADED pipeline, and the
// per-peer breaker referenced in SPEC_FULL.md's domain stack).
package policy

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerKey identifies the (service_class, provider_id) pair a circuit
// breaker guards.
type BreakerKey struct {
	ServiceClass string
	ProviderID   string
}

// Breakers manages one gobreaker circuit breaker per (service_class,
// provider_id) pair, tripping to open after repeated RPC failures. A trip
// is reported through the onTrip callback given to NewBreakers; nothing in
// this package changes a participant's state.
type Breakers struct {
	mu       sync.Mutex
	breakers map[BreakerKey]*gobreaker.CircuitBreaker[any]

	onTrip func(BreakerKey)
}

// NewBreakers constructs an empty Breakers registry. onTrip, if non-nil, is
// invoked whenever a breaker transitions to the open state.
func NewBreakers(onTrip func(BreakerKey)) *Breakers {
	return &Breakers{breakers: make(map[BreakerKey]*gobreaker.CircuitBreaker[any]), onTrip: onTrip}
}

func (b *Breakers) get(key BreakerKey) *gobreaker.CircuitBreaker[any] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[key]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        key.ServiceClass + "@" + key.ProviderID,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen && b.onTrip != nil {
				b.onTrip(key)
			}
		},
	})
	b.breakers[key] = cb
	return cb
}

// Execute runs fn through the breaker for key, short-circuiting with
// gobreaker.ErrOpenState when the breaker is open.
func (b *Breakers) Execute(ctx context.Context, key BreakerKey, fn func(context.Context) (any, error)) (any, error) {
	cb := b.get(key)
	return cb.Execute(func() (any, error) { return fn(ctx) })
}

// State reports the current breaker state for key, for introspection by the
// Participant Runtime and the Monitoring Plane.
func (b *Breakers) State(key BreakerKey) gobreaker.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.breakers[key]
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}
