package policy

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiters hands out a token-bucket rate.Limiter per service_class,
// grounded on the teacher's AdaptiveRateLimiter
// (features/model/middleware/ratelimit.go) but simplified to a static
// per-class budget: the Orchestrator's RPC dispatch rate-limits outbound
// call() fan-out per service_class rather than adapting a single provider's
// TPM budget.
type RateLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	ratePerSecond float64
	burst         int
}

// NewRateLimiters constructs a registry handing out limiters configured
// with the given steady-state rate and burst size.
func NewRateLimiters(ratePerSecond float64, burst int) *RateLimiters {
	return &RateLimiters{
		limiters:      make(map[string]*rate.Limiter),
		ratePerSecond: ratePerSecond,
		burst:         burst,
	}
}

func (r *RateLimiters) get(serviceClass string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[serviceClass]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(r.ratePerSecond), r.burst)
	r.limiters[serviceClass] = l
	return l
}

// Wait blocks until a token for serviceClass is available or ctx is
// cancelled/deadlined, whichever comes first. A registry with
// ratePerSecond <= 0 never blocks: Wait returns nil without consulting a
// limiter. Real limiting needs a positive rate.
func (r *RateLimiters) Wait(ctx context.Context, serviceClass string) error {
	if r.ratePerSecond <= 0 {
		return nil
	}
	return r.get(serviceClass).Wait(ctx)
}
