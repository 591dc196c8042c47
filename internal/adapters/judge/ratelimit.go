package judge

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a judge with a client-side token bucket so a burst of
// concurrent matches does not trip provider limits.
type RateLimited struct {
	inner   Judge
	limiter *rate.Limiter
}

// NewRateLimited creates a rate-limited judge allowing perSecond requests
// with a burst capacity of burst tokens. A non-positive perSecond disables
// limiting.
func NewRateLimited(inner Judge, perSecond float64, burst int) *RateLimited {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}

	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Compare implements Judge. It blocks until the limiter releases a token or
// the context ends.
func (r *RateLimited) Compare(ctx context.Context, c Comparison) (Decision, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Decision{}, err
	}

	return r.inner.Compare(ctx, c)
}
