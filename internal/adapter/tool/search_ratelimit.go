package tool

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"finnguide/internal/domain"
)

// RateLimitedBackend throttles outbound searches with a token bucket so a
// busy agent does not get the service's address blocked by the engine.
type RateLimitedBackend struct {
	inner   SearchBackend
	limiter *rate.Limiter
}

// NewRateLimitedBackend wraps inner. requestsPerMinute <= 0 returns inner
// unchanged.
func NewRateLimitedBackend(inner SearchBackend, requestsPerMinute, burst int) SearchBackend {
	if requestsPerMinute <= 0 {
		return inner
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedBackend{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
	}
}

func (b *RateLimitedBackend) Name() string { return b.inner.Name() }

// Search waits for a token, then delegates. A wait that cannot finish
// before ctx's deadline is reported as a timeout.
func (b *RateLimitedBackend) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, domain.NewDomainError(b.inner.Name()+".Search", domain.ErrTimeout, "waiting for search rate limit: "+err.Error())
	}
	return b.inner.Search(ctx, query, count)
}
