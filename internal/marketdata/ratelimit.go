package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

type rateLimitedSource struct {
	next    domain.MarketDataSource
	limiter domain.RateLimiter
	key     string
}

// WithRateLimit makes every call wait for a slot under key. Workers in other
// processes sharing the limiter share the budget.
func WithRateLimit(next domain.MarketDataSource, limiter domain.RateLimiter, key string) domain.MarketDataSource {
	return &rateLimitedSource{next: next, limiter: limiter, key: key}
}

func (s *rateLimitedSource) Name() string { return s.next.Name() }

func (s *rateLimitedSource) wait(ctx context.Context, ticker, op string) error {
	if err := s.limiter.Wait(ctx, s.key); err != nil {
		return unavailable(ticker, op, fmt.Errorf("%w: %w", domain.ErrRateLimited, err))
	}
	return nil
}

func (s *rateLimitedSource) FetchUnderlyingPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	if err := s.wait(ctx, ticker, OpUnderlying); err != nil {
		return decimal.Zero, err
	}
	return s.next.FetchUnderlyingPrice(ctx, ticker)
}

func (s *rateLimitedSource) FetchOptionChain(ctx context.Context, ticker string, expiry *time.Time) ([]domain.RawRecord, error) {
	if err := s.wait(ctx, ticker, OpChain); err != nil {
		return nil, err
	}
	return s.next.FetchOptionChain(ctx, ticker, expiry)
}
