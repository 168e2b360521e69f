package marketdata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

type cachedSource struct {
	next   domain.MarketDataSource
	cache  domain.ChainCache
	ttl    time.Duration
	logger *slog.Logger
}

// WithCache serves repeated fetches from cache for ttl. Cache failures are
// logged and fall through to the wrapped source.
func WithCache(next domain.MarketDataSource, cache domain.ChainCache, ttl time.Duration, logger *slog.Logger) domain.MarketDataSource {
	return &cachedSource{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "marketdata_cache"), slog.String("source", next.Name())),
	}
}

func (s *cachedSource) Name() string { return s.next.Name() }

func expiryKey(expiry *time.Time) string {
	if expiry == nil {
		return "all"
	}
	return expiry.Format(domain.ExpiryLayout)
}

func (s *cachedSource) FetchUnderlyingPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	price, err := s.cache.GetUnderlying(ctx, ticker)
	if err == nil {
		return price, nil
	}
	s.miss(ticker, err)

	price, err = s.next.FetchUnderlyingPrice(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.cache.SetUnderlying(ctx, ticker, price, s.ttl); err != nil {
		s.logger.Warn("cache underlying failed", slog.String("ticker", ticker), slog.String("error", err.Error()))
	}
	return price, nil
}

func (s *cachedSource) FetchOptionChain(ctx context.Context, ticker string, expiry *time.Time) ([]domain.RawRecord, error) {
	key := expiryKey(expiry)
	records, err := s.cache.GetChain(ctx, ticker, key)
	if err == nil {
		return records, nil
	}
	s.miss(ticker, err)

	records, err = s.next.FetchOptionChain(ctx, ticker, expiry)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetChain(ctx, ticker, key, records, s.ttl); err != nil {
		s.logger.Warn("cache chain failed", slog.String("ticker", ticker), slog.String("error", err.Error()))
	}
	return records, nil
}

func (s *cachedSource) miss(ticker string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	s.logger.Warn("cache read failed", slog.String("ticker", ticker), slog.String("error", err.Error()))
}
