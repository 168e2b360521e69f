package marketdata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// RetryConfig bounds the exponential backoff applied to a source.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

type retrySource struct {
	next   domain.MarketDataSource
	cfg    RetryConfig
	logger *slog.Logger
}

// WithRetry retries calls that fail with *domain.DataUnavailableError. Any
// other error, and a missing ticker, is returned at once.
func WithRetry(next domain.MarketDataSource, cfg RetryConfig, logger *slog.Logger) domain.MarketDataSource {
	return &retrySource{
		next:   next,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "marketdata_retry"), slog.String("source", next.Name())),
	}
}

func (s *retrySource) Name() string { return s.next.Name() }

func (s *retrySource) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if s.cfg.InitialInterval > 0 {
		eb.InitialInterval = s.cfg.InitialInterval
	}
	if s.cfg.MaxInterval > 0 {
		eb.MaxInterval = s.cfg.MaxInterval
	}
	eb.MaxElapsedTime = s.cfg.MaxElapsed
	return backoff.WithContext(backoff.WithMaxRetries(eb, s.cfg.MaxRetries), ctx)
}

func (s *retrySource) do(ctx context.Context, ticker, op string, fn func() error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDataUnavailable) || errors.Is(err, domain.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("market data call failed, retrying",
			slog.String("ticker", ticker),
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	}
	return backoff.RetryNotify(wrapped, s.policy(ctx), notify)
}

func (s *retrySource) FetchUnderlyingPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.do(ctx, ticker, OpUnderlying, func() error {
		var err error
		price, err = s.next.FetchUnderlyingPrice(ctx, ticker)
		return err
	})
	return price, err
}

func (s *retrySource) FetchOptionChain(ctx context.Context, ticker string, expiry *time.Time) ([]domain.RawRecord, error) {
	var records []domain.RawRecord
	err := s.do(ctx, ticker, OpChain, func() error {
		var err error
		records, err = s.next.FetchOptionChain(ctx, ticker, expiry)
		return err
	})
	return records, err
}
