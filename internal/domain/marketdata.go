package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MarketDataSource is the acquisition capability the scanner is fed from.
// Implementations fail with *DataUnavailableError.
type MarketDataSource interface {
	Name() string
	FetchUnderlyingPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
	// FetchOptionChain returns raw records for one expiry, or for every listed
	// expiry when expiry is nil.
	FetchOptionChain(ctx context.Context, ticker string, expiry *time.Time) ([]RawRecord, error)
}
