// Package marketdata provides domain.MarketDataSource implementations and the
// decorators that make them safe to call from a scheduler: retry with
// backoff, Redis-backed caching and rate limiting.
package marketdata

import (
	"time"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// Operation names carried by *domain.DataUnavailableError.
const (
	OpUnderlying = "fetch underlying price"
	OpChain      = "fetch option chain"
)

func unavailable(ticker, op string, err error) error {
	return &domain.DataUnavailableError{Ticker: ticker, Op: op, Err: err}
}

var expiryKeys = []string{"expiry", "expiry_date", "expiration"}

// filterExpiry keeps the records whose expiry matches. Records with an
// unreadable expiry are kept so the normalizer reports them.
func filterExpiry(records []domain.RawRecord, expiry *time.Time) []domain.RawRecord {
	if expiry == nil {
		return records
	}
	want := expiry.Format(domain.ExpiryLayout)
	out := make([]domain.RawRecord, 0, len(records))
	for _, r := range records {
		if got, ok := recordExpiry(r); ok && got != want {
			continue
		}
		out = append(out, r)
	}
	return out
}

func recordExpiry(r domain.RawRecord) (string, bool) {
	for _, k := range expiryKeys {
		switch v := r[k].(type) {
		case time.Time:
			return v.Format(domain.ExpiryLayout), true
		case string:
			if len(v) >= len(domain.ExpiryLayout) {
				return v[:len(domain.ExpiryLayout)], true
			}
		}
	}
	return "", false
}
