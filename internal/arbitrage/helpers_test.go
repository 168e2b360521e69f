package arbitrage

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

func rec(expiry, kind string, strike, price any) domain.RawRecord {
	return domain.RawRecord{
		"strike":      strike,
		"expiry_date": expiry,
		"type":        kind,
		"lastPrice":   price,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func contract(expiry string, kind domain.OptionKind, strike, price string) domain.OptionContract {
	exp, err := time.Parse(domain.ExpiryLayout, expiry)
	if err != nil {
		panic(err)
	}
	return domain.OptionContract{
		Strike:    dec(strike),
		Expiry:    exp,
		Kind:      kind,
		LastPrice: dec(price),
	}
}

func call(expiry, strike, price string) domain.OptionContract {
	return contract(expiry, domain.OptionKindCall, strike, price)
}

func put(expiry, strike, price string) domain.OptionContract {
	return contract(expiry, domain.OptionKindPut, strike, price)
}

// group builds a single expiry group through the real grouper.
func group(t *testing.T, contracts ...domain.OptionContract) ExpiryGroup {
	t.Helper()
	groups, errs := GroupByExpiry(contracts, DuplicateFirstSeen)
	require.Empty(t, errs)
	require.Len(t, groups, 1)
	return groups[0]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScanner(t *testing.T, cfg ScannerConfig) *Scanner {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	s, err := NewScanner(cfg)
	require.NoError(t, err)
	return s
}
