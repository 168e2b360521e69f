package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpiryLayout is the canonical calendar-date format used for expiry keys.
const ExpiryLayout = "2006-01-02"

// OptionKind discriminates calls from puts.
type OptionKind string

const (
	OptionKindCall OptionKind = "call"
	OptionKindPut  OptionKind = "put"
)

// OptionContract is one normalized option quote. Strike and prices are
// decimals so same-strike matching is exact.
type OptionContract struct {
	Strike decimal.Decimal
	Expiry time.Time // UTC midnight
	Kind   OptionKind
	// LastPrice of zero means no recent trade; such contracts never take part
	// in an opportunity.
	LastPrice decimal.Decimal
	// ImpliedVolatility is a fraction (0.25 = 25%). Only auxiliary pricing
	// reads it.
	ImpliedVolatility decimal.NullDecimal
}

// ExpiryKey returns the expiry formatted with ExpiryLayout.
func (c OptionContract) ExpiryKey() string {
	return c.Expiry.Format(ExpiryLayout)
}

// Priced reports whether the contract has a usable market quote.
func (c OptionContract) Priced() bool {
	return c.LastPrice.IsPositive()
}

// RawRecord is a loosely typed option record as handed over by a market data
// source, keyed by field name.
type RawRecord map[string]any

// Chain is everything a source returns for one ticker.
type Chain struct {
	Ticker          string
	UnderlyingPrice decimal.Decimal
	Records         []RawRecord
	FetchedAt       time.Time
}
