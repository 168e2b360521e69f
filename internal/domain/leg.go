package domain

import "github.com/shopspring/decimal"

// LegSide is the direction of one leg of an opportunity.
type LegSide string

const (
	LegSideBuy  LegSide = "buy"
	LegSideSell LegSide = "sell"
)

// Leg is one option position needed to enter an opportunity.
type Leg struct {
	Kind     OptionKind      `json:"kind"`
	Strike   decimal.Decimal `json:"strike"`
	Side     LegSide         `json:"side"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	// TheoreticalPrice is the Black-Scholes value at the contract's implied
	// volatility. Set only when valuation is enabled and the quote has one.
	TheoreticalPrice decimal.NullDecimal `json:"theoretical_price"`
}
