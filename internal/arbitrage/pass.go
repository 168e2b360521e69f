// Package arbitrage detects option mispricings within an underlying's chain.
// Records are normalized, grouped by expiry and run through an ordered set of
// passes; the reporter numbers what they find. Nothing here does I/O.
package arbitrage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
	"github.com/alanyoungcy/optionarb/internal/pricing"
)

// Pass is one detection rule run against a single expiry group.
type Pass interface {
	Name() string
	Kind() domain.OpportunityKind
	// Scan returns the opportunities of in.Group in discovery order. Sequence
	// is left zero for the reporter.
	Scan(in PassInput) []domain.Opportunity
}

// PassInput is what a pass sees for one expiry.
type PassInput struct {
	Group           ExpiryGroup
	UnderlyingPrice decimal.Decimal
	// Valuation is optional; passes use it only for annotations.
	Valuation *Valuation
}

// Valuation carries the inputs for the pricing annotations: the discounted
// parity call and each leg's model price.
type Valuation struct {
	Rate float64
	AsOf time.Time
}

// PassResult is the output of one pass over one expiry.
type PassResult struct {
	Pass          string
	Opportunities []domain.Opportunity
}

const roiPlaces = 4

var hundred = decimal.NewFromInt(100)

// percentOf returns num/den*100, invalid when den is zero.
func percentOf(num, den decimal.Decimal) decimal.NullDecimal {
	if den.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(num.Div(den).Mul(hundred).Round(roiPlaces))
}

// leg builds one position of an opportunity. With a valuation, contracts that
// carry an implied volatility also get a Black-Scholes price.
func (in PassInput) leg(c domain.OptionContract, side domain.LegSide, qty int) domain.Leg {
	l := domain.Leg{
		Kind:     c.Kind,
		Strike:   c.Strike,
		Side:     side,
		Quantity: qty,
		Price:    c.LastPrice,
	}
	if v := in.Valuation; v != nil {
		price, ok, err := pricing.ContractPrice(c, in.UnderlyingPrice, v.Rate, v.AsOf)
		if err == nil && ok {
			l.TheoreticalPrice = decimal.NewNullDecimal(decimal.NewFromFloat(price).Round(roiPlaces))
		}
	}
	return l
}
