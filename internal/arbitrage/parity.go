package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
	"github.com/alanyoungcy/optionarb/internal/pricing"
)

// ParityPass flags strikes where C - P strays from S - K by more than a
// fraction of the underlying price. The strike is not discounted.
type ParityPass struct {
	tolerance decimal.Decimal
}

// NewParityPass returns a parity pass with the given tolerance as a fraction
// of the underlying price (0.05 = 5%).
func NewParityPass(tolerance decimal.Decimal) *ParityPass {
	return &ParityPass{tolerance: tolerance}
}

func (p *ParityPass) Name() string                 { return "parity" }
func (p *ParityPass) Kind() domain.OpportunityKind { return domain.OpportunityParityViolation }

func (p *ParityPass) Scan(in PassInput) []domain.Opportunity {
	var out []domain.Opportunity
	threshold := in.UnderlyingPrice.Mul(p.tolerance)

	for _, call := range in.Group.Calls {
		put, ok := in.Group.PutAt(call.Strike)
		if !ok || !call.Priced() || !put.Priced() {
			continue
		}
		theoretical := in.UnderlyingPrice.Sub(call.Strike)
		actual := call.LastPrice.Sub(put.LastPrice)
		gap := theoretical.Sub(actual).Abs()
		if !gap.GreaterThan(threshold) {
			continue
		}

		// A call rich against the put is sold; a cheap one is bought.
		callSide, putSide := domain.LegSideBuy, domain.LegSideSell
		if actual.GreaterThan(theoretical) {
			callSide, putSide = domain.LegSideSell, domain.LegSideBuy
		}

		opp := domain.Opportunity{
			Kind:            domain.OpportunityParityViolation,
			Expiry:          in.Group.Key(),
			Strikes:         []decimal.Decimal{call.Strike},
			Legs:            []domain.Leg{in.leg(call, callSide, 1), in.leg(put, putSide, 1)},
			Cost:            actual,
			Profit:          gap,
			NetProfit:       gap,
			TheoreticalDiff: theoretical,
			ActualDiff:      actual,
		}
		if v := in.Valuation; v != nil {
			years := pricing.YearFraction(v.AsOf, in.Group.Expiry)
			tc := pricing.DiscountedParityCall(put.LastPrice, in.UnderlyingPrice, call.Strike, v.Rate, years)
			opp.TheoreticalCall = decimal.NewNullDecimal(tc.Round(roiPlaces))
		}
		out = append(out, opp)
	}
	return out
}
