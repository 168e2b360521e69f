package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// ButterflyPass checks call butterflies over adjacent strikes only and flags
// the ones that can be entered for a credit above minEdge of the wing width.
type ButterflyPass struct {
	minEdge decimal.Decimal
}

// NewButterflyPass returns a butterfly pass; minEdge is a fraction of the
// distance between the outer strikes.
func NewButterflyPass(minEdge decimal.Decimal) *ButterflyPass {
	return &ButterflyPass{minEdge: minEdge}
}

func (p *ButterflyPass) Name() string                 { return "butterfly" }
func (p *ButterflyPass) Kind() domain.OpportunityKind { return domain.OpportunityButterflySpread }

var two = decimal.NewFromInt(2)

func (p *ButterflyPass) Scan(in PassInput) []domain.Opportunity {
	var out []domain.Opportunity
	calls := in.Group.Calls

	for i := 0; i+2 < len(calls); i++ {
		low, mid, high := calls[i], calls[i+1], calls[i+2]
		if !low.Priced() || !mid.Priced() || !high.Priced() {
			continue
		}

		cost := low.LastPrice.Sub(two.Mul(mid.LastPrice)).Add(high.LastPrice)
		width := high.Strike.Sub(low.Strike)
		if !cost.IsNegative() || !cost.Abs().GreaterThan(width.Mul(p.minEdge)) {
			continue
		}

		maxProfit := cost.Abs()
		out = append(out, domain.Opportunity{
			Kind:    domain.OpportunityButterflySpread,
			Expiry:  in.Group.Key(),
			Strikes: []decimal.Decimal{low.Strike, mid.Strike, high.Strike},
			Legs: []domain.Leg{
				in.leg(low, domain.LegSideBuy, 1),
				in.leg(mid, domain.LegSideSell, 2),
				in.leg(high, domain.LegSideBuy, 1),
			},
			Cost:      cost,
			Profit:    maxProfit,
			NetProfit: maxProfit,
			ROI:       percentOf(maxProfit, low.LastPrice.Add(high.LastPrice)),
		})
	}
	return out
}
