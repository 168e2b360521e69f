package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// BoxPass looks at every pair of strikes that has both a call and a put and
// flags boxes that cost less than their width by at least minEdge of the width.
type BoxPass struct {
	minEdge decimal.Decimal
}

// NewBoxPass returns a box pass; minEdge is a fraction of the box width.
func NewBoxPass(minEdge decimal.Decimal) *BoxPass {
	return &BoxPass{minEdge: minEdge}
}

func (p *BoxPass) Name() string                 { return "box" }
func (p *BoxPass) Kind() domain.OpportunityKind { return domain.OpportunityBoxSpread }

func (p *BoxPass) Scan(in PassInput) []domain.Opportunity {
	var out []domain.Opportunity
	calls := in.Group.Calls

	for i := 0; i < len(calls)-1; i++ {
		lowerCall := calls[i]
		lowerPut, ok := in.Group.PutAt(lowerCall.Strike)
		if !ok || !lowerCall.Priced() || !lowerPut.Priced() {
			continue
		}
		for j := i + 1; j < len(calls); j++ {
			higherCall := calls[j]
			higherPut, ok := in.Group.PutAt(higherCall.Strike)
			if !ok || !higherCall.Priced() || !higherPut.Priced() {
				continue
			}

			cost := lowerCall.LastPrice.Add(higherPut.LastPrice).
				Sub(higherCall.LastPrice.Add(lowerPut.LastPrice))
			profit := higherCall.Strike.Sub(lowerCall.Strike)
			edge := profit.Sub(cost)
			if !cost.LessThan(profit) || !edge.GreaterThan(profit.Mul(p.minEdge)) {
				continue
			}

			out = append(out, domain.Opportunity{
				Kind:    domain.OpportunityBoxSpread,
				Expiry:  in.Group.Key(),
				Strikes: []decimal.Decimal{lowerCall.Strike, higherCall.Strike},
				Legs: []domain.Leg{
					in.leg(lowerCall, domain.LegSideBuy, 1),
					in.leg(higherCall, domain.LegSideSell, 1),
					in.leg(higherPut, domain.LegSideBuy, 1),
					in.leg(lowerPut, domain.LegSideSell, 1),
				},
				Cost:      cost,
				Profit:    profit,
				NetProfit: edge,
				ROI:       percentOf(edge, cost.Abs()),
			})
		}
	}
	return out
}
