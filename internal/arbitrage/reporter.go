package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// Reporter numbers pass results into a report. It does no arithmetic on
// opportunity values.
type Reporter struct{}

// NewReporter returns a Reporter.
func NewReporter() *Reporter { return &Reporter{} }

// Assemble flattens perExpiry (indexed like groups, each entry in pass order)
// and assigns 1-based sequence numbers in that order.
func (r *Reporter) Assemble(ticker string, underlying decimal.Decimal, groups []ExpiryGroup, perExpiry [][]PassResult) domain.Report {
	rep := domain.Report{
		Ticker:          ticker,
		UnderlyingPrice: underlying,
		Expiries:        make([]string, 0, len(groups)),
		Opportunities:   []domain.Opportunity{},
	}
	for _, g := range groups {
		rep.Expiries = append(rep.Expiries, g.Key())
	}

	seq := 0
	for _, results := range perExpiry {
		for _, res := range results {
			for _, opp := range res.Opportunities {
				seq++
				opp.Sequence = seq
				rep.Opportunities = append(rep.Opportunities, opp)
			}
		}
	}
	rep.Total = seq
	return rep
}
