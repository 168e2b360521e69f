package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityKind classifies a detected mispricing.
type OpportunityKind string

const (
	OpportunityParityViolation OpportunityKind = "parity_violation"
	OpportunityBoxSpread       OpportunityKind = "box_spread"
	OpportunityButterflySpread OpportunityKind = "butterfly_spread"
)

// Label returns the human readable name used in reports.
func (k OpportunityKind) Label() string {
	switch k {
	case OpportunityParityViolation:
		return "Put-Call Parity Violation"
	case OpportunityBoxSpread:
		return "Box Spread"
	case OpportunityButterflySpread:
		return "Butterfly Spread"
	default:
		return string(k)
	}
}

// Opportunity is one detected arbitrage. It is the stable record consumed by
// reporters, stores and the HTTP API; it is never mutated after the reporter
// assigns Sequence.
type Opportunity struct {
	Sequence int             `json:"sequence"`
	Kind     OpportunityKind `json:"kind"`
	Expiry   string          `json:"expiry"` // ExpiryLayout
	// Strikes in ascending order: one for parity, two for box, three for
	// butterfly.
	Strikes []decimal.Decimal `json:"strikes"`
	Legs    []Leg             `json:"legs"`

	// Cost is the net debit (negative means credit) to enter the position.
	Cost decimal.Decimal `json:"cost"`
	// Profit is the guaranteed profit for a box, the maximum profit for a
	// butterfly and the estimated mispricing for a parity violation.
	Profit decimal.Decimal `json:"profit"`
	// NetProfit is Profit - Cost for a box, Profit otherwise.
	NetProfit decimal.Decimal `json:"net_profit"`
	// ROI is a percentage, invalid when its denominator is zero.
	ROI decimal.NullDecimal `json:"roi"`

	// Parity diagnostics; zero for other kinds.
	TheoreticalDiff decimal.Decimal `json:"theoretical_diff"`
	ActualDiff      decimal.Decimal `json:"actual_diff"`
	// TheoreticalCall is the discounted parity call price P + S - K*e^(-rT),
	// set only when a risk-free rate and valuation date were supplied.
	TheoreticalCall decimal.NullDecimal `json:"theoretical_call"`
}

// Report is the ordered output of one analysis run for a ticker.
type Report struct {
	Ticker          string          `json:"ticker"`
	UnderlyingPrice decimal.Decimal `json:"underlying_price"`
	Expiries        []string        `json:"expiries"`
	Opportunities   []Opportunity   `json:"opportunities"`
	Total           int             `json:"total"`
}

// CountByKind tallies the report's opportunities per kind.
func (r Report) CountByKind() map[OpportunityKind]int {
	out := make(map[OpportunityKind]int, 3)
	for _, o := range r.Opportunities {
		out[o.Kind]++
	}
	return out
}

// ScanRun is a persisted analysis run.
type ScanRun struct {
	ID              string          `json:"id"`
	Ticker          string          `json:"ticker"`
	UnderlyingPrice decimal.Decimal `json:"underlying_price"`
	RecordCount     int             `json:"record_count"`
	MalformedCount  int             `json:"malformed_count"`
	DuplicateCount  int             `json:"duplicate_count"`
	ExpiryCount     int             `json:"expiry_count"`
	Total           int             `json:"total"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     time.Time       `json:"completed_at"`
	Report          Report          `json:"report"`
}

// StoredOpportunity is an opportunity joined with the run that produced it.
type StoredOpportunity struct {
	RunID      string      `json:"run_id"`
	Ticker     string      `json:"ticker"`
	DetectedAt time.Time   `json:"detected_at"`
	Opp        Opportunity `json:"opportunity"`
}
