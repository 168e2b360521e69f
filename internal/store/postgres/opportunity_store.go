package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunitySelectCols = `run_id, ticker, detected_at, sequence, kind,
	to_char(expiry, 'YYYY-MM-DD'), strikes, legs,
	cost::text, profit::text, net_profit::text, roi::text,
	theoretical_diff::text, actual_diff::text, theoretical_call::text`

// InsertBatch stores every opportunity of a run in one batch.
func (s *OpportunityStore) InsertBatch(ctx context.Context, runID, ticker string, detectedAt time.Time, opps []domain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	const query = `
		INSERT INTO opportunities (
			run_id, ticker, sequence, kind, expiry, strikes, legs,
			cost, profit, net_profit, roi,
			theoretical_diff, actual_diff, theoretical_call, detected_at
		) VALUES (
			$1, $2, $3, $4, $5::date, $6, $7,
			$8::numeric, $9::numeric, $10::numeric, $11::numeric,
			$12::numeric, $13::numeric, $14::numeric, $15
		)
		ON CONFLICT (run_id, sequence) DO NOTHING`

	batch := &pgx.Batch{}
	for _, o := range opps {
		strikes, err := json.Marshal(o.Strikes)
		if err != nil {
			return fmt.Errorf("postgres: marshal strikes #%d: %w", o.Sequence, err)
		}
		legs, err := json.Marshal(o.Legs)
		if err != nil {
			return fmt.Errorf("postgres: marshal legs #%d: %w", o.Sequence, err)
		}
		batch.Queue(query,
			runID, strings.ToUpper(ticker), o.Sequence, string(o.Kind), o.Expiry, strikes, legs,
			o.Cost.String(), o.Profit.String(), o.NetProfit.String(), nullNumeric(o.ROI),
			o.TheoreticalDiff.String(), o.ActualDiff.String(), nullNumeric(o.TheoreticalCall), detectedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range opps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert opportunities for run %s: %w", runID, err)
		}
	}
	return nil
}

// ListByRun returns a run's opportunities in sequence order.
func (s *OpportunityStore) ListByRun(ctx context.Context, runID string) ([]domain.StoredOpportunity, error) {
	query := `SELECT ` + opportunitySelectCols + ` FROM opportunities WHERE run_id = $1 ORDER BY sequence`
	return s.query(ctx, query, runID)
}

// ListRecent returns opportunities newest first, filtered by opts.
func (s *OpportunityStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.StoredOpportunity, error) {
	query := `SELECT ` + opportunitySelectCols + ` FROM opportunities WHERE 1=1`
	var args []any
	if opts.Kind != "" {
		query += ` AND kind = $1`
		args = append(args, string(opts.Kind))
	}
	query, args = listQuery(query, args, opts, "detected_at", "ticker")
	return s.query(ctx, query, args...)
}

func (s *OpportunityStore) query(ctx context.Context, query string, args ...any) ([]domain.StoredOpportunity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.StoredOpportunity
	for rows.Next() {
		so, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, so)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list opportunities rows: %w", err)
	}
	return out, nil
}

func scanOpportunity(row pgx.Row) (domain.StoredOpportunity, error) {
	var (
		so                                 domain.StoredOpportunity
		kind                               string
		strikes, legs                      []byte
		cost, profit, netProfit, theo, act string
		roi, theoCall                      *string
	)
	err := row.Scan(
		&so.RunID, &so.Ticker, &so.DetectedAt, &so.Opp.Sequence, &kind,
		&so.Opp.Expiry, &strikes, &legs,
		&cost, &profit, &netProfit, &roi,
		&theo, &act, &theoCall,
	)
	if err != nil {
		return so, fmt.Errorf("postgres: scan opportunity: %w", err)
	}
	so.Opp.Kind = domain.OpportunityKind(kind)

	if err := json.Unmarshal(strikes, &so.Opp.Strikes); err != nil {
		return so, fmt.Errorf("postgres: unmarshal strikes: %w", err)
	}
	if err := json.Unmarshal(legs, &so.Opp.Legs); err != nil {
		return so, fmt.Errorf("postgres: unmarshal legs: %w", err)
	}

	o := &so.Opp
	for _, f := range []struct {
		col string
		src string
		dst *decimal.Decimal
	}{
		{"cost", cost, &o.Cost},
		{"profit", profit, &o.Profit},
		{"net_profit", netProfit, &o.NetProfit},
		{"theoretical_diff", theo, &o.TheoreticalDiff},
		{"actual_diff", act, &o.ActualDiff},
	} {
		if *f.dst, err = parseNumeric(f.col, f.src); err != nil {
			return so, err
		}
	}
	if o.ROI, err = parseNullNumeric("roi", roi); err != nil {
		return so, err
	}
	if o.TheoreticalCall, err = parseNullNumeric("theoretical_call", theoCall); err != nil {
		return so, err
	}
	return so, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
