package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// ScanRunStore implements domain.ScanRunStore using PostgreSQL. The full
// report is kept as JSONB next to the summary columns.
type ScanRunStore struct {
	pool *pgxpool.Pool
}

// NewScanRunStore creates a new ScanRunStore backed by the given connection pool.
func NewScanRunStore(pool *pgxpool.Pool) *ScanRunStore {
	return &ScanRunStore{pool: pool}
}

const scanRunSelectCols = `id, ticker, underlying_price::text,
	record_count, malformed_count, duplicate_count, expiry_count, total,
	started_at, completed_at, report`

// Insert stores a completed run.
func (s *ScanRunStore) Insert(ctx context.Context, run domain.ScanRun) error {
	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("postgres: marshal report %s: %w", run.ID, err)
	}

	const query = `
		INSERT INTO scan_runs (
			id, ticker, underlying_price,
			record_count, malformed_count, duplicate_count, expiry_count, total,
			started_at, completed_at, report
		) VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = s.pool.Exec(ctx, query,
		run.ID, strings.ToUpper(run.Ticker), run.UnderlyingPrice.String(),
		run.RecordCount, run.MalformedCount, run.DuplicateCount, run.ExpiryCount, run.Total,
		run.StartedAt, run.CompletedAt, report,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert scan run %s: %w", run.ID, err)
	}
	return nil
}

// GetByID returns the run with the given ID, or domain.ErrNotFound.
func (s *ScanRunStore) GetByID(ctx context.Context, id string) (domain.ScanRun, error) {
	query := `SELECT ` + scanRunSelectCols + ` FROM scan_runs WHERE id = $1`
	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ScanRun{}, domain.ErrNotFound
		}
		return domain.ScanRun{}, fmt.Errorf("postgres: get scan run %s: %w", id, err)
	}
	return run, nil
}

// ListRecent returns runs newest first.
func (s *ScanRunStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.ScanRun, error) {
	query, args := listQuery(`SELECT `+scanRunSelectCols+` FROM scan_runs WHERE 1=1`, nil, opts, "started_at", "ticker")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list scan runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.ScanRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list scan runs rows: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (domain.ScanRun, error) {
	var (
		run        domain.ScanRun
		underlying string
		report     []byte
	)
	err := row.Scan(
		&run.ID, &run.Ticker, &underlying,
		&run.RecordCount, &run.MalformedCount, &run.DuplicateCount, &run.ExpiryCount, &run.Total,
		&run.StartedAt, &run.CompletedAt, &report,
	)
	if err != nil {
		return domain.ScanRun{}, err
	}
	if run.UnderlyingPrice, err = parseNumeric("underlying_price", underlying); err != nil {
		return domain.ScanRun{}, err
	}
	if err := json.Unmarshal(report, &run.Report); err != nil {
		return domain.ScanRun{}, fmt.Errorf("postgres: unmarshal report %s: %w", run.ID, err)
	}
	return run, nil
}

// Compile-time interface check.
var _ domain.ScanRunStore = (*ScanRunStore)(nil)
