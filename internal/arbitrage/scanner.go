package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	Registry *Registry
	// Passes selects registry entries by name; empty runs them all.
	Passes          []string
	DuplicatePolicy DuplicatePolicy
	// Workers bounds how many expiries are scanned at once. Values below one
	// mean one.
	Workers int
	Logger  *slog.Logger
}

// Input is one ticker's dataset.
type Input struct {
	Ticker          string
	UnderlyingPrice decimal.Decimal
	Records         []domain.RawRecord
	// Valuation enables discounted parity annotations when set.
	Valuation *Valuation
}

// Result is the numbered report plus the non-fatal problems met on the way.
type Result struct {
	Report        domain.Report
	RecordCount   int
	Malformed     []error
	IgnoredFields []error
	Duplicates    []error
}

// Scanner runs the configured passes over every expiry of an input.
type Scanner struct {
	passes   []Pass
	policy   DuplicatePolicy
	workers  int
	reporter *Reporter
	logger   *slog.Logger
}

// NewScanner builds a scanner. It fails only when cfg selects unknown passes.
func NewScanner(cfg ScannerConfig) (*Scanner, error) {
	reg := cfg.Registry
	if reg == nil {
		reg = DefaultRegistry(
			decimal.RequireFromString("0.05"),
			decimal.RequireFromString("0.01"),
			decimal.RequireFromString("0.01"),
		)
	}
	passes, err := reg.Select(cfg.Passes)
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}
	policy := cfg.DuplicatePolicy
	if policy == "" {
		policy = DuplicateFirstSeen
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		passes:   passes,
		policy:   policy,
		workers:  workers,
		reporter: NewReporter(),
		logger:   logger.With(slog.String("component", "scanner")),
	}, nil
}

// Passes returns the names of the passes this scanner runs, in order.
func (s *Scanner) Passes() []string {
	names := make([]string, len(s.passes))
	for i, p := range s.passes {
		names[i] = p.Name()
	}
	return names
}

// Scan normalizes, groups and scans in. Malformed and duplicate records are
// logged and returned in the result; they never stop the run. The only errors
// are a non-positive underlying price and context cancellation.
func (s *Scanner) Scan(ctx context.Context, in Input) (Result, error) {
	if !in.UnderlyingPrice.IsPositive() {
		return Result{}, fmt.Errorf("scanner: %s: %w", in.Ticker, domain.ErrNoUnderlyingPrice)
	}
	start := time.Now()
	log := s.logger.With(slog.String("ticker", in.Ticker))

	norm := Normalize(in.Records)
	malformed := norm.Malformed
	for _, err := range malformed {
		log.Warn("dropping malformed record", slog.String("error", err.Error()))
	}
	for _, err := range norm.Ignored {
		log.Debug("ignoring unusable field", slog.String("error", err.Error()))
	}
	groups, dups := GroupByExpiry(norm.Contracts, s.policy)
	for _, err := range dups {
		log.Warn("dropping duplicate contract",
			slog.String("policy", string(s.policy)),
			slog.String("error", err.Error()),
		)
	}

	perExpiry := make([][]PassResult, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perExpiry[i] = s.scanGroup(PassInput{
				Group:           groups[i],
				UnderlyingPrice: in.UnderlyingPrice,
				Valuation:       in.Valuation,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("scanner: %s: %w", in.Ticker, err)
	}

	report := s.reporter.Assemble(in.Ticker, in.UnderlyingPrice, groups, perExpiry)
	log.Info("scan complete",
		slog.Int("records", len(in.Records)),
		slog.Int("expiries", len(groups)),
		slog.Int("opportunities", report.Total),
		slog.Int("malformed", len(malformed)),
		slog.Int("ignored_fields", len(norm.Ignored)),
		slog.Int("duplicates", len(dups)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return Result{
		Report:        report,
		RecordCount:   len(in.Records),
		Malformed:     malformed,
		IgnoredFields: norm.Ignored,
		Duplicates:    dups,
	}, nil
}

func (s *Scanner) scanGroup(in PassInput) []PassResult {
	results := make([]PassResult, 0, len(s.passes))
	for _, p := range s.passes {
		results = append(results, PassResult{Pass: p.Name(), Opportunities: p.Scan(in)})
	}
	return results
}
