package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/optionarb/internal/arbitrage"
	"github.com/alanyoungcy/optionarb/internal/domain"
	"github.com/alanyoungcy/optionarb/internal/notify"
)

const (
	defaultLockTTL     = 2 * time.Minute
	defaultListLimit   = 50
	maxListLimit       = 200
	defaultConcurrency = 4
)

// ScanConfig holds the run-level settings of the scan service.
type ScanConfig struct {
	// Discount enables discounted parity annotations at RiskFreeRate.
	Discount     bool
	RiskFreeRate float64
	// LockTTL bounds how long one ticker's run may hold its lock.
	LockTTL time.Duration
	// Concurrency bounds ScanAll's parallel tickers.
	Concurrency int
}

// ScanDeps are the collaborators of a ScanService. Source and Scanner are
// required; every other field may be nil to skip that step.
type ScanDeps struct {
	Source   domain.MarketDataSource
	Scanner  *arbitrage.Scanner
	Runs     domain.ScanRunStore
	Opps     domain.OpportunityStore
	Bus      domain.SignalBus
	Locks    domain.LockManager
	Audit    domain.AuditStore
	Notifier *notify.Notifier
	Archiver domain.ReportArchiver
}

// ScanOutcome is one ticker's result from ScanAll.
type ScanOutcome struct {
	Ticker string
	Run    domain.ScanRun
	Err    error
}

// ScanService performs analysis runs: for one ticker it fetches the chain,
// scans it, then records, publishes, notifies and archives the result.
type ScanService struct {
	deps    ScanDeps
	cfg     ScanConfig
	history *runHistory
	now     func() time.Time
	logger  *slog.Logger
}

// NewScanService creates a ScanService. When deps.Runs is nil finished runs
// are kept in a bounded in-memory history instead.
func NewScanService(deps ScanDeps, cfg ScanConfig, logger *slog.Logger) *ScanService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultConcurrency
	}
	s := &ScanService{
		deps:   deps,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "scan_service")),
	}
	if deps.Runs == nil {
		s.history = newRunHistory(maxListLimit)
	}
	return s
}

// Scan runs one analysis for ticker. Failures to fetch or scan are reported
// on the bus, the audit log and the notifier before being returned. Once a
// run is persisted, publish, audit, notify and archive problems are only
// logged.
func (s *ScanService) Scan(ctx context.Context, ticker string) (domain.ScanRun, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return domain.ScanRun{}, fmt.Errorf("scan_service: %w", domain.ErrInvalidTicker)
	}

	if s.deps.Locks != nil {
		unlock, err := s.deps.Locks.Acquire(ctx, "scan:"+ticker, s.cfg.LockTTL)
		if err != nil {
			return domain.ScanRun{}, fmt.Errorf("scan_service: lock %s: %w", ticker, err)
		}
		defer unlock()
	}

	started := s.now()
	run, err := s.analyze(ctx, ticker, started)
	if err != nil {
		s.fail(ctx, ticker, started, err)
		return domain.ScanRun{}, err
	}
	if err := s.record(ctx, run); err != nil {
		s.fail(ctx, ticker, started, err)
		return domain.ScanRun{}, err
	}
	s.announce(ctx, run)
	return run, nil
}

func (s *ScanService) analyze(ctx context.Context, ticker string, started time.Time) (domain.ScanRun, error) {
	price, err := s.deps.Source.FetchUnderlyingPrice(ctx, ticker)
	if err != nil {
		return domain.ScanRun{}, fmt.Errorf("scan_service: %s underlying: %w", ticker, err)
	}
	records, err := s.deps.Source.FetchOptionChain(ctx, ticker, nil)
	if err != nil {
		return domain.ScanRun{}, fmt.Errorf("scan_service: %s chain: %w", ticker, err)
	}

	in := arbitrage.Input{Ticker: ticker, UnderlyingPrice: price, Records: records}
	if s.cfg.Discount {
		in.Valuation = &arbitrage.Valuation{Rate: s.cfg.RiskFreeRate, AsOf: started}
	}
	res, err := s.deps.Scanner.Scan(ctx, in)
	if err != nil {
		return domain.ScanRun{}, fmt.Errorf("scan_service: %w", err)
	}

	return domain.ScanRun{
		ID:              uuid.NewString(),
		Ticker:          ticker,
		UnderlyingPrice: price,
		RecordCount:     res.RecordCount,
		MalformedCount:  len(res.Malformed),
		DuplicateCount:  len(res.Duplicates),
		ExpiryCount:     len(res.Report.Expiries),
		Total:           res.Report.Total,
		StartedAt:       started,
		CompletedAt:     s.now(),
		Report:          res.Report,
	}, nil
}

// record persists the run. It is the only post-scan step whose failure fails
// the run.
func (s *ScanService) record(ctx context.Context, run domain.ScanRun) error {
	if s.deps.Runs == nil {
		s.history.add(run)
		return nil
	}
	if err := s.deps.Runs.Insert(ctx, run); err != nil {
		return fmt.Errorf("scan_service: insert run: %w", err)
	}
	if s.deps.Opps != nil && len(run.Report.Opportunities) > 0 {
		if err := s.deps.Opps.InsertBatch(ctx, run.ID, run.Ticker, run.CompletedAt, run.Report.Opportunities); err != nil {
			return fmt.Errorf("scan_service: insert opportunities: %w", err)
		}
	}
	return nil
}

func (s *ScanService) announce(ctx context.Context, run domain.ScanRun) {
	log := s.logger.With(slog.String("run_id", run.ID), slog.String("ticker", run.Ticker))
	summary := domain.ScanSummary{
		RunID:          run.ID,
		Ticker:         run.Ticker,
		Total:          run.Total,
		ByKind:         run.Report.CountByKind(),
		MalformedCount: run.MalformedCount,
		DuplicateCount: run.DuplicateCount,
		Duration:       run.CompletedAt.Sub(run.StartedAt),
	}

	for _, o := range run.Report.Opportunities {
		sig := domain.OpportunitySignal{RunID: run.ID, Ticker: run.Ticker, Opportunity: o, DetectedAt: run.CompletedAt}
		s.publish(ctx, log, domain.ChannelOpportunities, sig)
		if s.deps.Notifier != nil {
			if err := s.deps.Notifier.OpportunityFound(ctx, sig); err != nil {
				log.WarnContext(ctx, "notify opportunity failed", slog.String("error", err.Error()))
			}
		}
	}
	s.publish(ctx, log, domain.ChannelScans, summary)
	s.appendStream(ctx, log, summary)

	s.auditLog(ctx, log, string(domain.EventScanCompleted), map[string]any{
		"run_id":        run.ID,
		"ticker":        run.Ticker,
		"underlying":    run.UnderlyingPrice.String(),
		"records":       run.RecordCount,
		"malformed":     run.MalformedCount,
		"duplicates":    run.DuplicateCount,
		"opportunities": run.Total,
	})
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.ScanCompleted(ctx, summary); err != nil {
			log.WarnContext(ctx, "notify scan failed", slog.String("error", err.Error()))
		}
	}
	if s.deps.Archiver != nil {
		paths, err := s.deps.Archiver.ArchiveRun(ctx, run)
		if err != nil {
			log.WarnContext(ctx, "archive run failed", slog.String("error", err.Error()))
		} else {
			log.DebugContext(ctx, "run archived", slog.Any("paths", paths))
		}
	}

	log.InfoContext(ctx, "run recorded",
		slog.Int("opportunities", run.Total),
		slog.Duration("elapsed", summary.Duration),
	)
}

func (s *ScanService) fail(ctx context.Context, ticker string, started time.Time, cause error) {
	log := s.logger.With(slog.String("ticker", ticker))
	log.ErrorContext(ctx, "scan failed", slog.String("error", cause.Error()))
	if ctx.Err() != nil {
		return
	}

	summary := domain.ScanSummary{Ticker: ticker, Duration: s.now().Sub(started), Error: cause.Error()}
	s.publish(ctx, log, domain.ChannelScans, summary)
	s.appendStream(ctx, log, summary)
	s.auditLog(ctx, log, string(domain.EventScanFailed), map[string]any{
		"ticker": ticker,
		"error":  cause.Error(),
	})
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.ScanFailed(ctx, ticker, cause); err != nil {
			log.WarnContext(ctx, "notify failure failed", slog.String("error", err.Error()))
		}
	}
}

func (s *ScanService) publish(ctx context.Context, log *slog.Logger, channel string, v any) {
	if s.deps.Bus == nil {
		return
	}
	if err := s.deps.Bus.PublishJSON(ctx, channel, v); err != nil {
		log.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ScanService) appendStream(ctx context.Context, log *slog.Logger, summary domain.ScanSummary) {
	if s.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.deps.Bus.StreamAppend(ctx, domain.StreamScanRuns, payload); err != nil {
		log.WarnContext(ctx, "stream append failed", slog.String("error", err.Error()))
	}
}

func (s *ScanService) auditLog(ctx context.Context, log *slog.Logger, event string, detail map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Log(ctx, event, detail); err != nil {
		log.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}
}

// ScanAll scans tickers concurrently. Outcomes are in input order; a failed
// ticker does not stop the others. The error is non-nil only when ctx ends.
func (s *ScanService) ScanAll(ctx context.Context, tickers []string) ([]ScanOutcome, error) {
	out := make([]ScanOutcome, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, t := range tickers {
		g.Go(func() error {
			run, err := s.Scan(gctx, t)
			out[i] = ScanOutcome{Ticker: strings.ToUpper(strings.TrimSpace(t)), Run: run, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// ListRecentRuns returns runs newest first.
func (s *ScanService) ListRecentRuns(ctx context.Context, opts domain.ListOpts) ([]domain.ScanRun, error) {
	opts.Limit = clampLimit(opts.Limit)
	if s.deps.Runs == nil {
		return s.history.list(opts), nil
	}
	runs, err := s.deps.Runs.ListRecent(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("scan_service: list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its report, or domain.ErrNotFound.
func (s *ScanService) GetRun(ctx context.Context, id string) (domain.ScanRun, error) {
	if s.deps.Runs == nil {
		if run, ok := s.history.get(id); ok {
			return run, nil
		}
		return domain.ScanRun{}, fmt.Errorf("scan_service: run %q: %w", id, domain.ErrNotFound)
	}
	run, err := s.deps.Runs.GetByID(ctx, id)
	if err != nil {
		return domain.ScanRun{}, fmt.Errorf("scan_service: run %q: %w", id, err)
	}
	return run, nil
}

// ListRecentOpportunities returns opportunities newest first, optionally
// filtered by ticker and kind.
func (s *ScanService) ListRecentOpportunities(ctx context.Context, opts domain.ListOpts) ([]domain.StoredOpportunity, error) {
	opts.Limit = clampLimit(opts.Limit)
	if s.deps.Opps == nil {
		var runs []domain.ScanRun
		if s.history != nil {
			runs = s.history.list(domain.ListOpts{Ticker: opts.Ticker, Since: opts.Since, Until: opts.Until})
		}
		return flatten(runs, opts), nil
	}
	opps, err := s.deps.Opps.ListRecent(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("scan_service: list opportunities: %w", err)
	}
	return opps, nil
}

// ListArchives lists archived reports; nil when archiving is off.
func (s *ScanService) ListArchives(ctx context.Context, ticker string) ([]domain.BlobInfo, error) {
	if s.deps.Archiver == nil {
		return nil, nil
	}
	infos, err := s.deps.Archiver.ListArchives(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("scan_service: list archives: %w", err)
	}
	return infos, nil
}

// LoadArchivedRun reads a run back from the archive by object path.
func (s *ScanService) LoadArchivedRun(ctx context.Context, path string) (domain.ScanRun, error) {
	if s.deps.Archiver == nil {
		return domain.ScanRun{}, fmt.Errorf("scan_service: load archived run: %w", domain.ErrNotFound)
	}
	run, err := s.deps.Archiver.LoadRun(ctx, path)
	if err != nil {
		return domain.ScanRun{}, fmt.Errorf("scan_service: load archived run: %w", err)
	}
	return run, nil
}

// ReadScanStream returns up to limit run summaries from the durable scan
// stream written after the entry with ID after, oldest first. An empty after
// reads from the start. Without a bus the stream does not exist and the error
// wraps domain.ErrNotFound.
func (s *ScanService) ReadScanStream(ctx context.Context, after string, limit int) ([]domain.StreamMessage, error) {
	if s.deps.Bus == nil {
		return nil, fmt.Errorf("scan_service: scan stream: %w", domain.ErrNotFound)
	}
	if after == "" {
		after = "0"
	}
	msgs, err := s.deps.Bus.StreamRead(ctx, domain.StreamScanRuns, after, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("scan_service: read scan stream: %w", err)
	}
	return msgs, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	default:
		return n
	}
}

// flatten expands runs (newest first) into stored opportunities, applying the
// kind filter and paging in opts.
func flatten(runs []domain.ScanRun, opts domain.ListOpts) []domain.StoredOpportunity {
	var out []domain.StoredOpportunity
	skip := opts.Offset
	for _, run := range runs {
		for _, o := range run.Report.Opportunities {
			if opts.Kind != "" && o.Kind != opts.Kind {
				continue
			}
			if skip > 0 {
				skip--
				continue
			}
			out = append(out, domain.StoredOpportunity{RunID: run.ID, Ticker: run.Ticker, DetectedAt: run.CompletedAt, Opp: o})
			if len(out) == opts.Limit {
				return out
			}
		}
	}
	return out
}
