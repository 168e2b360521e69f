package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionarb/internal/arbitrage"
	"github.com/alanyoungcy/optionarb/internal/domain"
	"github.com/alanyoungcy/optionarb/internal/marketdata"
	"github.com/alanyoungcy/optionarb/internal/notify"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func rec(expiry, kind string, strike, price float64) domain.RawRecord {
	return domain.RawRecord{"strike": strike, "expiry_date": expiry, "type": kind, "lastPrice": price}
}

// spyChain yields a parity violation at 110 and a box on 2025-06-20 plus a
// butterfly on 2025-07-18, and carries one malformed record.
func spyChain() domain.Chain {
	return domain.Chain{
		Ticker:          "SPY",
		UnderlyingPrice: decimal.NewFromInt(100),
		Records: []domain.RawRecord{
			rec("2025-06-20", "call", 100, 5),
			rec("2025-06-20", "put", 100, 4),
			rec("2025-07-18", "call", 90, 10),
			rec("2025-06-20", "call", 110, 1),
			rec("2025-06-20", "put", 110, 3),
			rec("2025-07-18", "call", 100, 12),
			rec("2025-07-18", "call", 110, 10),
			{"strike": "abc", "expiry_date": "2025-06-20", "type": "call"},
		},
	}
}

type memRuns struct {
	mu   sync.Mutex
	runs []domain.ScanRun
	err  error
}

func (m *memRuns) Insert(_ context.Context, run domain.ScanRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRuns) GetByID(_ context.Context, id string) (domain.ScanRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.ScanRun{}, domain.ErrNotFound
}

func (m *memRuns) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.ScanRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.ScanRun(nil), m.runs...)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

type memOpps struct {
	mu       sync.Mutex
	inserted []domain.StoredOpportunity
	lastOpts domain.ListOpts
}

func (m *memOpps) InsertBatch(_ context.Context, runID, ticker string, at time.Time, opps []domain.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range opps {
		m.inserted = append(m.inserted, domain.StoredOpportunity{RunID: runID, Ticker: ticker, DetectedAt: at, Opp: o})
	}
	return nil
}

func (m *memOpps) ListByRun(context.Context, string) ([]domain.StoredOpportunity, error) {
	return nil, nil
}

func (m *memOpps) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.StoredOpportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOpts = opts
	return m.inserted, nil
}

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  [][]byte
	reads     []string
}

func newMemBus() *memBus { return &memBus{published: map[string][][]byte{}} }

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) PublishJSON(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Publish(ctx, channel, payload)
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *memBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed = append(b.streamed, payload)
	return nil
}

// StreamRead numbers entries "1-0", "2-0", ... in append order.
func (b *memBus) StreamRead(_ context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads = append(b.reads, stream)
	seq, _, _ := strings.Cut(lastID, "-")
	after, err := strconv.Atoi(seq)
	if err != nil {
		return nil, fmt.Errorf("bad stream id %q", lastID)
	}
	var out []domain.StreamMessage
	for i := after; i < len(b.streamed) && len(out) < count; i++ {
		out = append(out, domain.StreamMessage{ID: fmt.Sprintf("%d-0", i+1), Payload: b.streamed[i]})
	}
	return out, nil
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
	keys []string
}

func (l *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	l.keys = append(l.keys, key)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

type memArchiver struct {
	mu   sync.Mutex
	runs []string
}

func (a *memArchiver) ArchiveRun(_ context.Context, run domain.ScanRun) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs = append(a.runs, run.ID)
	return []string{"reports/" + run.Ticker + "/" + run.ID + ".json"}, nil
}

func (a *memArchiver) ListArchives(context.Context, string) ([]domain.BlobInfo, error) {
	return []domain.BlobInfo{{Path: "reports/SPY/x.json"}}, nil
}

func (a *memArchiver) LoadRun(_ context.Context, path string) (domain.ScanRun, error) {
	if path != "reports/SPY/x.json" {
		return domain.ScanRun{}, domain.ErrNotFound
	}
	return domain.ScanRun{ID: "x", Ticker: "SPY"}, nil
}

type memSender struct {
	mu     sync.Mutex
	titles []string
}

func (s *memSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
	return nil
}

func (s *memSender) Name() string { return "mem" }

type fixture struct {
	svc      *ScanService
	source   *marketdata.StaticSource
	runs     *memRuns
	opps     *memOpps
	bus      *memBus
	audit    *memAudit
	locks    *memLocks
	archiver *memArchiver
	sender   *memSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	scanner, err := arbitrage.NewScanner(arbitrage.ScannerConfig{Logger: quietLogger()})
	require.NoError(t, err)

	f := &fixture{
		source:   marketdata.NewStaticSource(spyChain()),
		runs:     &memRuns{},
		opps:     &memOpps{},
		bus:      newMemBus(),
		audit:    &memAudit{},
		locks:    &memLocks{},
		archiver: &memArchiver{},
		sender:   &memSender{},
	}
	f.svc = NewScanService(ScanDeps{
		Source:   f.source,
		Scanner:  scanner,
		Runs:     f.runs,
		Opps:     f.opps,
		Bus:      f.bus,
		Locks:    f.locks,
		Audit:    f.audit,
		Notifier: notify.NewNotifier([]notify.Sender{f.sender}, notify.Options{}, quietLogger()),
		Archiver: f.archiver,
	}, ScanConfig{}, quietLogger())
	return f
}
