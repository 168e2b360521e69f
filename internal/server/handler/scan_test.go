package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

type fakeScans struct {
	scanErr  error
	lastOpts domain.ListOpts
	runs     map[string]domain.ScanRun

	stream    []domain.StreamMessage
	streamErr error
	lastAfter string
}

func (f *fakeScans) Scan(_ context.Context, ticker string) (domain.ScanRun, error) {
	if f.scanErr != nil {
		return domain.ScanRun{}, f.scanErr
	}
	return domain.ScanRun{ID: "run-1", Ticker: strings.ToUpper(ticker), Total: 2}, nil
}

func (f *fakeScans) ListRecentRuns(_ context.Context, opts domain.ListOpts) ([]domain.ScanRun, error) {
	f.lastOpts = opts
	return []domain.ScanRun{{
		ID: "run-1", Ticker: "SPY", UnderlyingPrice: decimal.RequireFromString("512.3"), Total: 2,
		CompletedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}}, nil
}

func (f *fakeScans) GetRun(_ context.Context, id string) (domain.ScanRun, error) {
	if run, ok := f.runs[id]; ok {
		return run, nil
	}
	return domain.ScanRun{}, fmt.Errorf("wrapped: %w", domain.ErrNotFound)
}

func (f *fakeScans) ListRecentOpportunities(_ context.Context, opts domain.ListOpts) ([]domain.StoredOpportunity, error) {
	f.lastOpts = opts
	return nil, nil
}

func (f *fakeScans) ListArchives(context.Context, string) ([]domain.BlobInfo, error) {
	return nil, nil
}

func (f *fakeScans) LoadArchivedRun(_ context.Context, path string) (domain.ScanRun, error) {
	switch path {
	case "reports/SPY/2025-06-01/run-1.json":
		return domain.ScanRun{ID: "run-1", Ticker: "SPY"}, nil
	case "reports/SPY/2025-06-01/run-1.csv":
		return domain.ScanRun{}, fmt.Errorf("wrapped: %w", domain.ErrInvalidArchive)
	case "reports/SPY/broken.json":
		return domain.ScanRun{}, io.ErrUnexpectedEOF
	default:
		return domain.ScanRun{}, fmt.Errorf("wrapped: %w", domain.ErrNotFound)
	}
}

func (f *fakeScans) ReadScanStream(_ context.Context, after string, _ int) ([]domain.StreamMessage, error) {
	f.lastAfter = after
	return f.stream, f.streamErr
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func serve(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestCreateScan(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"ok", `{"ticker":"spy"}`, nil, http.StatusCreated},
		{"bad body", `{`, nil, http.StatusBadRequest},
		{"empty ticker", `{"ticker":""}`, fmt.Errorf("x: %w", domain.ErrInvalidTicker), http.StatusBadRequest},
		{"busy", `{"ticker":"spy"}`, domain.ErrLockHeld, http.StatusConflict},
		{"no price", `{"ticker":"spy"}`, domain.ErrNoUnderlyingPrice, http.StatusUnprocessableEntity},
		{"unknown ticker", `{"ticker":"zzz"}`, &domain.DataUnavailableError{Ticker: "ZZZ", Op: "chain", Err: domain.ErrNotFound}, http.StatusNotFound},
		{"provider down", `{"ticker":"spy"}`, &domain.DataUnavailableError{Ticker: "SPY", Op: "chain", Err: io.ErrUnexpectedEOF}, http.StatusBadGateway},
		{"internal", `{"ticker":"spy"}`, io.ErrClosedPipe, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewScanHandler(&fakeScans{scanErr: tt.err}, quiet())
			rec := serve(h.CreateScan, http.MethodPost, "/api/scans", tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	h := NewScanHandler(&fakeScans{}, quiet())
	rec := serve(h.CreateScan, http.MethodPost, "/api/scans", `{"ticker":"spy"}`)
	var run domain.ScanRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "SPY", run.Ticker)
}

func TestListRecent(t *testing.T) {
	f := &fakeScans{}
	h := NewScanHandler(f, quiet())
	rec := serve(h.ListRecent, http.MethodGet, "/api/scans/recent?ticker=spy&limit=999&since=2025-06-01", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 200, f.lastOpts.Limit)
	assert.Equal(t, "spy", f.lastOpts.Ticker)
	require.NotNil(t, f.lastOpts.Since)
	assert.Equal(t, 2025, f.lastOpts.Since.Year())

	var body struct {
		Scans []map[string]any `json:"scans"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Scans, 1)
	assert.Equal(t, "512.3", body.Scans[0]["underlying_price"])
	assert.Equal(t, "2025-06-01T12:00:00Z", body.Scans[0]["completed_at"])
	assert.NotContains(t, body.Scans[0], "report")
}

func TestGetScan(t *testing.T) {
	f := &fakeScans{runs: map[string]domain.ScanRun{"abc": {ID: "abc", Ticker: "QQQ"}}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/scans/{id}", NewScanHandler(f, quiet()).GetScan)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scans/abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ticker":"QQQ"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scans/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOpportunities(t *testing.T) {
	f := &fakeScans{}
	h := NewScanHandler(f, quiet())

	rec := serve(h.ListOpportunities, http.MethodGet, "/api/opportunities/recent?kind=box_spread&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"opportunities":[]}`, rec.Body.String())
	assert.Equal(t, domain.OpportunityBoxSpread, f.lastOpts.Kind)
	assert.Equal(t, 5, f.lastOpts.Limit)

	rec = serve(h.ListOpportunities, http.MethodGet, "/api/opportunities/recent?kind=condor", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListArchivesEmpty(t *testing.T) {
	h := NewScanHandler(&fakeScans{}, quiet())
	rec := serve(h.ListArchives, http.MethodGet, "/api/archives", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"archives":[]}`, rec.Body.String())
}

func TestGetArchivedRun(t *testing.T) {
	h := NewScanHandler(&fakeScans{}, quiet())
	tests := []struct {
		target string
		status int
	}{
		{"/api/archives/run?path=reports/SPY/2025-06-01/run-1.json", http.StatusOK},
		{"/api/archives/run?path=reports/SPY/2025-06-01/run-1.csv", http.StatusBadRequest},
		{"/api/archives/run?path=reports/SPY/2025-06-01/gone.json", http.StatusNotFound},
		{"/api/archives/run?path=reports/SPY/broken.json", http.StatusInternalServerError},
		{"/api/archives/run", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := serve(h.GetArchivedRun, http.MethodGet, tt.target, "")
		assert.Equal(t, tt.status, rec.Code, tt.target)
	}
}

func TestReadStream(t *testing.T) {
	f := &fakeScans{stream: []domain.StreamMessage{
		{ID: "1700000000000-0", Payload: []byte(`{"run_id":"run-1","ticker":"SPY","total":3}`)},
		{ID: "1700000000001-0", Payload: []byte(`not json`)},
	}}
	h := NewScanHandler(f, quiet())

	rec := serve(h.ReadStream, http.MethodGet, "/api/scans/stream?after=1699999999999-0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1699999999999-0", f.lastAfter)
	assert.JSONEq(t, `{
		"entries": [{"id":"1700000000000-0","summary":{"run_id":"run-1","ticker":"SPY","total":3}}],
		"next": "1700000000001-0"
	}`, rec.Body.String())

	f.stream = nil
	rec = serve(h.ReadStream, http.MethodGet, "/api/scans/stream?after=5-0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[],"next":"5-0"}`, rec.Body.String())

	f.streamErr = fmt.Errorf("wrapped: %w", domain.ErrNotFound)
	rec = serve(h.ReadStream, http.MethodGet, "/api/scans/stream", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.streamErr = io.ErrUnexpectedEOF
	rec = serve(h.ReadStream, http.MethodGet, "/api/scans/stream", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	ok := NewHealthHandler(map[string]Check{"redis": func(context.Context) error { return nil }}, quiet())
	rec := serve(ok.HealthCheck, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	bad := NewHealthHandler(map[string]Check{"postgres": func(context.Context) error { return io.EOF }}, quiet())
	rec = serve(bad.HealthCheck, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"postgres":"EOF"`)
}
