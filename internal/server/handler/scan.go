package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// ScanService defines the methods the scan handler requires.
type ScanService interface {
	Scan(ctx context.Context, ticker string) (domain.ScanRun, error)
	ListRecentRuns(ctx context.Context, opts domain.ListOpts) ([]domain.ScanRun, error)
	GetRun(ctx context.Context, id string) (domain.ScanRun, error)
	ListRecentOpportunities(ctx context.Context, opts domain.ListOpts) ([]domain.StoredOpportunity, error)
	ListArchives(ctx context.Context, ticker string) ([]domain.BlobInfo, error)
	LoadArchivedRun(ctx context.Context, path string) (domain.ScanRun, error)
	ReadScanStream(ctx context.Context, after string, limit int) ([]domain.StreamMessage, error)
}

// ScanHandler serves scan runs and their opportunities.
type ScanHandler struct {
	svc    ScanService
	logger *slog.Logger
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(svc ScanService, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{svc: svc, logger: logHandler(logger, "scan")}
}

type scanRequest struct {
	Ticker string `json:"ticker"`
}

// runSummary is a run without its report, for list responses.
type runSummary struct {
	ID              string `json:"id"`
	Ticker          string `json:"ticker"`
	UnderlyingPrice string `json:"underlying_price"`
	Total           int    `json:"total"`
	ExpiryCount     int    `json:"expiry_count"`
	MalformedCount  int    `json:"malformed_count"`
	DuplicateCount  int    `json:"duplicate_count"`
	CompletedAt     string `json:"completed_at"`
}

// streamEntry is one scan stream entry; Summary is the stored JSON verbatim.
type streamEntry struct {
	ID      string          `json:"id"`
	Summary json.RawMessage `json:"summary"`
}

// CreateScan runs an analysis for one ticker and returns the run.
// POST /api/scans {"ticker":"AAPL"}
func (h *ScanHandler) CreateScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	run, err := h.svc.Scan(r.Context(), req.Ticker)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, run)
	case errors.Is(err, domain.ErrInvalidTicker):
		writeError(w, http.StatusBadRequest, "ticker is required")
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "a scan for this ticker is already running")
	case errors.Is(err, domain.ErrNoUnderlyingPrice):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no market data for ticker")
	case errors.Is(err, domain.ErrDataUnavailable):
		writeError(w, http.StatusBadGateway, "market data unavailable")
	default:
		h.logger.ErrorContext(r.Context(), "scan failed",
			slog.String("ticker", req.Ticker),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "scan failed")
	}
}

// ListRecent returns recent runs without their reports.
// GET /api/scans/recent?ticker=&limit=
func (h *ScanHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	runs, err := h.svc.ListRecentRuns(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list runs failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}
	out := make([]runSummary, len(runs))
	for i, run := range runs {
		out[i] = runSummary{
			ID:              run.ID,
			Ticker:          run.Ticker,
			UnderlyingPrice: run.UnderlyingPrice.String(),
			Total:           run.Total,
			ExpiryCount:     run.ExpiryCount,
			MalformedCount:  run.MalformedCount,
			DuplicateCount:  run.DuplicateCount,
			CompletedAt:     run.CompletedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": out})
}

// GetScan returns one run with its full report.
// GET /api/scans/{id}
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing scan id")
		return
	}
	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get run failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get scan")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListOpportunities returns recent opportunities across runs.
// GET /api/opportunities/recent?kind=box_spread&ticker=&limit=
func (h *ScanHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	if k := r.URL.Query().Get("kind"); k != "" {
		kind := domain.OpportunityKind(k)
		switch kind {
		case domain.OpportunityParityViolation, domain.OpportunityBoxSpread, domain.OpportunityButterflySpread:
			opts.Kind = kind
		default:
			writeError(w, http.StatusBadRequest, "unknown opportunity kind")
			return
		}
	}

	opps, err := h.svc.ListRecentOpportunities(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.StoredOpportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": opps})
}

// ListArchives returns archived report objects.
// GET /api/archives?ticker=
func (h *ScanHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.ListArchives(r.Context(), r.URL.Query().Get("ticker"))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list archives failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": infos})
}

// GetArchivedRun returns a run read back from the archive.
// GET /api/archives/run?path=reports/SPY/2025-06-20/{id}.json
func (h *ScanHandler) GetArchivedRun(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		writeError(w, http.StatusBadRequest, "missing path")
		return
	}
	run, err := h.svc.LoadArchivedRun(r.Context(), p)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, run)
	case errors.Is(err, domain.ErrInvalidArchive):
		writeError(w, http.StatusBadRequest, "path is not an archived run")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "archived run not found")
	default:
		h.logger.ErrorContext(r.Context(), "load archived run failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load archived run")
	}
}

// ReadStream pages through the durable stream of finished and failed scans,
// oldest first. Pass the returned next cursor as after to continue.
// GET /api/scans/stream?after=&limit=
func (h *ScanHandler) ReadStream(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	msgs, err := h.svc.ReadScanStream(r.Context(), after, parseListOpts(r).Limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan stream is not enabled")
			return
		}
		h.logger.ErrorContext(r.Context(), "read scan stream failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read scan stream")
		return
	}

	out := make([]streamEntry, 0, len(msgs))
	next := after
	for _, m := range msgs {
		next = m.ID
		if !json.Valid(m.Payload) {
			h.logger.WarnContext(r.Context(), "skipping non-JSON stream entry", slog.String("id", m.ID))
			continue
		}
		out = append(out, streamEntry{ID: m.ID, Summary: m.Payload})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out, "next": next})
}
