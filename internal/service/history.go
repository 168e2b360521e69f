package service

import (
	"strings"
	"sync"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// runHistory is a bounded, newest-first record of finished runs used when no
// run store is configured.
type runHistory struct {
	mu   sync.RWMutex
	cap  int
	runs []domain.ScanRun
}

func newRunHistory(capacity int) *runHistory {
	return &runHistory{cap: capacity}
}

func (h *runHistory) add(run domain.ScanRun) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append([]domain.ScanRun{run}, h.runs...)
	if len(h.runs) > h.cap {
		h.runs = h.runs[:h.cap]
	}
}

func (h *runHistory) get(id string) (domain.ScanRun, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.runs {
		if r.ID == id {
			return r, true
		}
	}
	return domain.ScanRun{}, false
}

// list applies the ticker and time filters of opts, then Offset and Limit
// when Limit is positive.
func (h *runHistory) list(opts domain.ListOpts) []domain.ScanRun {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []domain.ScanRun
	skip := opts.Offset
	for _, r := range h.runs {
		if opts.Ticker != "" && !strings.EqualFold(r.Ticker, opts.Ticker) {
			continue
		}
		if opts.Since != nil && r.CompletedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && r.CompletedAt.After(*opts.Until) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, r)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out
}
