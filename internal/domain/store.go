package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Ticker string
	Kind   OpportunityKind // opportunity queries only
	Since  *time.Time
	Until  *time.Time
}

// ScanRunStore persists completed analysis runs together with their report.
type ScanRunStore interface {
	Insert(ctx context.Context, run ScanRun) error
	GetByID(ctx context.Context, id string) (ScanRun, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]ScanRun, error)
}

// OpportunityStore persists detected opportunities for history queries.
type OpportunityStore interface {
	InsertBatch(ctx context.Context, runID, ticker string, detectedAt time.Time, opps []Opportunity) error
	ListByRun(ctx context.Context, runID string) ([]StoredOpportunity, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]StoredOpportunity, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
