package domain

import "time"

// Bus channels the scan service publishes on.
const (
	ChannelOpportunities = "optionarb:opportunities"
	ChannelScans         = "optionarb:scans"
	StreamScanRuns       = "optionarb:stream:scan_runs"
)

// EventType names a notifiable event.
type EventType string

const (
	EventOpportunityFound EventType = "opportunity_found"
	EventScanCompleted    EventType = "scan_completed"
	EventScanFailed       EventType = "scan_failed"
)

// OpportunitySignal is published once per detected opportunity.
type OpportunitySignal struct {
	RunID       string      `json:"run_id"`
	Ticker      string      `json:"ticker"`
	Opportunity Opportunity `json:"opportunity"`
	DetectedAt  time.Time   `json:"detected_at"`
}

// ScanSummary is published once per finished run.
type ScanSummary struct {
	RunID          string                  `json:"run_id"`
	Ticker         string                  `json:"ticker"`
	Total          int                     `json:"total"`
	ByKind         map[OpportunityKind]int `json:"by_kind"`
	MalformedCount int                     `json:"malformed_count"`
	DuplicateCount int                     `json:"duplicate_count"`
	Duration       time.Duration           `json:"duration"`
	Error          string                  `json:"error,omitempty"`
}
