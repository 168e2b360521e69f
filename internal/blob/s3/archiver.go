package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/alanyoungcy/optionarb/internal/domain"
	"github.com/alanyoungcy/optionarb/internal/report"
)

// archiveRoot is the key prefix every archived report lives under.
const archiveRoot = "reports"

// ReportArchiver implements domain.ReportArchiver. Each run is written as
// three objects sharing a key stem:
//
//	reports/SPY/2025-06-20/<run id>.json   full run, report included
//	reports/SPY/2025-06-20/<run id>.jsonl  one opportunity per line
//	reports/SPY/2025-06-20/<run id>.csv    flat rows for spreadsheets
//
// Previously archived runs are never rewritten: when a reader is configured,
// ArchiveRun refuses a run whose objects already exist.
type ReportArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	audit  domain.AuditStore // optional
}

// NewReportArchiver creates an archiver. reader and audit may be nil; without
// a reader ListArchives returns nothing and existing objects are not checked.
func NewReportArchiver(writer domain.BlobWriter, reader domain.BlobReader, audit domain.AuditStore) *ReportArchiver {
	return &ReportArchiver{writer: writer, reader: reader, audit: audit}
}

// ArchiveRun uploads run and returns the keys written, in upload order. If any
// of the run's objects is already stored nothing is written and the error
// wraps domain.ErrAlreadyArchived.
func (a *ReportArchiver) ArchiveRun(ctx context.Context, run domain.ScanRun) ([]string, error) {
	if run.ID == "" {
		return nil, fmt.Errorf("s3blob: archive run: empty run id")
	}
	stem := archiveStem(run.Ticker, run.CompletedAt, run.ID)

	full, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive run %s marshal: %w", run.ID, err)
	}
	lines, err := marshalJSONL(run.Report.Opportunities)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive run %s marshal: %w", run.ID, err)
	}
	var csvBuf bytes.Buffer
	if err := report.WriteCSV(&csvBuf, run.Report); err != nil {
		return nil, fmt.Errorf("s3blob: archive run %s csv: %w", run.ID, err)
	}

	objects := []struct {
		ext, contentType string
		body             []byte
	}{
		{".json", "application/json", full},
		{".jsonl", "application/x-ndjson", lines},
		{".csv", "text/csv", csvBuf.Bytes()},
	}
	if a.reader != nil {
		for _, o := range objects {
			p := stem + o.ext
			exists, err := a.reader.Exists(ctx, p)
			if err != nil {
				return nil, fmt.Errorf("s3blob: archive run %s: %w", run.ID, err)
			}
			if exists {
				return nil, fmt.Errorf("s3blob: archive run %s: %s: %w", run.ID, p, domain.ErrAlreadyArchived)
			}
		}
	}

	paths := make([]string, 0, len(objects))
	for _, o := range objects {
		p := stem + o.ext
		if err := a.writer.Put(ctx, p, bytes.NewReader(o.body), o.contentType); err != nil {
			return paths, fmt.Errorf("s3blob: archive run %s upload: %w", run.ID, err)
		}
		paths = append(paths, p)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.run", map[string]any{
			"run_id": run.ID,
			"ticker": run.Ticker,
			"paths":  paths,
			"total":  run.Total,
		}); err != nil {
			return paths, fmt.Errorf("s3blob: archive run %s audit log: %w", run.ID, err)
		}
	}
	return paths, nil
}

// ListArchives returns the archived full-run objects for ticker, or for every
// ticker when ticker is empty.
func (a *ReportArchiver) ListArchives(ctx context.Context, ticker string) ([]domain.BlobInfo, error) {
	if a.reader == nil {
		return nil, nil
	}
	prefix := archiveRoot + "/"
	if ticker != "" {
		prefix += strings.ToUpper(ticker) + "/"
	}
	infos, err := a.reader.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("s3blob: list archives %q: %w", prefix, err)
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Path, ".json") {
			out = append(out, info)
		}
	}
	return out, nil
}

// LoadRun reads back the full run archived at p. Only .json objects under
// the reports root are accepted.
func (a *ReportArchiver) LoadRun(ctx context.Context, p string) (domain.ScanRun, error) {
	if a.reader == nil {
		return domain.ScanRun{}, fmt.Errorf("s3blob: load run: %w", domain.ErrNotFound)
	}
	clean := path.Clean(p)
	if clean != p || !strings.HasPrefix(clean, archiveRoot+"/") || path.Ext(clean) != ".json" {
		return domain.ScanRun{}, fmt.Errorf("s3blob: load run %q: %w", p, domain.ErrInvalidArchive)
	}

	body, err := a.reader.Get(ctx, clean)
	if err != nil {
		return domain.ScanRun{}, fmt.Errorf("s3blob: load run: %w", err)
	}
	defer body.Close()

	var run domain.ScanRun
	if err := json.NewDecoder(body).Decode(&run); err != nil {
		return domain.ScanRun{}, fmt.Errorf("s3blob: decode run %s: %w", clean, err)
	}
	return run, nil
}

func archiveStem(ticker string, at time.Time, runID string) string {
	return path.Join(archiveRoot, strings.ToUpper(ticker), at.UTC().Format(domain.ExpiryLayout), runID)
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.ReportArchiver = (*ReportArchiver)(nil)
