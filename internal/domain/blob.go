package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// ReportArchiver copies finished reports to cold storage.
type ReportArchiver interface {
	// ArchiveRun writes run once; a run already in the archive yields
	// ErrAlreadyArchived.
	ArchiveRun(ctx context.Context, run ScanRun) (paths []string, err error)
	// ListArchives lists archived runs, for every ticker when ticker is empty.
	ListArchives(ctx context.Context, ticker string) ([]BlobInfo, error)
	// LoadRun reads back a run archived at path, or returns ErrNotFound.
	LoadRun(ctx context.Context, path string) (ScanRun, error)
}
