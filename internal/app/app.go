// Package app wires the optionarb dependencies together and runs the
// configured operating mode.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alanyoungcy/optionarb/internal/config"
)

// Output formats for scan mode.
const (
	FormatTable = "table"
	FormatText  = "text"
	FormatCSV   = "csv"
	FormatJSON  = "json"
)

// ParseFormat validates a scan mode output format. Empty means table.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatText, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("app: unknown output format %q", s)
	}
}

// App is the root application object. It owns the configuration, the
// logger and the cleanup functions run on shutdown.
type App struct {
	cfg     *config.Config
	root    *slog.Logger // handed to components, which tag their own
	logger  *slog.Logger
	out     io.Writer
	format  string
	closers []func()
}

// New creates an App that prints scan mode reports to stdout as tables.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		root:   logger,
		logger: logger.With(slog.String("component", "app")),
		out:    os.Stdout,
		format: FormatTable,
	}
}

// WithOutput redirects scan mode reports to w in the given format.
func (a *App) WithOutput(w io.Writer, format string) *App {
	a.out = w
	a.format = format
	return a
}

// Run wires the dependencies, runs the configured mode and blocks until it
// finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.root)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "scan":
		return a.ScanMode(ctx, deps)
	case "watch":
		return a.WatchMode(ctx, deps)
	case "server":
		return a.ServerMode(ctx, deps)
	case "full":
		return a.FullMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down resources in reverse registration order. Later calls are
// no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
