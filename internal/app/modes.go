package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/optionarb/internal/domain"
	"github.com/alanyoungcy/optionarb/internal/report"
	"github.com/alanyoungcy/optionarb/internal/server"
	"github.com/alanyoungcy/optionarb/internal/server/handler"
	"github.com/alanyoungcy/optionarb/internal/server/ws"
)

const shutdownTimeout = 5 * time.Second

// ScanMode scans every configured ticker once and prints one report per
// ticker in configuration order. Tickers that fail are logged and make the
// mode return an error after the rest have been printed.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode", slog.Any("tickers", a.cfg.Tickers))

	outcomes, err := deps.Scans.ScanAll(ctx, a.cfg.Tickers)
	if err != nil {
		return fmt.Errorf("app: scan: %w", err)
	}

	var failed []string
	printed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o.Ticker)
			continue
		}
		if printed > 0 && a.format != FormatCSV {
			fmt.Fprintln(a.out)
		}
		if err := a.render(o.Run); err != nil {
			return fmt.Errorf("app: render %s: %w", o.Ticker, err)
		}
		printed++
	}
	if len(failed) > 0 {
		return fmt.Errorf("app: scan failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

func (a *App) render(run domain.ScanRun) error {
	switch a.format {
	case FormatText:
		return report.WriteText(a.out, run.Report)
	case FormatCSV:
		return report.WriteCSV(a.out, run.Report)
	case FormatJSON:
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	default:
		return report.WriteTable(a.out, run.Report)
	}
}

// WatchMode scans every ticker immediately and then on each tick of the
// configured cron schedule until ctx is cancelled. A tick that fires while
// the previous pass is still running is skipped.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode",
		slog.String("schedule", a.cfg.Schedule),
		slog.Any("tickers", a.cfg.Tickers),
	)

	logger := cronLogger{a.root.With(slog.String("component", "cron"))}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(a.cfg.Schedule, func() { a.scanPass(ctx, deps) }); err != nil {
		return fmt.Errorf("app: watch schedule %q: %w", a.cfg.Schedule, err)
	}

	a.scanPass(ctx, deps)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// scanPass runs one ScanAll and logs the outcome of each ticker. Failures
// have already been announced by the scan service.
func (a *App) scanPass(ctx context.Context, deps *Dependencies) {
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	outcomes, err := deps.Scans.ScanAll(ctx, a.cfg.Tickers)
	if err != nil {
		return
	}

	found, failed := 0, 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			continue
		}
		found += o.Run.Total
	}
	a.logger.InfoContext(ctx, "scan pass complete",
		slog.Int("tickers", len(outcomes)),
		slog.Int("failed", failed),
		slog.Int("opportunities", found),
		slog.Duration("elapsed", time.Since(started)),
	)
}

// ServerMode serves the HTTP API and WebSocket stream until ctx is
// cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the watch schedule and the server side by side.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	g.Go(func() error {
		return a.WatchMode(ctx, deps)
	})
	return g.Wait()
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.root, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	} else {
		a.logger.WarnContext(ctx, "redis disabled; /ws endpoint not registered")
	}

	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKey:             a.cfg.Server.APIKey,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Checks, a.root),
		Scans:  handler.NewScanHandler(deps.Scans, a.root),
	}, hub, deps.RateLimiter, a.root)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// cronLogger adapts slog to cron.Logger. Routine scheduler chatter goes to
// debug.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
