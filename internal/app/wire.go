package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/arbitrage"
	s3blob "github.com/alanyoungcy/optionarb/internal/blob/s3"
	"github.com/alanyoungcy/optionarb/internal/cache/redis"
	"github.com/alanyoungcy/optionarb/internal/config"
	"github.com/alanyoungcy/optionarb/internal/domain"
	"github.com/alanyoungcy/optionarb/internal/marketdata"
	"github.com/alanyoungcy/optionarb/internal/notify"
	"github.com/alanyoungcy/optionarb/internal/server/handler"
	"github.com/alanyoungcy/optionarb/internal/service"
	"github.com/alanyoungcy/optionarb/internal/store/postgres"
)

// Dependencies bundles what the operating modes need. It is built by Wire
// and released by the cleanup function Wire returns.
type Dependencies struct {
	Source  domain.MarketDataSource
	Scanner *arbitrage.Scanner
	Scans   *service.ScanService

	// Nil when redis is disabled.
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	Checks map[string]handler.Check
}

// Wire constructs the concrete implementations selected by cfg. Postgres,
// redis and S3 are each optional; the scan service degrades to in-memory
// history and skips publishing and archiving without them.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}
	var scanDeps service.ScanDeps

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pg.Pool()
		scanDeps.Runs = postgres.NewScanRunStore(pool)
		scanDeps.Opps = postgres.NewOpportunityStore(pool)
		scanDeps.Audit = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pg.Ping
	}

	// --- Redis ---
	var chainCache domain.ChainCache
	var sourceLimiter domain.RateLimiter
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })

		bus := redis.NewSignalBus(rc)
		deps.SignalBus = bus
		scanDeps.Bus = bus
		scanDeps.Locks = redis.NewLockManager(rc)
		deps.RateLimiter = redis.NewRateLimiter(rc, cfg.Server.RateLimitPerMinute, time.Minute)
		chainCache = redis.NewChainCache(rc)
		if cfg.MarketData.RateLimitPerMinute > 0 {
			sourceLimiter = redis.NewRateLimiter(rc, cfg.MarketData.RateLimitPerMinute, time.Minute)
		}
		deps.Checks["redis"] = rc.Ping
	}

	// --- S3 report archive ---
	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		writer := s3blob.NewWriter(sc, int64(cfg.S3.PartSizeMB)<<20)
		scanDeps.Archiver = s3blob.NewReportArchiver(writer, s3blob.NewReader(sc), scanDeps.Audit)
		deps.Checks["s3"] = sc.Health
	}

	src, err := buildSource(cfg.MarketData, chainCache, sourceLimiter, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Source = src

	scanner, err := buildScanner(cfg.Scanner, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Scanner = scanner

	notifier, err := buildNotifier(cfg.Notify, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}

	scanDeps.Source = src
	scanDeps.Scanner = scanner
	scanDeps.Notifier = notifier
	deps.Scans = service.NewScanService(scanDeps, service.ScanConfig{
		Discount:     cfg.Scanner.DiscountedParity,
		RiskFreeRate: cfg.Scanner.RiskFreeRate,
		Concurrency:  cfg.Scanner.Concurrency,
	}, logger)

	return deps, cleanup, nil
}

// buildSource picks the provider and stacks its decorators. Rate limiting
// sits closest to the provider so every retry attempt is counted; the cache
// is outermost so hits skip both.
func buildSource(cfg config.MarketDataConfig, cache domain.ChainCache, limiter domain.RateLimiter, logger *slog.Logger) (domain.MarketDataSource, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	var src domain.MarketDataSource
	switch provider {
	case "csv":
		src = marketdata.NewCSVSource(cfg.CSVDir)
	case "polygon":
		src = marketdata.NewPolygonSource(cfg.PolygonAPIKey)
	default:
		return nil, fmt.Errorf("marketdata %q: %w", cfg.Provider, domain.ErrUnknownProvider)
	}

	if limiter != nil {
		src = marketdata.WithRateLimit(src, limiter, "marketdata:"+provider)
	}
	if cfg.MaxRetries > 0 {
		src = marketdata.WithRetry(src, marketdata.RetryConfig{
			MaxRetries:      uint64(cfg.MaxRetries),
			InitialInterval: cfg.RetryInitial.Duration,
			MaxElapsed:      cfg.RetryMaxElapsed.Duration,
		}, logger)
	}
	if cache != nil && cfg.CacheTTL.Duration > 0 {
		src = marketdata.WithCache(src, cache, cfg.CacheTTL.Duration, logger)
	}
	return src, nil
}

func buildScanner(cfg config.ScannerConfig, logger *slog.Logger) (*arbitrage.Scanner, error) {
	parity, err := decimal.NewFromString(cfg.ParityTolerance)
	if err != nil {
		return nil, fmt.Errorf("scanner: parity_tolerance: %w", err)
	}
	box, err := decimal.NewFromString(cfg.BoxMinEdge)
	if err != nil {
		return nil, fmt.Errorf("scanner: box_min_edge: %w", err)
	}
	butterfly, err := decimal.NewFromString(cfg.ButterflyMinEdge)
	if err != nil {
		return nil, fmt.Errorf("scanner: butterfly_min_edge: %w", err)
	}
	policy, err := arbitrage.ParseDuplicatePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}

	return arbitrage.NewScanner(arbitrage.ScannerConfig{
		Registry:        arbitrage.DefaultRegistry(parity, box, butterfly),
		Passes:          cfg.Passes,
		DuplicatePolicy: policy,
		Workers:         cfg.Workers,
		Logger:          logger,
	})
}

func buildNotifier(cfg config.NotifyConfig, logger *slog.Logger) (*notify.Notifier, error) {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}

	minProfit := decimal.Zero
	if cfg.MinNetProfit != "" {
		var err error
		if minProfit, err = decimal.NewFromString(cfg.MinNetProfit); err != nil {
			return nil, fmt.Errorf("notify: min_net_profit: %w", err)
		}
	}
	return notify.NewNotifier(senders, notify.Options{
		Events:       cfg.Events,
		MinNetProfit: minProfit,
	}, logger), nil
}
