// Package config defines the optionarb configuration, its defaults and its
// validation rules.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by OPTIONARB_* environment variables.
type Config struct {
	Scanner    ScannerConfig    `toml:"scanner"`
	MarketData MarketDataConfig `toml:"marketdata"`
	Tickers    []string         `toml:"tickers"`
	Schedule   string           `toml:"schedule"` // cron expression for watch mode
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ScannerConfig holds the detection thresholds. Tolerances are decimal
// strings so they reach the scanner without float rounding.
type ScannerConfig struct {
	ParityTolerance  string   `toml:"parity_tolerance"`
	BoxMinEdge       string   `toml:"box_min_edge"`
	ButterflyMinEdge string   `toml:"butterfly_min_edge"`
	Passes           []string `toml:"passes"` // empty runs every pass
	Workers          int      `toml:"workers"`
	DuplicatePolicy  string   `toml:"duplicate_policy"`
	// DiscountedParity annotates parity hits with P + S - K*e^(-rT).
	DiscountedParity bool    `toml:"discounted_parity"`
	RiskFreeRate     float64 `toml:"risk_free_rate"`
	// Concurrency bounds how many tickers are scanned at once.
	Concurrency int `toml:"concurrency"`
}

// MarketDataConfig selects and tunes the market data provider.
type MarketDataConfig struct {
	Provider           string   `toml:"provider"` // csv | polygon
	CSVDir             string   `toml:"csv_dir"`
	PolygonAPIKey      string   `toml:"polygon_api_key"`
	MaxRetries         int      `toml:"max_retries"`
	RetryInitial       duration `toml:"retry_initial"`
	RetryMaxElapsed    duration `toml:"retry_max_elapsed"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"` // needs redis; zero disables
	CacheTTL           duration `toml:"cache_ttl"`             // needs redis; zero disables
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for report archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	PartSizeMB     int    `toml:"part_size_mb"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port               int      `toml:"port"`
	CORSOrigins        []string `toml:"cors_origins"`
	APIKey             string   `toml:"api_key"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"` // needs redis
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	MinNetProfit      string   `toml:"min_net_profit"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Scanner: ScannerConfig{
			ParityTolerance:  "0.05",
			BoxMinEdge:       "0.01",
			ButterflyMinEdge: "0.01",
			Workers:          4,
			DuplicatePolicy:  "first_seen",
			RiskFreeRate:     0.05,
			Concurrency:      4,
		},
		MarketData: MarketDataConfig{
			Provider:        "csv",
			CSVDir:          "data",
			MaxRetries:      3,
			RetryInitial:    duration{500 * time.Millisecond},
			RetryMaxElapsed: duration{30 * time.Second},
			CacheTTL:        duration{time.Minute},
		},
		Tickers:  []string{"SPY"},
		Schedule: "*/15 * * * *",
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "optionarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "optionarb-reports",
			ForcePathStyle: true,
			PartSizeMB:     5,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Notify: NotifyConfig{
			Events:       []string{"opportunity_found", "scan_failed"},
			MinNetProfit: "0",
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":   true,
	"watch":  true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validPasses = map[string]bool{
	"parity":    true,
	"box":       true,
	"butterfly": true,
}

var validEvents = map[string]bool{
	"opportunity_found": true,
	"scan_completed":    true,
	"scan_failed":       true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		add("unknown mode %q (valid: scan, watch, server, full)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Scanner
	for name, v := range map[string]string{
		"parity_tolerance":   c.Scanner.ParityTolerance,
		"box_min_edge":       c.Scanner.BoxMinEdge,
		"butterfly_min_edge": c.Scanner.ButterflyMinEdge,
	} {
		d, err := decimal.NewFromString(v)
		if err != nil {
			add("scanner: %s %q is not a decimal", name, v)
		} else if d.IsNegative() {
			add("scanner: %s must be >= 0", name)
		}
	}
	for _, p := range c.Scanner.Passes {
		if !validPasses[p] {
			add("scanner: unknown pass %q (valid: parity, box, butterfly)", p)
		}
	}
	if c.Scanner.Workers < 1 {
		add("scanner: workers must be >= 1")
	}
	if c.Scanner.Concurrency < 1 {
		add("scanner: concurrency must be >= 1")
	}
	switch c.Scanner.DuplicatePolicy {
	case "", "first_seen", "reject":
	default:
		add("scanner: unknown duplicate_policy %q (valid: first_seen, reject)", c.Scanner.DuplicatePolicy)
	}

	// Market data
	switch c.MarketData.Provider {
	case "csv":
		if c.MarketData.CSVDir == "" {
			add("marketdata: csv_dir must not be empty for the csv provider")
		}
	case "polygon":
		if c.MarketData.PolygonAPIKey == "" {
			add("marketdata: polygon_api_key is required for the polygon provider")
		}
	default:
		add("marketdata: unknown provider %q (valid: csv, polygon)", c.MarketData.Provider)
	}
	if c.MarketData.MaxRetries < 0 {
		add("marketdata: max_retries must be >= 0")
	}
	if c.MarketData.RateLimitPerMinute < 0 {
		add("marketdata: rate_limit_per_minute must be >= 0")
	}

	// Tickers and schedule
	if (mode == "scan" || mode == "watch" || mode == "full") && len(c.Tickers) == 0 {
		add("tickers must not be empty for mode %s", mode)
	}
	for _, t := range c.Tickers {
		if strings.TrimSpace(t) == "" {
			add("tickers must not contain blanks")
			break
		}
	}
	if mode == "watch" || mode == "full" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			add("schedule %q: %v", c.Schedule, err)
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
			if c.Postgres.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled && c.S3.Bucket == "" {
		add("s3: bucket must not be empty")
	}

	// Server
	if mode == "server" || mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server: port must be 1-65535, got %d", c.Server.Port)
		}
	}

	// Notify
	for _, e := range c.Notify.Events {
		if !validEvents[e] {
			add("notify: unknown event %q", e)
		}
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.MinNetProfit != "" {
		if _, err := decimal.NewFromString(c.Notify.MinNetProfit); err != nil {
			add("notify: min_net_profit %q is not a decimal", c.Notify.MinNetProfit)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
