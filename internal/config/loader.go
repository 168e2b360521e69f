package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OPTIONARB_"

// Load merges the TOML file at path over Defaults, loads .env when present,
// then applies OPTIONARB_* overrides. An empty path skips the file. The result
// is not validated; call Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// A missing .env is not an error.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose OPTIONARB_* variable is set and
// non-empty, so secrets can be injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	// Scanner
	setStr(&cfg.Scanner.ParityTolerance, "SCANNER_PARITY_TOLERANCE")
	setStr(&cfg.Scanner.BoxMinEdge, "SCANNER_BOX_MIN_EDGE")
	setStr(&cfg.Scanner.ButterflyMinEdge, "SCANNER_BUTTERFLY_MIN_EDGE")
	setStringSlice(&cfg.Scanner.Passes, "SCANNER_PASSES")
	setInt(&cfg.Scanner.Workers, "SCANNER_WORKERS")
	setStr(&cfg.Scanner.DuplicatePolicy, "SCANNER_DUPLICATE_POLICY")
	setBool(&cfg.Scanner.DiscountedParity, "SCANNER_DISCOUNTED_PARITY")
	setFloat64(&cfg.Scanner.RiskFreeRate, "SCANNER_RISK_FREE_RATE")
	setInt(&cfg.Scanner.Concurrency, "SCANNER_CONCURRENCY")

	// Market data
	setStr(&cfg.MarketData.Provider, "MARKETDATA_PROVIDER")
	setStr(&cfg.MarketData.CSVDir, "MARKETDATA_CSV_DIR")
	setStr(&cfg.MarketData.PolygonAPIKey, "MARKETDATA_POLYGON_API_KEY")
	setStr(&cfg.MarketData.PolygonAPIKey, "POLYGON_API_KEY") // shorter alias
	setInt(&cfg.MarketData.MaxRetries, "MARKETDATA_MAX_RETRIES")
	setDuration(&cfg.MarketData.RetryInitial, "MARKETDATA_RETRY_INITIAL")
	setDuration(&cfg.MarketData.RetryMaxElapsed, "MARKETDATA_RETRY_MAX_ELAPSED")
	setInt(&cfg.MarketData.RateLimitPerMinute, "MARKETDATA_RATE_LIMIT_PER_MINUTE")
	setDuration(&cfg.MarketData.CacheTTL, "MARKETDATA_CACHE_TTL")

	setStringSlice(&cfg.Tickers, "TICKERS")
	setStr(&cfg.Schedule, "SCHEDULE")

	// Postgres
	setBool(&cfg.Postgres.Enabled, "POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POSTGRES_RUN_MIGRATIONS")

	// Redis
	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")

	// S3
	setBool(&cfg.S3.Enabled, "S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.PartSizeMB, "S3_PART_SIZE_MB")

	// Server
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "SERVER_RATE_LIMIT_PER_MINUTE")

	// Notify
	setStr(&cfg.Notify.TelegramToken, "NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NOTIFY_EVENTS")
	setStr(&cfg.Notify.MinNetProfit, "NOTIFY_MIN_NET_PROFIT")

	setStr(&cfg.Mode, "MODE")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when EnvPrefix+key is
// present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
