package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ChainCache holds recently fetched market data so repeated scans of the same
// ticker within a short window do not hit the provider.
type ChainCache interface {
	SetChain(ctx context.Context, ticker, expiry string, records []RawRecord, ttl time.Duration) error
	GetChain(ctx context.Context, ticker, expiry string) ([]RawRecord, error)
	SetUnderlying(ctx context.Context, ticker string, price decimal.Decimal, ttl time.Duration) error
	GetUnderlying(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// PublishJSON marshals v and publishes it on channel.
	PublishJSON(ctx context.Context, channel string, v any) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	// StreamRead returns up to count entries after lastID, oldest first. "0"
	// reads from the start; an exhausted stream yields an empty slice.
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
