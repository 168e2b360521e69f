package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// ChainCache implements domain.ChainCache. Chains are stored as JSON arrays
// at "chain:{TICKER}:{expiry}" and underlying prices as decimal strings at
// "underlying:{TICKER}", both with a TTL.
type ChainCache struct {
	rdb *redis.Client
}

// NewChainCache creates a ChainCache backed by the given Client.
func NewChainCache(c *Client) *ChainCache {
	return &ChainCache{rdb: c.Underlying()}
}

func chainKey(ticker, expiry string) string {
	return "optionarb:chain:" + strings.ToUpper(ticker) + ":" + expiry
}

func underlyingKey(ticker string) string {
	return "optionarb:underlying:" + strings.ToUpper(ticker)
}

// SetChain stores the raw records for ticker and expiry.
func (cc *ChainCache) SetChain(ctx context.Context, ticker, expiry string, records []domain.RawRecord, ttl time.Duration) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("redis: marshal chain %s: %w", ticker, err)
	}
	if err := cc.rdb.Set(ctx, chainKey(ticker, expiry), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set chain %s: %w", ticker, err)
	}
	return nil
}

// GetChain returns the cached records, or domain.ErrNotFound. Numbers come
// back as json.Number so decimals survive the round trip.
func (cc *ChainCache) GetChain(ctx context.Context, ticker, expiry string) ([]domain.RawRecord, error) {
	data, err := cc.rdb.Get(ctx, chainKey(ticker, expiry)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get chain %s: %w", ticker, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []domain.RawRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("redis: decode chain %s: %w", ticker, err)
	}
	return records, nil
}

// SetUnderlying stores the underlying price for ticker.
func (cc *ChainCache) SetUnderlying(ctx context.Context, ticker string, price decimal.Decimal, ttl time.Duration) error {
	if err := cc.rdb.Set(ctx, underlyingKey(ticker), price.String(), ttl).Err(); err != nil {
		return fmt.Errorf("redis: set underlying %s: %w", ticker, err)
	}
	return nil
}

// GetUnderlying returns the cached underlying price, or domain.ErrNotFound.
func (cc *ChainCache) GetUnderlying(ctx context.Context, ticker string) (decimal.Decimal, error) {
	s, err := cc.rdb.Get(ctx, underlyingKey(ticker)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, domain.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("redis: get underlying %s: %w", ticker, err)
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("redis: parse underlying %s: %w", ticker, err)
	}
	return price, nil
}

// Compile-time interface check.
var _ domain.ChainCache = (*ChainCache)(nil)
