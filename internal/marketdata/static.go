package marketdata

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// StaticSource serves chains held in memory. It backs the HTTP upload path
// and tests.
type StaticSource struct {
	mu     sync.RWMutex
	chains map[string]domain.Chain
}

// NewStaticSource returns a source preloaded with chains.
func NewStaticSource(chains ...domain.Chain) *StaticSource {
	s := &StaticSource{chains: make(map[string]domain.Chain, len(chains))}
	for _, c := range chains {
		s.Put(c)
	}
	return s
}

// Put replaces the chain for c.Ticker.
func (s *StaticSource) Put(c domain.Chain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chains[strings.ToUpper(c.Ticker)] = c
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) get(ticker string) (domain.Chain, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chains[strings.ToUpper(ticker)]
	return c, ok
}

func (s *StaticSource) FetchUnderlyingPrice(_ context.Context, ticker string) (decimal.Decimal, error) {
	c, ok := s.get(ticker)
	if !ok {
		return decimal.Zero, unavailable(ticker, OpUnderlying, domain.ErrNotFound)
	}
	return c.UnderlyingPrice, nil
}

func (s *StaticSource) FetchOptionChain(_ context.Context, ticker string, expiry *time.Time) ([]domain.RawRecord, error) {
	c, ok := s.get(ticker)
	if !ok {
		return nil, unavailable(ticker, OpChain, domain.ErrNotFound)
	}
	out := make([]domain.RawRecord, len(c.Records))
	copy(out, c.Records)
	return filterExpiry(out, expiry), nil
}

var _ domain.MarketDataSource = (*StaticSource)(nil)
