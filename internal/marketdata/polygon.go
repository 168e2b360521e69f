package marketdata

import (
	"context"
	"errors"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// PolygonSource reads option chain snapshots and previous-day closes from
// the Polygon REST API.
type PolygonSource struct {
	client *polygon.Client
}

// NewPolygonSource returns a source authenticated with apiKey.
func NewPolygonSource(apiKey string) *PolygonSource {
	return &PolygonSource{client: polygon.New(apiKey)}
}

func (s *PolygonSource) Name() string { return "polygon" }

func (s *PolygonSource) FetchUnderlyingPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	res, err := s.client.GetPreviousCloseAgg(ctx, &models.GetPreviousCloseAggParams{Ticker: ticker})
	if err != nil {
		return decimal.Zero, unavailable(ticker, OpUnderlying, err)
	}
	if len(res.Results) == 0 {
		return decimal.Zero, unavailable(ticker, OpUnderlying, errors.New("no previous close"))
	}
	return decimal.NewFromFloat(res.Results[0].Close), nil
}

// FetchOptionChain pages through the chain snapshot. The day close stands in
// for the last traded price; contracts that have not traded today report 0.
func (s *PolygonSource) FetchOptionChain(ctx context.Context, ticker string, expiry *time.Time) ([]domain.RawRecord, error) {
	iter := s.client.ListOptionsChainSnapshot(ctx, &models.ListOptionsChainParams{UnderlyingAsset: ticker})

	var records []domain.RawRecord
	for iter.Next() {
		snap := iter.Item()
		rec := domain.RawRecord{
			"strike":    snap.Details.StrikePrice,
			"expiry":    time.Time(snap.Details.ExpirationDate),
			"type":      snap.Details.ContractType,
			"lastPrice": snap.Day.Close,
		}
		if snap.ImpliedVolatility > 0 {
			rec["impliedVolatility"] = snap.ImpliedVolatility
		}
		records = append(records, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable(ticker, OpChain, err)
	}
	return filterExpiry(records, expiry), nil
}

var _ domain.MarketDataSource = (*PolygonSource)(nil)
