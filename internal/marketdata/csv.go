package marketdata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// UnderlyingFile lists ticker,price rows in a CSVSource directory.
const UnderlyingFile = "underlying.csv"

// ChainRow is one line of a {TICKER}.csv chain file. Values are kept as text
// so the normalizer sees exactly what the export contained.
type ChainRow struct {
	Expiry            string `csv:"expiry"`
	Type              string `csv:"type"`
	Strike            string `csv:"strike"`
	LastPrice         string `csv:"last_price"`
	ImpliedVolatility string `csv:"implied_volatility"`
}

// UnderlyingRow is one line of underlying.csv.
type UnderlyingRow struct {
	Ticker string `csv:"ticker"`
	Price  string `csv:"price"`
}

// CSVSource reads chains exported to a directory, one file per ticker.
type CSVSource struct {
	dir string
}

// NewCSVSource returns a source rooted at dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

func (s *CSVSource) Name() string { return "csv" }

func (s *CSVSource) FetchUnderlyingPrice(_ context.Context, ticker string) (decimal.Decimal, error) {
	var rows []UnderlyingRow
	if err := readCSV(filepath.Join(s.dir, UnderlyingFile), &rows); err != nil {
		return decimal.Zero, unavailable(ticker, OpUnderlying, err)
	}
	for _, r := range rows {
		if !strings.EqualFold(strings.TrimSpace(r.Ticker), ticker) {
			continue
		}
		price, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(r.Price), ",", ""))
		if err != nil {
			return decimal.Zero, unavailable(ticker, OpUnderlying, fmt.Errorf("bad price %q: %w", r.Price, err))
		}
		return price, nil
	}
	return decimal.Zero, unavailable(ticker, OpUnderlying, domain.ErrNotFound)
}

func (s *CSVSource) FetchOptionChain(_ context.Context, ticker string, expiry *time.Time) ([]domain.RawRecord, error) {
	var rows []ChainRow
	path := filepath.Join(s.dir, strings.ToUpper(ticker)+".csv")
	if err := readCSV(path, &rows); err != nil {
		return nil, unavailable(ticker, OpChain, err)
	}
	records := make([]domain.RawRecord, 0, len(rows))
	for _, r := range rows {
		rec := domain.RawRecord{
			"expiry":    r.Expiry,
			"type":      r.Type,
			"strike":    r.Strike,
			"lastPrice": r.LastPrice,
		}
		if r.ImpliedVolatility != "" {
			rec["impliedVolatility"] = r.ImpliedVolatility
		}
		records = append(records, rec)
	}
	return filterExpiry(records, expiry), nil
}

func readCSV(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", filepath.Base(path), domain.ErrNotFound)
		}
		return err
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

var _ domain.MarketDataSource = (*CSVSource)(nil)
