package arbitrage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// Field aliases accepted from upstream providers, first match wins.
var (
	strikeFields = []string{"strike", "strike_price", "strikePrice"}
	expiryFields = []string{"expiry", "expiry_date", "expiration", "expiration_date", "expirationDate"}
	kindFields   = []string{"type", "kind", "option_type", "contract_type", "contractType"}
	priceFields  = []string{"lastPrice", "last_price", "price"}
	ivFields     = []string{"impliedVolatility", "implied_volatility", "iv"}
)

var expiryLayouts = []string{
	domain.ExpiryLayout,
	time.RFC3339,
	"20060102",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
}

var (
	errMissing    = errors.New("missing")
	errNotNumeric = errors.New("not numeric")
)

// Normalized is the outcome of Normalize. Malformed and Ignored hold
// *domain.MalformedRecordError values in input order.
type Normalized struct {
	Contracts []domain.OptionContract
	// Malformed records were dropped.
	Malformed []error
	// Ignored fields were discarded from records that were kept.
	Ignored []error
}

// Normalize coerces raw provider records into option contracts. Records that
// cannot be coerced are dropped and reported; the rest of the batch is still
// processed.
func Normalize(records []domain.RawRecord) Normalized {
	n := Normalized{Contracts: make([]domain.OptionContract, 0, len(records))}
	for i, rec := range records {
		c, ignored, err := normalizeRecord(i, rec)
		if err != nil {
			n.Malformed = append(n.Malformed, err)
			continue
		}
		if ignored != nil {
			n.Ignored = append(n.Ignored, ignored)
		}
		n.Contracts = append(n.Contracts, c)
	}
	return n
}

// normalizeRecord returns the contract, a non-nil ignored error when an
// auxiliary field had to be discarded, and err when the record is unusable.
func normalizeRecord(idx int, rec domain.RawRecord) (c domain.OptionContract, ignored, err error) {
	malformed := func(field, format string, args ...any) error {
		return &domain.MalformedRecordError{Index: idx, Field: field, Reason: fmt.Sprintf(format, args...)}
	}
	if rec == nil {
		return c, nil, malformed("", "empty record")
	}

	// strike
	raw, field, ok := lookup(rec, strikeFields)
	if !ok {
		return c, nil, malformed("strike", "missing")
	}
	strike, err := toDecimal(raw)
	if err != nil {
		return c, nil, malformed(field, "%v: %v", err, raw)
	}
	if !strike.IsPositive() {
		return c, nil, malformed(field, "must be positive, got %s", strike)
	}
	c.Strike = strike

	// expiry
	raw, field, ok = lookup(rec, expiryFields)
	if !ok {
		return c, nil, malformed("expiry", "missing")
	}
	expiry, err := toDate(raw)
	if err != nil {
		return c, nil, malformed(field, "%v", err)
	}
	c.Expiry = expiry

	// kind
	raw, field, ok = lookup(rec, kindFields)
	if !ok {
		return c, nil, malformed("type", "missing")
	}
	kind, err := toKind(raw)
	if err != nil {
		return c, nil, malformed(field, "%v", err)
	}
	c.Kind = kind

	// lastPrice: absent or a dash means no recent trade.
	c.LastPrice = decimal.Zero
	if raw, field, ok = lookup(rec, priceFields); ok && !isBlank(raw) {
		price, err := toDecimal(raw)
		if err != nil {
			return c, nil, malformed(field, "%v: %v", err, raw)
		}
		if price.IsNegative() {
			return c, nil, malformed(field, "must not be negative, got %s", price)
		}
		c.LastPrice = price
	}

	// impliedVolatility is auxiliary; a bad value is dropped, not fatal.
	if raw, field, ok = lookup(rec, ivFields); ok && !isBlank(raw) {
		iv, err := toVolatility(raw)
		switch {
		case err != nil:
			ignored = malformed(field, "%v: %v", err, raw)
		case iv.IsNegative():
			ignored = malformed(field, "must not be negative, got %s", iv)
		default:
			c.ImpliedVolatility = decimal.NewNullDecimal(iv)
		}
	}
	return c, ignored, nil
}

func lookup(rec domain.RawRecord, aliases []string) (any, string, bool) {
	for _, k := range aliases {
		if v, ok := rec[k]; ok && v != nil {
			return v, k, true
		}
	}
	return nil, "", false
}

func isBlank(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	return s == "" || s == "-"
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, errNotNumeric
		}
		return decimal.NewFromFloat(n), nil
	case float32:
		return toDecimal(float64(n))
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int8:
		return decimal.NewFromInt(int64(n)), nil
	case int16:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case uint:
		return fromUint(uint64(n)), nil
	case uint8:
		return fromUint(uint64(n)), nil
	case uint16:
		return fromUint(uint64(n)), nil
	case uint32:
		return fromUint(uint64(n)), nil
	case uint64:
		return fromUint(n), nil
	case json.Number:
		return parseDecimal(n.String())
	case string:
		return parseDecimal(n)
	default:
		return decimal.Zero, errNotNumeric
	}
}

func fromUint(n uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return decimal.Zero, errMissing
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errNotNumeric
	}
	return d, nil
}

// toVolatility accepts fractions (0.25) or percent strings ("25%").
func toVolatility(v any) (decimal.Decimal, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if strings.HasSuffix(s, "%") {
			d, err := parseDecimal(strings.TrimSuffix(s, "%"))
			if err != nil {
				return decimal.Zero, err
			}
			return d.Div(decimal.NewFromInt(100)), nil
		}
	}
	return toDecimal(v)
}

func toDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, errMissing
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, errMissing
		}
		for _, layout := range expiryLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	default:
		return time.Time{}, fmt.Errorf("not a date: %T", v)
	}
}

func toKind(v any) (domain.OptionKind, error) {
	var s string
	switch k := v.(type) {
	case domain.OptionKind:
		s = string(k)
	case string:
		s = k
	default:
		return "", fmt.Errorf("not an option type: %T", v)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "calls", "c":
		return domain.OptionKindCall, nil
	case "put", "puts", "p":
		return domain.OptionKindPut, nil
	default:
		return "", fmt.Errorf("unknown option type %q", s)
	}
}
