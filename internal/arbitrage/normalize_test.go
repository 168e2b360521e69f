package arbitrage

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

func TestNormalize_PartialFailure(t *testing.T) {
	records := make([]domain.RawRecord, 0, 10)
	for i := 0; i < 10; i++ {
		records = append(records, rec("2025-06-20", "call", 90+i, 1.5))
	}
	records[3]["strike"] = "abc"
	records[7]["strike"] = "n/a"

	n := Normalize(records)
	assert.Len(t, n.Contracts, 8)
	assert.Empty(t, n.Ignored)
	errs := n.Malformed
	require.Len(t, errs, 2)

	var mre *domain.MalformedRecordError
	require.True(t, errors.As(errs[0], &mre))
	assert.Equal(t, 3, mre.Index)
	assert.Equal(t, "strike", mre.Field)
	require.True(t, errors.As(errs[1], &mre))
	assert.Equal(t, 7, mre.Index)
}

func TestNormalize_Coercion(t *testing.T) {
	ny := time.FixedZone("EST", -5*60*60)

	tests := []struct {
		name   string
		record domain.RawRecord
		check  func(t *testing.T, c domain.OptionContract)
	}{
		{
			name:   "comma separated strike string",
			record: rec("2025-06-20", "call", "1,250.50", "3.10"),
			check: func(t *testing.T, c domain.OptionContract) {
				assert.True(t, c.Strike.Equal(dec("1250.5")))
				assert.True(t, c.LastPrice.Equal(dec("3.1")))
			},
		},
		{
			name:   "dash price means no trade",
			record: rec("2025-06-20", "put", 100, "-"),
			check: func(t *testing.T, c domain.OptionContract) {
				assert.True(t, c.LastPrice.IsZero())
				assert.False(t, c.Priced())
			},
		},
		{
			name:   "missing price means no trade",
			record: domain.RawRecord{"strike": 100.0, "expiry": "2025-06-20", "kind": "put"},
			check: func(t *testing.T, c domain.OptionContract) {
				assert.True(t, c.LastPrice.IsZero())
			},
		},
		{
			name: "snake case aliases and percent iv",
			record: domain.RawRecord{
				"strike":             json.Number("105"),
				"expiration":         "20250620",
				"option_type":        "C",
				"last_price":         json.Number("2.25"),
				"implied_volatility": "25.5%",
			},
			check: func(t *testing.T, c domain.OptionContract) {
				assert.Equal(t, domain.OptionKindCall, c.Kind)
				assert.Equal(t, "2025-06-20", c.ExpiryKey())
				require.True(t, c.ImpliedVolatility.Valid)
				assert.True(t, c.ImpliedVolatility.Decimal.Equal(dec("0.255")))
			},
		},
		{
			name: "fractional iv passes through",
			record: domain.RawRecord{
				"strike": 100, "expiry": "2025-06-20", "type": "Puts", "lastPrice": 1,
				"impliedVolatility": 0.31,
			},
			check: func(t *testing.T, c domain.OptionContract) {
				assert.Equal(t, domain.OptionKindPut, c.Kind)
				assert.True(t, c.ImpliedVolatility.Decimal.Equal(dec("0.31")))
			},
		},
		{
			name: "unsigned and small integer fields",
			record: domain.RawRecord{
				"strike": uint64(18446744073709551615), "expiry": "2025-06-20", "type": "call",
				"lastPrice": uint8(3), "impliedVolatility": int8(0),
			},
			check: func(t *testing.T, c domain.OptionContract) {
				assert.True(t, c.Strike.Equal(dec("18446744073709551615")))
				assert.True(t, c.LastPrice.Equal(dec("3")))
				require.True(t, c.ImpliedVolatility.Valid)
				assert.True(t, c.ImpliedVolatility.Decimal.IsZero())
			},
		},
		{
			name: "time value keeps its calendar date",
			record: domain.RawRecord{
				"strike": 100, "expiry": time.Date(2025, 6, 20, 22, 0, 0, 0, ny), "type": "call", "lastPrice": 1,
			},
			check: func(t *testing.T, c domain.OptionContract) {
				assert.Equal(t, "2025-06-20", c.ExpiryKey())
				assert.Equal(t, time.UTC, c.Expiry.Location())
			},
		},
		{
			name:   "rfc3339 expiry",
			record: rec("2025-06-20T00:00:00Z", "call", 100, 1),
			check: func(t *testing.T, c domain.OptionContract) {
				assert.Equal(t, "2025-06-20", c.ExpiryKey())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Normalize([]domain.RawRecord{tt.record})
			require.Empty(t, n.Malformed)
			require.Empty(t, n.Ignored)
			require.Len(t, n.Contracts, 1)
			tt.check(t, n.Contracts[0])
		})
	}
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		record domain.RawRecord
		field  string
	}{
		{"nil record", nil, ""},
		{"missing strike", domain.RawRecord{"expiry": "2025-06-20", "type": "call"}, "strike"},
		{"zero strike", rec("2025-06-20", "call", 0, 1), "strike"},
		{"negative strike", rec("2025-06-20", "call", "-5", 1), "strike"},
		{"missing expiry", domain.RawRecord{"strike": 100, "type": "call"}, "expiry"},
		{"bad expiry", rec("soon", "call", 100, 1), "expiry_date"},
		{"numeric expiry", domain.RawRecord{"strike": 100, "expiry_date": 20250620, "type": "call"}, "expiry_date"},
		{"missing type", domain.RawRecord{"strike": 100, "expiry": "2025-06-20"}, "type"},
		{"unknown type", rec("2025-06-20", "straddle", 100, 1), "type"},
		{"negative price", rec("2025-06-20", "call", 100, -1), "lastPrice"},
		{"text price", rec("2025-06-20", "call", 100, "cheap"), "lastPrice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Normalize([]domain.RawRecord{tt.record})
			assert.Empty(t, n.Contracts)
			require.Len(t, n.Malformed, 1)
			var mre *domain.MalformedRecordError
			require.True(t, errors.As(n.Malformed[0], &mre))
			assert.Equal(t, tt.field, mre.Field)
			assert.NotEmpty(t, mre.Error())
		})
	}
}

func TestNormalize_IntegerKinds(t *testing.T) {
	for _, strike := range []any{
		int8(100), int16(100), int32(100), int64(100), int(100),
		uint(100), uint8(100), uint16(100), uint32(100), uint64(100),
	} {
		n := Normalize([]domain.RawRecord{rec("2025-06-20", "call", strike, 1)})
		require.Empty(t, n.Malformed, "%T", strike)
		require.Len(t, n.Contracts, 1)
		assert.True(t, n.Contracts[0].Strike.Equal(dec("100")), "%T", strike)
	}
}

func TestNormalize_IgnoredVolatility(t *testing.T) {
	records := []domain.RawRecord{
		{"strike": 100, "expiry": "2025-06-20", "type": "put", "lastPrice": 1, "impliedVolatility": "n/a"},
		{"strike": 105, "expiry": "2025-06-20", "type": "put", "lastPrice": 2, "iv": -0.2},
		{"strike": 110, "expiry": "2025-06-20", "type": "put", "lastPrice": 3, "iv": "-"},
	}
	n := Normalize(records)
	assert.Empty(t, n.Malformed)
	require.Len(t, n.Contracts, 3, "records are kept")
	for _, c := range n.Contracts {
		assert.False(t, c.ImpliedVolatility.Valid)
	}

	require.Len(t, n.Ignored, 2, "a blank value is not reported")
	var mre *domain.MalformedRecordError
	require.True(t, errors.As(n.Ignored[0], &mre))
	assert.Equal(t, 0, mre.Index)
	assert.Equal(t, "impliedVolatility", mre.Field)
	require.True(t, errors.As(n.Ignored[1], &mre))
	assert.Equal(t, 1, mre.Index)
	assert.Equal(t, "iv", mre.Field)
}
