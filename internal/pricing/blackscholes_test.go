package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

func TestBlackScholes(t *testing.T) {
	base := Params{Spot: 100, Strike: 100, Years: 1, Rate: 0.05, Sigma: 0.2}

	t.Run("call", func(t *testing.T) {
		p := base
		p.Kind = domain.OptionKindCall
		got, err := BlackScholes(p)
		require.NoError(t, err)
		assert.InDelta(t, 10.4506, got, 1e-3)
	})

	t.Run("put", func(t *testing.T) {
		p := base
		p.Kind = domain.OptionKindPut
		got, err := BlackScholes(p)
		require.NoError(t, err)
		assert.InDelta(t, 5.5735, got, 1e-3)
	})

	t.Run("parity holds", func(t *testing.T) {
		call := base
		call.Kind = domain.OptionKindCall
		put := base
		put.Kind = domain.OptionKindPut
		c, err := BlackScholes(call)
		require.NoError(t, err)
		p, err := BlackScholes(put)
		require.NoError(t, err)
		assert.InDelta(t, base.Spot-base.Strike*math.Exp(-base.Rate*base.Years), c-p, 1e-6)
	})

	t.Run("expired is intrinsic", func(t *testing.T) {
		p := Params{Spot: 110, Strike: 100, Years: 0, Rate: 0.05, Sigma: 0.2, Kind: domain.OptionKindCall}
		got, err := BlackScholes(p)
		require.NoError(t, err)
		assert.Equal(t, 10.0, got)

		p.Kind = domain.OptionKindPut
		got, err = BlackScholes(p)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := BlackScholes(Params{Spot: 0, Strike: 100, Kind: domain.OptionKindCall})
		assert.ErrorIs(t, err, ErrInvalidParams)

		_, err = BlackScholes(Params{Spot: 100, Strike: 100, Kind: "straddle"})
		assert.Error(t, err)
	})
}

func TestYearFraction(t *testing.T) {
	asOf := time.Date(2025, 1, 1, 15, 30, 0, 0, time.UTC)
	assert.InDelta(t, 1.0, YearFraction(asOf, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), 1e-9)
	assert.InDelta(t, 30.0/365.0, YearFraction(asOf, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)), 1e-9)
	assert.Zero(t, YearFraction(asOf, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDiscountedParityCall(t *testing.T) {
	put := decimal.RequireFromString("5")
	spot := decimal.RequireFromString("100")
	strike := decimal.RequireFromString("100")

	got := DiscountedParityCall(put, spot, strike, 0, 1)
	assert.True(t, got.Equal(put), "zero rate reduces to P + S - K, got %s", got)

	got = DiscountedParityCall(put, spot, strike, 0.05, 1)
	want := 5 + 100 - 100*math.Exp(-0.05)
	assert.InDelta(t, want, got.InexactFloat64(), 1e-9)
}

func TestContractPrice(t *testing.T) {
	asOf := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := domain.OptionContract{
		Strike: decimal.NewFromInt(100),
		Expiry: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Kind:   domain.OptionKindCall,
	}

	_, ok, err := ContractPrice(c, decimal.NewFromInt(100), 0.05, asOf)
	require.NoError(t, err)
	assert.False(t, ok)

	c.ImpliedVolatility = decimal.NewNullDecimal(decimal.RequireFromString("0.2"))
	price, ok, err := ContractPrice(c, decimal.NewFromInt(100), 0.05, asOf)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 10.4506, price, 1e-3)
}
