package arbitrage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

const exp = "2025-06-20"

func TestParityPass(t *testing.T) {
	pass := NewParityPass(dec("0.05"))

	t.Run("inside tolerance", func(t *testing.T) {
		g := group(t, call(exp, "95", "7"), put(exp, "95", "1.9"))
		assert.Empty(t, pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100")}))

		g = group(t, call(exp, "95", "7"), put(exp, "95", "0.5"))
		assert.Empty(t, pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100")}))
	})

	t.Run("beyond tolerance", func(t *testing.T) {
		g := group(t, call(exp, "95", "12"), put(exp, "95", "1"))
		opps := pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100")})
		require.Len(t, opps, 1)

		o := opps[0]
		assert.Equal(t, domain.OpportunityParityViolation, o.Kind)
		assert.Equal(t, exp, o.Expiry)
		assert.True(t, o.Profit.Equal(dec("6")), "profit %s", o.Profit)
		assert.True(t, o.TheoreticalDiff.Equal(dec("5")))
		assert.True(t, o.ActualDiff.Equal(dec("11")))
		assert.True(t, o.Cost.Equal(dec("11")))
		assert.False(t, o.ROI.Valid)
		assert.False(t, o.TheoreticalCall.Valid)

		require.Len(t, o.Legs, 2)
		assert.Equal(t, domain.LegSideSell, o.Legs[0].Side, "rich call is sold")
		assert.Equal(t, domain.OptionKindCall, o.Legs[0].Kind)
		assert.Equal(t, domain.LegSideBuy, o.Legs[1].Side)
	})

	t.Run("cheap call is bought", func(t *testing.T) {
		g := group(t, call(exp, "95", "1"), put(exp, "95", "4"))
		opps := pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100")})
		require.Len(t, opps, 1)
		assert.True(t, opps[0].Profit.Equal(dec("8")))
		assert.Equal(t, domain.LegSideBuy, opps[0].Legs[0].Side)
	})

	t.Run("exactly at tolerance is not reported", func(t *testing.T) {
		// theoretical 5, actual 10, gap 5 == 100 * 0.05
		g := group(t, call(exp, "95", "11"), put(exp, "95", "1"))
		assert.Empty(t, pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100")}))
	})

	t.Run("missing counterpart or zero price is skipped", func(t *testing.T) {
		g := group(t,
			call(exp, "90", "30"),
			call(exp, "95", "12"), put(exp, "95", "0"),
			put(exp, "100", "20"),
		)
		assert.Empty(t, pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100")}))
	})

	t.Run("discounted annotation", func(t *testing.T) {
		g := group(t, call(exp, "95", "12"), put(exp, "95", "1"))
		opps := pass.Scan(PassInput{
			Group:           g,
			UnderlyingPrice: dec("100"),
			Valuation:       &Valuation{Rate: 0, AsOf: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		})
		require.Len(t, opps, 1)
		require.True(t, opps[0].TheoreticalCall.Valid)
		assert.True(t, opps[0].TheoreticalCall.Decimal.Equal(dec("6")), "P + S - K at zero rate")
	})
}

func TestBoxPass(t *testing.T) {
	pass := NewBoxPass(dec("0.01"))
	chain := func(higherPut string) ExpiryGroup {
		return group(t,
			call(exp, "100", "8"), call(exp, "110", "2"),
			put(exp, "100", "1"), put(exp, "110", higherPut),
		)
	}

	t.Run("cost equal to width", func(t *testing.T) {
		assert.Empty(t, pass.Scan(PassInput{Group: chain("5"), UnderlyingPrice: dec("105")}))
	})

	t.Run("edge above minimum", func(t *testing.T) {
		opps := pass.Scan(PassInput{Group: chain("4.5"), UnderlyingPrice: dec("105")})
		require.Len(t, opps, 1)
		o := opps[0]
		assert.Equal(t, domain.OpportunityBoxSpread, o.Kind)
		assert.True(t, o.Cost.Equal(dec("9.5")))
		assert.True(t, o.Profit.Equal(dec("10")))
		assert.True(t, o.NetProfit.Equal(dec("0.5")))
		require.True(t, o.ROI.Valid)
		assert.Equal(t, "5.2632", o.ROI.Decimal.String())
		assert.Equal(t, []string{"100", "110"}, []string{o.Strikes[0].String(), o.Strikes[1].String()})

		require.Len(t, o.Legs, 4)
		assert.Equal(t, domain.LegSideBuy, o.Legs[0].Side)
		assert.Equal(t, domain.LegSideSell, o.Legs[1].Side)
		assert.Equal(t, domain.OptionKindPut, o.Legs[2].Kind)
		assert.Equal(t, domain.LegSideBuy, o.Legs[2].Side)
		assert.Equal(t, domain.LegSideSell, o.Legs[3].Side)
	})

	t.Run("edge below minimum", func(t *testing.T) {
		// cost 9.95, edge 0.05 < 0.1
		assert.Empty(t, pass.Scan(PassInput{Group: chain("4.95"), UnderlyingPrice: dec("105")}))
	})

	t.Run("zero cost leaves roi undefined", func(t *testing.T) {
		g := group(t,
			call(exp, "100", "5"), call(exp, "110", "5"),
			put(exp, "100", "5"), put(exp, "110", "5"),
		)
		opps := pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("105")})
		require.Len(t, opps, 1)
		assert.True(t, opps[0].Cost.IsZero())
		assert.False(t, opps[0].ROI.Valid)
	})

	t.Run("every pair is checked", func(t *testing.T) {
		g := group(t,
			call(exp, "90", "1"), call(exp, "100", "1"), call(exp, "110", "1"),
			put(exp, "90", "1"), put(exp, "100", "1"), put(exp, "110", "1"),
		)
		opps := pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100")})
		require.Len(t, opps, 3)
		pairs := make([]string, len(opps))
		for i, o := range opps {
			pairs[i] = o.Strikes[0].String() + "/" + o.Strikes[1].String()
		}
		assert.Equal(t, []string{"90/100", "90/110", "100/110"}, pairs)
	})

	t.Run("zero priced leg is skipped", func(t *testing.T) {
		assert.Empty(t, pass.Scan(PassInput{Group: chain("0"), UnderlyingPrice: dec("105")}))
	})
}

func TestButterflyPass(t *testing.T) {
	pass := NewButterflyPass(dec("0.01"))

	t.Run("adjacent strikes only", func(t *testing.T) {
		// (90,100,120) and (90,110,120) would both qualify if checked.
		g := group(t,
			call(exp, "90", "10"), call(exp, "100", "8"),
			call(exp, "110", "7"), call(exp, "120", "2"),
		)
		opps := pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100")})
		require.Len(t, opps, 1)
		o := opps[0]
		assert.Equal(t, domain.OpportunityButterflySpread, o.Kind)
		assert.Equal(t, []string{"100", "110", "120"},
			[]string{o.Strikes[0].String(), o.Strikes[1].String(), o.Strikes[2].String()})
		assert.True(t, o.Cost.Equal(dec("-4")))
		assert.True(t, o.Profit.Equal(dec("4")))
		assert.Equal(t, "40", o.ROI.Decimal.String())
		require.Len(t, o.Legs, 3)
		assert.Equal(t, 2, o.Legs[1].Quantity)
		assert.Equal(t, domain.LegSideSell, o.Legs[1].Side)
	})

	t.Run("windows in strike order", func(t *testing.T) {
		g := group(t,
			call(exp, "120", "5"), call(exp, "90", "10"),
			call(exp, "110", "10"), call(exp, "100", "12"),
		)
		opps := pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100")})
		require.Len(t, opps, 2)
		assert.Equal(t, "90", opps[0].Strikes[0].String())
		assert.Equal(t, "20", opps[0].ROI.Decimal.String())
		assert.Equal(t, "100", opps[1].Strikes[0].String())
	})

	t.Run("credit below minimum", func(t *testing.T) {
		// cost -0.1, threshold 20 * 0.01 = 0.2
		g := group(t, call(exp, "90", "10"), call(exp, "100", "6.05"), call(exp, "110", "2"))
		assert.Empty(t, pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100")}))
	})

	t.Run("unpriced wing is skipped", func(t *testing.T) {
		g := group(t, call(exp, "90", "10"), call(exp, "100", "8"), call(exp, "110", "0"))
		assert.Empty(t, pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100")}))
	})

	t.Run("debit is not reported", func(t *testing.T) {
		g := group(t, call(exp, "90", "12"), call(exp, "100", "6"), call(exp, "110", "2"))
		assert.Empty(t, pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100")}))
	})
}

func withIV(c domain.OptionContract, iv string) domain.OptionContract {
	c.ImpliedVolatility = decimal.NewNullDecimal(dec(iv))
	return c
}

func TestLegTheoreticalPrice(t *testing.T) {
	// 170 days to expiry at 5%: Black-Scholes gives C ~ 11.9678, P ~ 4.7810
	// for S=100, K=95, sigma=0.3.
	valuation := &Valuation{Rate: 0.05, AsOf: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	pass := NewParityPass(dec("0.05"))

	t.Run("only contracts with implied volatility", func(t *testing.T) {
		g := group(t, withIV(call(exp, "95", "12"), "0.3"), put(exp, "95", "1"))
		opps := pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100"), Valuation: valuation})
		require.Len(t, opps, 1)
		legs := opps[0].Legs
		require.Len(t, legs, 2)

		require.True(t, legs[0].TheoreticalPrice.Valid)
		assert.InDelta(t, 11.9678, legs[0].TheoreticalPrice.Decimal.InexactFloat64(), 1e-3)
		assert.True(t, legs[0].Price.Equal(dec("12")), "market price is kept")
		assert.False(t, legs[1].TheoreticalPrice.Valid)
	})

	t.Run("puts are priced as puts", func(t *testing.T) {
		g := group(t, withIV(call(exp, "95", "12"), "0.3"), withIV(put(exp, "95", "1"), "0.3"))
		opps := pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100"), Valuation: valuation})
		require.Len(t, opps, 1)
		putLeg := opps[0].Legs[1]
		require.True(t, putLeg.TheoreticalPrice.Valid)
		assert.InDelta(t, 4.7810, putLeg.TheoreticalPrice.Decimal.InexactFloat64(), 1e-3)
	})

	t.Run("no valuation leaves legs unpriced", func(t *testing.T) {
		g := group(t, withIV(call(exp, "95", "12"), "0.3"), withIV(put(exp, "95", "1"), "0.3"))
		opps := pass.Scan(PassInput{Group: g, UnderlyingPrice: dec("100")})
		require.Len(t, opps, 1)
		for _, l := range opps[0].Legs {
			assert.False(t, l.TheoreticalPrice.Valid)
		}
	})

	t.Run("box legs", func(t *testing.T) {
		g := group(t,
			withIV(call(exp, "100", "8"), "0.25"), withIV(put(exp, "100", "2"), "0.25"),
			withIV(call(exp, "110", "1"), "0.25"), withIV(put(exp, "110", "4"), "0.25"),
		)
		opps := NewBoxPass(dec("0.01")).Scan(PassInput{Group: g, UnderlyingPrice: dec("100"), Valuation: valuation})
		require.Len(t, opps, 1)
		for _, l := range opps[0].Legs {
			require.True(t, l.TheoreticalPrice.Valid)
			assert.True(t, l.TheoreticalPrice.Decimal.IsPositive())
		}
	})
}
