// Package pricing holds auxiliary option valuation helpers. None of it decides
// whether an arbitrage is reported; it only annotates.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

// DaysPerYear is the day count used for time to expiry.
const DaysPerYear = 365.0

var ErrInvalidParams = errors.New("pricing: spot and strike must be positive")

// Params are the Black-Scholes inputs. Years and Sigma at or below zero price
// the option at its intrinsic value.
type Params struct {
	Spot   float64
	Strike float64
	Years  float64
	Rate   float64
	Sigma  float64
	Kind   domain.OptionKind
}

// BlackScholes returns the European option price for p.
func BlackScholes(p Params) (float64, error) {
	if p.Spot <= 0 || p.Strike <= 0 {
		return 0, ErrInvalidParams
	}
	if p.Kind != domain.OptionKindCall && p.Kind != domain.OptionKindPut {
		return 0, fmt.Errorf("pricing: unknown option kind %q", p.Kind)
	}
	if p.Years <= 0 || p.Sigma <= 0 {
		return intrinsic(p), nil
	}

	sqrtT := math.Sqrt(p.Years)
	d1 := (math.Log(p.Spot/p.Strike) + (p.Rate+p.Sigma*p.Sigma/2)*p.Years) / (p.Sigma * sqrtT)
	d2 := d1 - p.Sigma*sqrtT
	discounted := p.Strike * math.Exp(-p.Rate*p.Years)

	if p.Kind == domain.OptionKindCall {
		return p.Spot*normCdf(d1) - discounted*normCdf(d2), nil
	}
	return discounted*normCdf(-d2) - p.Spot*normCdf(-d1), nil
}

func intrinsic(p Params) float64 {
	if p.Kind == domain.OptionKindCall {
		return math.Max(p.Spot-p.Strike, 0)
	}
	return math.Max(p.Strike-p.Spot, 0)
}

func normCdf(x float64) float64 {
	return stats.NormCdf(x, 0, 1)
}

// YearFraction is the calendar-day time from asOf to expiry in years, never
// negative.
func YearFraction(asOf, expiry time.Time) float64 {
	from := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)
	days := to.Sub(from).Hours() / 24
	if days <= 0 {
		return 0
	}
	return days / DaysPerYear
}

// DiscountedParityCall is the call price implied by put-call parity with a
// discounted strike: P + S - K*e^(-rT).
func DiscountedParityCall(put, spot, strike decimal.Decimal, rate, years float64) decimal.Decimal {
	discount := decimal.NewFromFloat(math.Exp(-rate * years))
	return put.Add(spot).Sub(strike.Mul(discount))
}

// ContractPrice prices c with its own implied volatility. ok is false when the
// contract carries no volatility.
func ContractPrice(c domain.OptionContract, spot decimal.Decimal, rate float64, asOf time.Time) (price float64, ok bool, err error) {
	if !c.ImpliedVolatility.Valid {
		return 0, false, nil
	}
	price, err = BlackScholes(Params{
		Spot:   spot.InexactFloat64(),
		Strike: c.Strike.InexactFloat64(),
		Years:  YearFraction(asOf, c.Expiry),
		Rate:   rate,
		Sigma:  c.ImpliedVolatility.Decimal.InexactFloat64(),
		Kind:   c.Kind,
	})
	if err != nil {
		return 0, false, err
	}
	return price, true, nil
}
