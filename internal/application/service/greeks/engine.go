package greeks

import (
	"errors"
	"math"

	ticker "main/internal/domain/entity/ticker"
)

var (
	ErrInvalidSpot   = errors.New("spot must be positive")
	ErrInvalidStrike = errors.New("strike must be positive")
	ErrInvalidSide   = errors.New("side must be call or put")
)

// minVolatility keeps the model defined when the feed reports a zero or
// negative implied volatility.
const minVolatility = 1e-4

const (
	daysPerYear         = 365.0
	rhoPerPercentScale  = 100.0
	sqrtTwo             = math.Sqrt2
	expiredCallDeltaITM = 1.0
	expiredPutDeltaITM  = -1.0
)

// Input is one pricing request. TimeToExpiry is in years.
type Input struct {
	Spot         float64
	Strike       float64
	TimeToExpiry float64
	Rate         float64
	Volatility   float64
	Side         ticker.Kind
}

// Compute prices one European option with Black-Scholes and returns the full
// sensitivity set. It is a pure function: no state, no caching.
func Compute(in Input) (ticker.Greeks, error) {
	if in.Spot <= 0 {
		return ticker.Greeks{}, ErrInvalidSpot
	}
	if in.Strike <= 0 {
		return ticker.Greeks{}, ErrInvalidStrike
	}
	if in.Side != ticker.KindCall && in.Side != ticker.KindPut {
		return ticker.Greeks{}, ErrInvalidSide
	}

	intrinsic := intrinsicValue(in)
	if in.TimeToExpiry <= 0 {
		return expiredGreeks(in, intrinsic), nil
	}

	sigma := in.Volatility
	if sigma < minVolatility {
		sigma = minVolatility
	}

	sqrtT := math.Sqrt(in.TimeToExpiry)
	d1 := (math.Log(in.Spot/in.Strike) + (in.Rate+sigma*sigma/2)*in.TimeToExpiry) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	discount := math.Exp(-in.Rate * in.TimeToExpiry)

	var price, delta, theta, rho float64
	switch in.Side {
	case ticker.KindCall:
		price = in.Spot*normCDF(d1) - in.Strike*discount*normCDF(d2)
		delta = normCDF(d1)
		theta = -in.Spot*normPDF(d1)*sigma/(2*sqrtT) - in.Rate*in.Strike*discount*normCDF(d2)
		rho = in.Strike * in.TimeToExpiry * discount * normCDF(d2)
	case ticker.KindPut:
		price = in.Strike*discount*normCDF(-d2) - in.Spot*normCDF(-d1)
		delta = normCDF(d1) - 1
		theta = -in.Spot*normPDF(d1)*sigma/(2*sqrtT) + in.Rate*in.Strike*discount*normCDF(-d2)
		rho = -in.Strike * in.TimeToExpiry * discount * normCDF(-d2)
	}

	gamma := normPDF(d1) / (in.Spot * sigma * sqrtT)
	vega := in.Spot * normPDF(d1) * sqrtT

	extrinsic := price - intrinsic
	if extrinsic < 0 {
		extrinsic = 0
	}

	return ticker.Greeks{
		Delta:       delta,
		Gamma:       gamma,
		ThetaAnnual: theta,
		ThetaDaily:  theta / daysPerYear,
		Vega:        vega,
		RhoAnnual:   rho,
		RhoPercent:  rho / rhoPerPercentScale,
		Intrinsic:   intrinsic,
		Extrinsic:   extrinsic,
		ModelPrice:  price,
	}, nil
}

func intrinsicValue(in Input) float64 {
	switch in.Side {
	case ticker.KindCall:
		return math.Max(in.Spot-in.Strike, 0)
	case ticker.KindPut:
		return math.Max(in.Strike-in.Spot, 0)
	default:
		return 0
	}
}

// expiredGreeks collapses the model at expiry: price equals intrinsic value
// and delta is a step function of moneyness.
func expiredGreeks(in Input, intrinsic float64) ticker.Greeks {
	var delta float64
	if intrinsic > 0 {
		if in.Side == ticker.KindCall {
			delta = expiredCallDeltaITM
		} else {
			delta = expiredPutDeltaITM
		}
	}
	return ticker.Greeks{
		Delta:      delta,
		Intrinsic:  intrinsic,
		ModelPrice: intrinsic,
	}
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/sqrtTwo)
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
