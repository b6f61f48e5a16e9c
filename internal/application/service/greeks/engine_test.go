package greeks

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ticker "main/internal/domain/entity/ticker"
)

func TestComputeATMCall(t *testing.T) {
	got, err := Compute(Input{
		Spot:         24000,
		Strike:       24000,
		TimeToExpiry: 30.0 / 365,
		Rate:         0.065,
		Volatility:   0.15,
		Side:         ticker.KindCall,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, got.Delta, 0.1, "ATM call delta should be near 0.5")
	assert.Greater(t, got.ModelPrice, 0.0)
	assert.Greater(t, got.Gamma, 0.0)
	assert.Greater(t, got.Vega, 0.0)
	assert.Less(t, got.ThetaAnnual, 0.0)
	assert.Greater(t, got.RhoAnnual, 0.0)
	assert.Equal(t, 0.0, got.Intrinsic)
	assert.InDelta(t, got.ModelPrice, got.Extrinsic, 1e-9, "ATM extrinsic equals model price")
	assert.InDelta(t, got.ThetaAnnual/365, got.ThetaDaily, 1e-12)
	assert.InDelta(t, got.RhoAnnual/100, got.RhoPercent, 1e-12)
}

func TestComputePutCallParity(t *testing.T) {
	in := Input{
		Spot:         24000,
		Strike:       23500,
		TimeToExpiry: 45.0 / 365,
		Rate:         0.065,
		Volatility:   0.18,
	}

	in.Side = ticker.KindCall
	call, err := Compute(in)
	require.NoError(t, err)

	in.Side = ticker.KindPut
	put, err := Compute(in)
	require.NoError(t, err)

	// C - P = S - K*e^(-rT)
	lhs := call.ModelPrice - put.ModelPrice
	rhs := in.Spot - in.Strike*math.Exp(-in.Rate*in.TimeToExpiry)
	assert.InDelta(t, rhs, lhs, 1e-6)

	// Gamma and vega do not depend on the side.
	assert.InDelta(t, call.Gamma, put.Gamma, 1e-12)
	assert.InDelta(t, call.Vega, put.Vega, 1e-9)
	assert.InDelta(t, 1.0, call.Delta-put.Delta, 1e-9)
}

func TestComputeExpiredCollapsesToIntrinsic(t *testing.T) {
	itm, err := Compute(Input{
		Spot:         24200,
		Strike:       24000,
		TimeToExpiry: 0,
		Rate:         0.065,
		Volatility:   0.2,
		Side:         ticker.KindCall,
	})
	require.NoError(t, err)
	assert.Equal(t, 200.0, itm.ModelPrice)
	assert.Equal(t, 1.0, itm.Delta)
	assert.Equal(t, 0.0, itm.Vega)

	otm, err := Compute(Input{
		Spot:         23800,
		Strike:       24000,
		TimeToExpiry: 0,
		Rate:         0.065,
		Volatility:   0.2,
		Side:         ticker.KindCall,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, otm.ModelPrice)
	assert.Equal(t, 0.0, otm.Delta)
}

func TestComputeZeroVolatilityFloored(t *testing.T) {
	got, err := Compute(Input{
		Spot:         24000,
		Strike:       22000,
		TimeToExpiry: 7.0 / 365,
		Rate:         0.065,
		Volatility:   0,
		Side:         ticker.KindCall,
	})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(got.ModelPrice))
	assert.InDelta(t, 1.0, got.Delta, 0.01, "deep ITM call with floored vol pins delta to 1")
}

func TestComputeRejectsInvalidInputs(t *testing.T) {
	_, err := Compute(Input{Spot: 0, Strike: 24000, Side: ticker.KindCall})
	assert.ErrorIs(t, err, ErrInvalidSpot)

	_, err = Compute(Input{Spot: 24000, Strike: -1, Side: ticker.KindPut})
	assert.ErrorIs(t, err, ErrInvalidStrike)

	_, err = Compute(Input{Spot: 24000, Strike: 24000, Side: ticker.KindUnderlying})
	assert.ErrorIs(t, err, ErrInvalidSide)
}
