package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeStats(t *testing.T) {
	returns := []float64{0, 0.1, -0.5}
	s := ComputeStats(returns, 365)

	assert.InDelta(t, -0.45, s.TotalReturn, 1e-12)
	assert.InDelta(t, -0.5, s.MaxDrawdown, 1e-12)
	assert.InDelta(t, math.Pow(0.55, 365.0/3)-1, s.CAGR, 1e-12)

	mean := (0 + 0.1 - 0.5) / 3
	variance := (mean*mean + (0.1-mean)*(0.1-mean) + (-0.5-mean)*(-0.5-mean)) / 2
	assert.InDelta(t, math.Sqrt(variance)*math.Sqrt(365), s.Volatility, 1e-12)
	assert.InDelta(t, mean/math.Sqrt(variance)*math.Sqrt(365), s.Sharpe, 1e-12)
}

func TestComputeStats_Degenerate(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil, 365))

	flat := ComputeStats([]float64{0, 0, 0, 0}, 365)
	assert.Equal(t, 0.0, flat.Sharpe)
	assert.Equal(t, 0.0, flat.Volatility)
	assert.Equal(t, 0.0, flat.MaxDrawdown)
	assert.Equal(t, 0.0, flat.TotalReturn)

	wiped := ComputeStats([]float64{0, -1}, 365)
	assert.Equal(t, -1.0, wiped.CAGR)
}

func TestEquityAndDrawdown(t *testing.T) {
	eq := Equity([]float64{0.5, -0.5, 1})
	assert.InDeltaSlice(t, []float64{1.5, 0.75, 1.5}, eq, 1e-12)
	assert.InDelta(t, -0.5, MaxDrawdown(eq), 1e-12)
	assert.Nil(t, Equity(nil))
}
