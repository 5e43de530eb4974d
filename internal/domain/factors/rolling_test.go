package factors

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/cryptorank/internal/domain/frame"
)

func trendHistories(days int, mutate func(asset string, day int, price float64) float64) map[string][]frame.PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := map[string][]frame.PricePoint{}
	for d := 0; d < days; d++ {
		prices := map[string]float64{
			"alpha": 100 * math.Pow(1.01, float64(d)),
			"beta":  100,
		}
		for asset, p := range prices {
			if mutate != nil {
				p = mutate(asset, d, p)
			}
			out[asset] = append(out[asset], frame.PricePoint{Date: start.AddDate(0, 0, d), Price: p})
		}
	}
	return out
}

func TestRollingEngine_RisingVersusFlat(t *testing.T) {
	pm := frame.BuildPriceMatrix(trendHistories(40, nil))
	panel, err := NewRollingEngine().Compute(pm)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{MomentumLong, LowVolatility, MomentumShortBearish, QualitySharpe}, panel.Names())
	require.NoError(t, panel.CheckShape(pm.Matrix))

	alpha, _ := pm.AssetIndex("alpha")
	beta, _ := pm.AssetIndex("beta")

	mom := panel[MomentumLong]
	bearish := panel[MomentumShortBearish]
	for day := 30; day < 40; day++ {
		assert.InDelta(t, math.Sqrt2/2, mom.At(day, alpha), 1e-9, "day %d", day)
		assert.InDelta(t, -math.Sqrt2/2, mom.At(day, beta), 1e-9, "day %d", day)
		assert.InDelta(t, -math.Sqrt2/2, bearish.At(day, alpha), 1e-9, "bearish factor is reversed on day %d", day)
		assert.InDelta(t, math.Sqrt2/2, bearish.At(day, beta), 1e-9, "day %d", day)
	}
	assert.Equal(t, 0.0, mom.At(10, alpha), "no 30-day history yet")

	for _, name := range panel.Names() {
		m := panel[name]
		for i := 0; i < m.Rows(); i++ {
			for j := 0; j < m.Cols(); j++ {
				v := m.At(i, j)
				require.False(t, math.IsNaN(v), name)
				require.LessOrEqual(t, math.Abs(v), 3.0, name)
			}
		}
	}
}

func TestRollingEngine_RowsNeverSeeLaterDates(t *testing.T) {
	base := frame.BuildPriceMatrix(trendHistories(45, nil))
	shocked := frame.BuildPriceMatrix(trendHistories(45, func(asset string, day int, p float64) float64 {
		if asset == "beta" && day == 44 {
			return p * 3
		}
		return p
	}))

	engine := NewRollingEngine()
	a, err := engine.Compute(base)
	require.NoError(t, err)
	b, err := engine.Compute(shocked)
	require.NoError(t, err)

	for _, name := range a.Names() {
		for i := 0; i < 44; i++ {
			assert.Equal(t, a[name].Row(i), b[name].Row(i), "%s row %d", name, i)
		}
	}
	assert.NotEqual(t, a[MomentumLong].Row(44), b[MomentumLong].Row(44))
}

func TestRollingEngine_EmptyAndInvalid(t *testing.T) {
	panel, err := NewRollingEngine().Compute(frame.BuildPriceMatrix(nil))
	require.NoError(t, err)
	assert.Empty(t, panel)

	latest, err := panel.Latest()
	require.NoError(t, err)
	assert.Zero(t, latest.Len())

	bad := NewRollingEngine()
	bad.VolatilityWindow = 1
	_, err = bad.Compute(frame.BuildPriceMatrix(trendHistories(5, nil)))
	assert.Error(t, err)
}

func TestRollingPanel_Latest(t *testing.T) {
	pm := frame.BuildPriceMatrix(trendHistories(40, nil))
	panel, err := NewRollingEngine().Compute(pm)
	require.NoError(t, err)

	latest, err := panel.Latest()
	require.NoError(t, err)
	require.Equal(t, 2, latest.Len())
	assert.Equal(t, "alpha", latest.Assets()[0].CoinID)

	col, ok := latest.Factor(MomentumLong)
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt2/2, col[0], 1e-9)

	_, err = panel.At(99)
	assert.Error(t, err)
}
