package frame

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestBuildPriceMatrix_AlignsAndForwardFills(t *testing.T) {
	histories := map[string][]PricePoint{
		"solana": {
			{Date: day(1), Price: 10},
			{Date: day(3), Price: 12},
		},
		"bitcoin": {
			{Date: day(0), Price: 100},
			{Date: day(1), Price: 101},
			{Date: day(2), Price: 102},
			{Date: day(3), Price: 103},
		},
	}

	pm := BuildPriceMatrix(histories)
	require.False(t, pm.Empty())

	assert.Equal(t, []string{"bitcoin", "solana"}, pm.Assets())
	require.Equal(t, 4, pm.Rows())
	for i := 1; i < pm.Rows(); i++ {
		assert.True(t, pm.Dates()[i].After(pm.Dates()[i-1]), "dates must ascend")
	}

	sol, ok := pm.Column("solana")
	require.True(t, ok)
	assert.True(t, math.IsNaN(sol[0]), "no back-fill before the first observation")
	assert.Equal(t, 10.0, sol[1])
	assert.Equal(t, 10.0, sol[2], "gap is forward-filled")
	assert.Equal(t, 12.0, sol[3])
}

func TestBuildPriceMatrix_DeduplicatesDays(t *testing.T) {
	histories := map[string][]PricePoint{
		"eth": {
			{Date: day(0).Add(2 * time.Hour), Price: 1},
			{Date: day(0).Add(20 * time.Hour), Price: 2},
			{Date: day(1), Price: 3},
		},
	}

	pm := BuildPriceMatrix(histories)
	require.Equal(t, 2, pm.Rows())

	col, _ := pm.Column("eth")
	assert.Equal(t, []float64{2, 3}, col, "last observation of a day wins")
}

func TestBuildPriceMatrix_SkipsUnusableHistories(t *testing.T) {
	histories := map[string][]PricePoint{
		"empty": nil,
		"bad":   {{Date: day(0), Price: 0}, {Date: day(1), Price: math.NaN()}},
	}

	pm := BuildPriceMatrix(histories)
	assert.True(t, pm.Empty())
	assert.False(t, pm.HasOverlap())
}

func TestPriceMatrix_HasOverlap(t *testing.T) {
	disjoint := BuildPriceMatrix(map[string][]PricePoint{
		"a": {{Date: day(0), Price: 1}},
		"b": {{Date: day(5), Price: 1}},
	})
	// forward fill makes "a" priced on day 5 as well
	assert.True(t, disjoint.HasOverlap())

	single := BuildPriceMatrix(map[string][]PricePoint{
		"a": {{Date: day(0), Price: 1}},
	})
	assert.True(t, single.HasOverlap())
}

func TestMatrix_PctChangeAndLogReturns(t *testing.T) {
	pm := BuildPriceMatrix(map[string][]PricePoint{
		"x": {
			{Date: day(0), Price: 100},
			{Date: day(1), Price: 110},
			{Date: day(2), Price: 121},
		},
	})

	ret := pm.DailyReturns()
	assert.True(t, math.IsNaN(ret.At(0, 0)))
	assert.InDelta(t, 0.10, ret.At(1, 0), 1e-12)
	assert.InDelta(t, 0.10, ret.At(2, 0), 1e-12)

	two := pm.PctChange(2)
	assert.InDelta(t, 0.21, two.At(2, 0), 1e-12)

	lr := pm.LogReturns()
	assert.InDelta(t, math.Log(1.1), lr.At(1, 0), 1e-12)
}

func TestMatrix_RollingStdNeedsFullWindow(t *testing.T) {
	m := NewMatrix([]time.Time{day(0), day(1), day(2), day(3)}, []string{"x"})
	m.Set(0, 0, math.NaN())
	m.Set(1, 0, 1)
	m.Set(2, 0, 2)
	m.Set(3, 0, 3)

	std := m.RollingStd(2)
	assert.True(t, math.IsNaN(std.At(1, 0)), "window containing a gap is missing")
	assert.InDelta(t, math.Sqrt(0.5), std.At(2, 0), 1e-12)
	assert.InDelta(t, math.Sqrt(0.5), std.At(3, 0), 1e-12)
}

func TestMatrix_ZipRejectsShapeMismatch(t *testing.T) {
	a := NewMatrix([]time.Time{day(0)}, []string{"x"})
	b := NewMatrix([]time.Time{day(0)}, []string{"y"})

	_, err := a.Zip(b, func(x, y float64) float64 { return x + y })
	assert.ErrorIs(t, err, ErrShape)

	c := a.Clone()
	c.Set(0, 0, 4)
	a.Set(0, 0, 1)
	sum, err := a.Zip(c, func(x, y float64) float64 { return x + y })
	require.NoError(t, err)
	assert.Equal(t, 5.0, sum.At(0, 0))
}
