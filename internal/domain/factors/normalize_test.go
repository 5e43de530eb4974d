package factors

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_DegenerateInputsAreZero(t *testing.T) {
	n := DefaultNormalizer()

	assert.Empty(t, n.Normalize(nil, false))
	assert.Equal(t, []float64{0, 0, 0}, n.Normalize([]float64{math.NaN(), math.NaN(), math.NaN()}, false))
	assert.Equal(t, []float64{0, 0, 0}, n.Normalize([]float64{0.1, 0.1, 0.1}, false))
	assert.Equal(t, []float64{0}, n.Normalize([]float64{42}, true))
}

func TestNormalize_FillsMedianAndWinsorizes(t *testing.T) {
	n := DefaultNormalizer()

	// median fill turns NaN into 2; 1%/99% bounds pull 1 and 3 to 1.02 and 2.98
	z := n.Normalize([]float64{1, 2, 3, math.NaN()}, false)
	require.Len(t, z, 4)
	assert.InDelta(t, -math.Sqrt2, z[0], 1e-9)
	assert.InDelta(t, 0, z[1], 1e-9)
	assert.InDelta(t, math.Sqrt2, z[2], 1e-9)
	assert.InDelta(t, 0, z[3], 1e-9)

	reversed := n.Normalize([]float64{1, 2, 3, math.NaN()}, true)
	for i := range z {
		assert.InDelta(t, -z[i], reversed[i], 1e-12)
	}
}

func TestNormalize_Clips(t *testing.T) {
	n := Normalizer{Clip: 1, LowerPercentile: 0, UpperPercentile: 1}

	z := n.Normalize([]float64{0, 0, 0, 0, 10}, false)
	assert.Equal(t, 1.0, z[4])
	assert.InDelta(t, -0.5, z[0], 1e-12)
}

func TestNormalize_OutputAlwaysBoundedAndFinite(t *testing.T) {
	n := DefaultNormalizer()
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		values := make([]float64, 1+rng.Intn(200))
		for i := range values {
			switch rng.Intn(10) {
			case 0:
				values[i] = math.NaN()
			case 1:
				values[i] = rng.NormFloat64() * 1e6
			default:
				values[i] = rng.NormFloat64()
			}
		}
		for _, z := range n.Normalize(values, trial%2 == 0) {
			require.False(t, math.IsNaN(z))
			require.LessOrEqual(t, math.Abs(z), 3.0)
		}
	}
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	assert.Equal(t, 2.5, Quantile(sorted, 0.5))
	assert.Equal(t, 1.0, Quantile(sorted, 0))
	assert.Equal(t, 4.0, Quantile(sorted, 1))
	assert.InDelta(t, 1.03, Quantile(sorted, 0.01), 1e-12)
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}
