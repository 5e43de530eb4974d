package regime

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/cryptorank/internal/domain/frame"
)

func growth(n int, daily float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 * math.Pow(1+daily, float64(i))
	}
	return out
}

func TestDetect_InsufficientHistory(t *testing.T) {
	v := NewDetector(DefaultConfig()).Detect(growth(29, 0.01), nil)

	assert.Equal(t, Neutral, v.Regime)
	assert.Equal(t, "balanced", v.SuggestedStrategy)
	assert.Contains(t, v.Details.Reason, "insufficient")
}

func TestDetect_CrashIsBear(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100
	}
	prices[len(prices)-1] = 80

	v := NewDetector(DefaultConfig()).Detect(prices, &Sentiment{Value: 10, Classification: "Extreme Fear"})
	assert.Equal(t, Bear, v.Regime)
	assert.Equal(t, "bear_defense", v.SuggestedStrategy)
	assert.InDelta(t, -0.20, v.Details.Change30d, 1e-12)
	assert.Contains(t, v.Details.Reason, "extreme fear")
}

func TestDetect_Bull(t *testing.T) {
	d := NewDetector(DefaultConfig())

	strong := d.Detect(growth(60, 0.01), nil)
	assert.Equal(t, Bull, strong.Regime)
	assert.Equal(t, "bull_run", strong.SuggestedStrategy)
	assert.True(t, strong.Details.AboveSMA)
	assert.Equal(t, 50, strong.Details.SentimentValue)

	weak := d.Detect(growth(60, 0.0005), nil)
	assert.Equal(t, Bull, weak.Regime)
	assert.Equal(t, "balanced", weak.SuggestedStrategy, "growth under 3% keeps the balanced book")

	greedy := d.Detect(growth(60, 0.01), &Sentiment{Value: 91, Classification: "Extreme Greed"})
	assert.Equal(t, Bull, greedy.Regime)
	assert.Contains(t, greedy.Details.Reason, "extreme greed")
}

func TestDetect_DipBuyNeedsFear(t *testing.T) {
	prices := make([]float64, 50)
	for i := range prices {
		switch {
		case i < 20:
			prices[i] = 100
		case i == 20:
			prices[i] = 130
		default:
			prices[i] = 120
		}
	}
	d := NewDetector(DefaultConfig())

	fearful := d.Detect(prices, &Sentiment{Value: 30, Classification: "Fear"})
	assert.Equal(t, DipBuy, fearful.Regime)
	assert.Equal(t, "bull_run", fearful.SuggestedStrategy)
	assert.InDelta(t, 112.2, fearful.Details.SMA, 1e-9)

	calm := d.Detect(prices, nil)
	assert.Equal(t, Neutral, calm.Regime)
	assert.Equal(t, "balanced", calm.SuggestedStrategy)
}

func TestDetect_BelowSMAAndFallingIsBear(t *testing.T) {
	v := NewDetector(DefaultConfig()).Detect(growth(60, -0.002), nil)
	assert.Equal(t, Bear, v.Regime)
	assert.False(t, v.Details.AboveSMA)
}

func TestBenchmarkSeries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	histories := map[string][]frame.PricePoint{
		"BTC": {
			{Date: start.AddDate(0, 0, 2), Price: 3},
			{Date: start, Price: 1},
			{Date: start.AddDate(0, 0, 1), Price: 2},
		},
		"eth": {{Date: start, Price: 9}},
	}

	series, id, ok := BenchmarkSeries(histories)
	require.True(t, ok)
	assert.Equal(t, "BTC", id)
	assert.Equal(t, []float64{1, 2, 3}, series)

	_, _, ok = BenchmarkSeries(histories, "solana")
	assert.False(t, ok)

	series, id, ok = BenchmarkSeries(histories, "eth")
	require.True(t, ok)
	assert.Equal(t, "eth", id)
	assert.Equal(t, []float64{9}, series)
}
