package factors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshots() []AssetSnapshot {
	return []AssetSnapshot{
		{CoinID: "bitcoin", Symbol: "BTC", Sector: "L1", MarketCap: 1.2e12, Return30d: Float(0.10), Return7d: Float(0.02), Volatility30d: Float(0.45), Sharpe90d: Float(1.1), CorrelationBTC: Float(1)},
		{CoinID: "uniswap", Symbol: "UNI", Sector: "DeFi", MarketCap: 5e9, Return30d: Float(0.25), Return7d: Float(0.08), Volatility30d: Float(0.9), Sharpe90d: Float(0.7), TVL: Float(4e9), DeveloperScore: Float(80)},
		{CoinID: "pepe", Symbol: "PEPE", Sector: "Meme", MarketCap: 3e9, Return30d: Float(-0.30), Volatility30d: Float(1.6), NVT: Float(120)},
	}
}

func TestBuilder_BuildsEveryDefinition(t *testing.T) {
	panel, err := NewBuilder(DefaultNormalizer()).Build(sampleSnapshots())
	require.NoError(t, err)
	require.Equal(t, 3, panel.Len())

	for _, def := range DefaultDefinitions() {
		col, ok := panel.Factor(def.Name)
		require.True(t, ok, def.Name)
		require.Len(t, col, 3)
		for _, v := range col {
			assert.False(t, math.IsNaN(v), def.Name)
			assert.LessOrEqual(t, math.Abs(v), 3.0, def.Name)
		}
	}

	mom, _ := panel.Factor(MomentumLong)
	assert.Greater(t, mom[1], mom[0])
	assert.Less(t, mom[2], mom[0])

	lowVol, _ := panel.Factor(LowVolatility)
	highVol, _ := panel.Factor(HighVolatility)
	for i := range lowVol {
		assert.InDelta(t, -highVol[i], lowVol[i], 1e-12)
	}

	cat, _ := panel.Factor(CategoryAdvantage)
	assert.Greater(t, cat[1], cat[0], "DeFi premium above L1")
}

func TestBuilder_MissingOptionalTakesMedian(t *testing.T) {
	panel, err := NewBuilder(DefaultNormalizer()).Build(sampleSnapshots())
	require.NoError(t, err)

	// pepe has no 7d return; the median fill lands it on the column mean
	short, _ := panel.Factor(MomentumShortBearish)
	assert.InDelta(t, 0, short[2], 1e-9)
	assert.Greater(t, short[0], short[1], "bearish momentum is reversed")
}

func TestBuilder_PanickingExtractorDropsOnlyThatAsset(t *testing.T) {
	explode := Definition{
		Name: "explode",
		Extract: func(s AssetSnapshot) (float64, bool) {
			if s.CoinID == "pepe" {
				panic("bad record")
			}
			return s.MarketCap, true
		},
	}

	panel, err := NewBuilder(DefaultNormalizer(), explode).Build(sampleSnapshots())
	require.NoError(t, err)
	require.Equal(t, 2, panel.Len())
	assert.Equal(t, "bitcoin", panel.Assets()[0].CoinID)
	assert.Equal(t, "uniswap", panel.Assets()[1].CoinID)
	assert.True(t, panel.Has("explode"))
}

func TestBuilder_EmptyInput(t *testing.T) {
	panel, err := NewBuilder(DefaultNormalizer()).Build(nil)
	require.NoError(t, err)
	assert.Zero(t, panel.Len())
	assert.Empty(t, panel.Names())
}

func TestPanel_SetEnforcesInvariant(t *testing.T) {
	p := NewPanel([]AssetRef{{CoinID: "a"}, {CoinID: "b"}, {CoinID: "c"}})

	require.NoError(t, p.Set("f", []float64{math.NaN(), 7, -math.Inf(1)}))
	col, _ := p.Factor("f")
	assert.Equal(t, []float64{0, 3, 0}, col)

	assert.Error(t, p.Set("g", []float64{1}))
	assert.Equal(t, 0.0, p.Value(0, "missing"))
}
