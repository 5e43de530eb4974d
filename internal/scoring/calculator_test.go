package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/cryptorank/internal/domain/factors"
	"github.com/sawpanic/cryptorank/internal/domain/strategy"
)

func twoFactorPanel(t *testing.T, assets []string, mom, vol []float64) *factors.Panel {
	t.Helper()
	refs := make([]factors.AssetRef, len(assets))
	for i, a := range assets {
		refs[i] = factors.AssetRef{CoinID: a, Symbol: a}
	}
	p := factors.NewPanel(refs)
	require.NoError(t, p.Set(factors.MomentumLong, mom))
	require.NoError(t, p.Set(factors.LowVolatility, vol))
	return p
}

func registryWith(t *testing.T, s strategy.Strategy) *strategy.Registry {
	t.Helper()
	r := strategy.NewRegistry()
	require.NoError(t, r.Register(s))
	return r
}

func TestScore_MinMaxAndVerdicts(t *testing.T) {
	panel := twoFactorPanel(t, []string{"x", "y"}, []float64{1, -1}, []float64{0, 0})
	calc := NewCalculator(registryWith(t, strategy.Strategy{
		Name:    "mom",
		Weights: map[string]float64{factors.MomentumLong: 1},
	}))

	scores, err := calc.Score(panel, "mom")
	require.NoError(t, err)
	require.Len(t, scores, 2)

	assert.Equal(t, "x", scores[0].CoinID)
	assert.Equal(t, 100.0, scores[0].Score)
	assert.Equal(t, 1, scores[0].Rank)
	assert.Equal(t, VerdictStrongBuy, scores[0].Verdict)
	assert.Equal(t, factors.MomentumLong, scores[0].PrimaryDriver)

	assert.Equal(t, "y", scores[1].CoinID)
	assert.Equal(t, 0.0, scores[1].Score)
	assert.Equal(t, 2, scores[1].Rank)
	assert.Equal(t, VerdictStrongSell, scores[1].Verdict)
}

func TestScore_FlatUniverseScoresFifty(t *testing.T) {
	panel := twoFactorPanel(t, []string{"b", "a", "c"}, []float64{0.5, 0.5, 0.5}, []float64{0, 0, 0})

	scores, err := ScoreWeights(panel, map[string]float64{factors.MomentumLong: 1})
	require.NoError(t, err)
	for _, s := range scores {
		assert.Equal(t, 50.0, s.Score)
		assert.Equal(t, VerdictNeutral, s.Verdict)
	}
	// exact ties fall back to the coin id
	assert.Equal(t, []string{"a", "b", "c"}, []string{scores[0].CoinID, scores[1].CoinID, scores[2].CoinID})
	assert.Equal(t, []int{1, 2, 3}, []int{scores[0].Rank, scores[1].Rank, scores[2].Rank})
}

func TestScore_PrimaryDriverUsesMagnitude(t *testing.T) {
	panel := twoFactorPanel(t, []string{"a", "b"}, []float64{0.1, 0.2}, []float64{-2, 0.1})

	scores, err := ScoreWeights(panel, map[string]float64{
		factors.MomentumLong:  0.5,
		factors.LowVolatility: 0.5,
	})
	require.NoError(t, err)

	byID := map[string]Score{}
	for _, s := range scores {
		byID[s.CoinID] = s
	}
	assert.Equal(t, factors.LowVolatility, byID["a"].PrimaryDriver, "a large negative contribution still drives the score")
	assert.Equal(t, factors.MomentumLong, byID["b"].PrimaryDriver)
}

func TestScore_MissingFactorsContributeNothing(t *testing.T) {
	panel := twoFactorPanel(t, []string{"a", "b"}, []float64{1, 2}, []float64{0, 0})

	scores, err := ScoreWeights(panel, map[string]float64{
		factors.MomentumLong: 0.5,
		"not_in_panel":       0.5,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scores[0].RawScore, 1e-12)
	assert.Equal(t, factors.MomentumLong, scores[0].PrimaryDriver)
}

func TestScore_UnknownStrategyFallsBack(t *testing.T) {
	panel := twoFactorPanel(t, []string{"a", "b"}, []float64{1, -1}, []float64{1, -1})
	calc := NewCalculator(strategy.NewRegistry())

	scores, err := calc.Score(panel, "nope")
	require.NoError(t, err)
	assert.Equal(t, "a", scores[0].CoinID)
}

func TestScore_EmptyAndNil(t *testing.T) {
	scores, err := ScoreWeights(factors.NewPanel(nil), map[string]float64{"a": 1})
	require.NoError(t, err)
	assert.Empty(t, scores)

	_, err = ScoreWeights(nil, map[string]float64{"a": 1})
	assert.Error(t, err)
}

func TestDualScore(t *testing.T) {
	panel := twoFactorPanel(t, []string{"a", "b", "c"}, []float64{1, 0, -1}, []float64{-1, 0, 1})
	r := strategy.NewRegistry()
	require.NoError(t, r.Register(strategy.Strategy{Name: "long", Weights: map[string]float64{factors.MomentumLong: 1}}))
	require.NoError(t, r.Register(strategy.Strategy{Name: "short", Weights: map[string]float64{factors.LowVolatility: 1}}))

	dual, err := NewCalculator(r).DualScore(context.Background(), panel, "long", "short")
	require.NoError(t, err)
	assert.Equal(t, "a", dual.Long[0].CoinID)
	assert.Equal(t, "c", dual.Short[0].CoinID)
	assert.Equal(t, "long", dual.LongStrategy)
}

func TestVerdictBins(t *testing.T) {
	cases := map[float64]Verdict{
		0:     VerdictStrongSell,
		20:    VerdictStrongSell,
		20.01: VerdictSell,
		40:    VerdictSell,
		60:    VerdictNeutral,
		80:    VerdictBuy,
		80.5:  VerdictStrongBuy,
		100:   VerdictStrongBuy,
	}
	for score, want := range cases {
		assert.Equal(t, want, VerdictFor(score), "score %v", score)
	}
}

func TestTopAssets(t *testing.T) {
	scores := []Score{
		{CoinID: "a", Score: 90},
		{CoinID: "b", Score: 70},
		{CoinID: "c", Score: 65},
		{CoinID: "d", Score: 10},
	}

	top := TopAssets(scores, 2, 60)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[1].CoinID)

	assert.Len(t, TopAssets(scores, 10, 60), 3)
	assert.Empty(t, TopAssets(scores, 0, 0))
}
