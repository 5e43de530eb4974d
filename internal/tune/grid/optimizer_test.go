package grid

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/cryptorank/internal/backtest/vector"
	"github.com/sawpanic/cryptorank/internal/domain/factors"
	"github.com/sawpanic/cryptorank/internal/domain/frame"
	"github.com/sawpanic/cryptorank/internal/domain/strategy"
)

type fakeEvaluator struct {
	fail func(map[string]float64) bool
}

func (f fakeEvaluator) Quick(_ factors.RollingPanel, w map[string]float64) (vector.Stats, error) {
	if f.fail != nil && f.fail(w) {
		return vector.Stats{}, errors.New("boom")
	}
	return vector.Stats{
		Sharpe:      w[factors.MomentumLong],
		TotalReturn: w[factors.LowVolatility],
		MaxDrawdown: -w[factors.QualitySharpe],
	}, nil
}

func TestCandidates_DefaultGrid(t *testing.T) {
	candidates, err := DefaultGrid().Candidates()
	require.NoError(t, err)
	require.Len(t, candidates, 21)

	for _, w := range candidates {
		sum := 0.0
		for _, v := range w {
			sum += v
			assert.True(t, v >= 0 && v <= 1)
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
	assert.Equal(t, 1.0, candidates[0][factors.QualitySharpe])
	assert.Equal(t, 1.0, candidates[len(candidates)-1][factors.MomentumLong])
}

func TestCandidates_WideSumWindow(t *testing.T) {
	g := Grid{Factors: []string{"a", "b"}, Step: 0.5, MinSum: 0, MaxSum: 2}
	candidates, err := g.Candidates()
	require.NoError(t, err)
	assert.Len(t, candidates, 9)
}

func TestCandidates_InvalidGrid(t *testing.T) {
	for _, g := range []Grid{
		{Step: 0.2, MaxSum: 1},
		{Factors: []string{"a"}, Step: 0, MaxSum: 1},
		{Factors: []string{"a"}, Step: 0.2, MinSum: 2, MaxSum: 1},
		{Factors: []string{"a", "a"}, Step: 0.2, MaxSum: 1},
	} {
		_, err := g.Candidates()
		assert.Error(t, err)
	}
}

func TestSearch_Leaderboards(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultOptimizerConfig()
	cfg.Workers = 4
	cfg.Out = &out

	report, err := NewOptimizer(fakeEvaluator{}, cfg).Search(context.Background(), nil, DefaultGrid())
	require.NoError(t, err)

	assert.Len(t, report.Evaluations, 21)
	require.Len(t, report.BySharpe, 5)
	require.Len(t, report.ByReturn, 5)
	assert.Equal(t, 1.0, report.BySharpe[0].Weights[factors.MomentumLong])
	assert.Equal(t, 1.0, report.ByReturn[0].Weights[factors.LowVolatility])

	// ties keep candidate order: (0.8, 0, 0.2) before (0.8, 0.2, 0)
	assert.Equal(t, 0.0, report.BySharpe[1].Weights[factors.LowVolatility])
	assert.InDelta(t, 0.2, report.BySharpe[2].Weights[factors.LowVolatility], 1e-12)

	for i := 1; i < len(report.BySharpe); i++ {
		assert.GreaterOrEqual(t, report.BySharpe[i-1].Stats.Sharpe, report.BySharpe[i].Stats.Sharpe)
	}
	assert.Zero(t, report.Failed)
}

func TestSearch_FailedCandidatesAreSkipped(t *testing.T) {
	eval := fakeEvaluator{fail: func(w map[string]float64) bool { return w[factors.MomentumLong] == 1 }}
	report, err := NewOptimizer(eval, DefaultOptimizerConfig()).Search(context.Background(), nil, DefaultGrid())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "boom", report.Evaluations[20].Error)
	assert.InDelta(t, 0.8, report.BySharpe[0].Weights[factors.MomentumLong], 1e-12)
}

func TestSearch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOptimizer(fakeEvaluator{}, DefaultOptimizerConfig()).Search(ctx, nil, DefaultGrid())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_WithBacktestEngine(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	histories := map[string][]frame.PricePoint{}
	for j, id := range []string{"bitcoin", "ethereum", "solana", "cardano", "polkadot", "tron"} {
		p := 100.0
		for d := 0; d < 120; d++ {
			p *= 1 + 0.0005*float64(j-2) + 0.02*math.Sin(float64(d)*0.3+float64(j))
			histories[id] = append(histories[id], frame.PricePoint{Date: start.AddDate(0, 0, d), Price: p})
		}
	}
	pm := frame.BuildPriceMatrix(histories)
	panels, err := factors.NewRollingEngine().Compute(pm)
	require.NoError(t, err)

	engine := vector.NewEngine(pm, strategy.NewRegistry(), vector.DefaultParams())
	report, err := NewOptimizer(engine, DefaultOptimizerConfig()).Search(context.Background(), panels, DefaultGrid())
	require.NoError(t, err)

	assert.Len(t, report.Evaluations, 21)
	assert.Len(t, report.BySharpe, 5)
	for _, e := range report.Evaluations {
		assert.Empty(t, e.Error)
		assert.False(t, math.IsNaN(e.Stats.Sharpe))
	}
}
