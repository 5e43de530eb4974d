package vector

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptorank/internal/domain/factors"
	"github.com/sawpanic/cryptorank/internal/domain/frame"
	"github.com/sawpanic/cryptorank/internal/domain/strategy"
)

// StrategySource resolves a strategy name to its weights
type StrategySource interface {
	Get(name string) strategy.Strategy
}

// Engine replays factor strategies over a fixed price history
type Engine struct {
	prices     *frame.PriceMatrix
	returns    *frame.Matrix
	strategies StrategySource
	params     Params
}

// NewEngine creates a backtest engine over prices. Daily returns are derived
// once and shared by every run.
func NewEngine(prices *frame.PriceMatrix, strategies StrategySource, params Params) *Engine {
	e := &Engine{prices: prices, strategies: strategies, params: params}
	if prices != nil {
		e.returns = prices.DailyReturns()
	}
	return e
}

// Params returns the engine defaults
func (e *Engine) Params() Params { return e.params }

// Run backtests a registered strategy with the given rebalance period and
// portfolio size; fees and the benchmark come from the engine defaults
func (e *Engine) Run(panels factors.RollingPanel, strategyName string, rebalanceDays, topN int) (*Result, error) {
	s := e.strategies.Get(strategyName)
	p := e.params
	p.RebalanceDays = rebalanceDays
	p.TopN = topN

	result, err := e.RunWeights(panels, s.Weights, p)
	if err != nil {
		return nil, fmt.Errorf("backtest %s: %w", s.Name, err)
	}
	result.Strategy = s.Name
	return result, nil
}

// Quick runs the fee-free weekly top 5 backtest used by weight search and
// returns only the stats
func (e *Engine) Quick(panels factors.RollingPanel, weights map[string]float64) (Stats, error) {
	result, err := e.RunWeights(panels, weights, QuickParams())
	if err != nil {
		return Stats{}, err
	}
	return result.Stats, nil
}

// RunWeights backtests an explicit weight vector. Positions chosen with day
// T's scores earn returns from day T+1 on, and so do the fees for trading
// into them.
func (e *Engine) RunWeights(panels factors.RollingPanel, weights map[string]float64, p Params) (*Result, error) {
	if p.RebalanceDays < 1 || p.TopN < 1 {
		return nil, fmt.Errorf("invalid backtest params: rebalance every %d days into top %d", p.RebalanceDays, p.TopN)
	}
	empty := &Result{Params: p, Weights: weights}

	if e.prices == nil || e.prices.Empty() {
		log.Error().Msg("backtest has no price history")
		return empty, nil
	}
	if !e.prices.HasOverlap() {
		log.Error().Int("assets", e.prices.Cols()).Msg("backtest price histories never overlap")
		return empty, nil
	}
	if err := panels.CheckShape(e.prices.Matrix); err != nil {
		return nil, err
	}

	score, used := e.combinedScore(panels, weights)
	if len(used) == 0 {
		log.Error().Interface("weights", weights).Msg("no strategy factor is available as a rolling factor")
		return empty, nil
	}

	rows, cols := e.prices.Rows(), e.prices.Cols()
	positions, rebalances := e.positions(score, p)

	strat := make([]float64, rows)
	turnover := make([]float64, rows)
	net := make([]float64, rows)
	prev := make([]float64, cols)
	for t := 0; t < rows; t++ {
		for j := 0; j < cols; j++ {
			turnover[t] += math.Abs(positions[t][j] - prev[j])
		}
		prev = positions[t]

		if t == 0 {
			continue
		}
		for j := 0; j < cols; j++ {
			r := e.returns.At(t, j)
			if math.IsNaN(r) {
				continue
			}
			strat[t] += positions[t-1][j] * r
		}
		net[t] = strat[t] - turnover[t-1]*p.FeeRate
	}

	benchAsset, benchCol := e.benchmark(p.Benchmark)
	bench := make([]float64, rows)
	for t := 1; t < rows; t++ {
		if r := e.returns.At(t, benchCol); !math.IsNaN(r) {
			bench[t] = r
		}
	}

	dates := e.prices.Dates()
	result := &Result{
		Weights:        weights,
		Params:         p,
		Start:          dates[0],
		End:            dates[rows-1],
		Days:           rows,
		Rebalances:     rebalances,
		Stats:          ComputeStats(net, p.AnnualizationDays),
		BenchmarkAsset: benchAsset,
		BenchmarkStats: ComputeStats(bench, p.AnnualizationDays),
	}
	for _, v := range turnover {
		result.TotalTurnover += v
	}
	if !p.SkipCurves {
		result.DailyReturns = net
		result.EquityCurve = curve(dates, Equity(net))
		result.BenchmarkCurve = curve(dates, Equity(bench))
	}

	log.Debug().
		Strs("factors", used).
		Int("days", rows).
		Int("rebalances", rebalances).
		Float64("total_return", result.Stats.TotalReturn).
		Float64("sharpe", result.Stats.Sharpe).
		Msg("backtest finished")
	return result, nil
}

// combinedScore sums weight × z-score per cell. Cells without a price stay
// missing so they can never be picked.
func (e *Engine) combinedScore(panels factors.RollingPanel, weights map[string]float64) (*frame.Matrix, []string) {
	names := make([]string, 0, len(weights))
	for f := range weights {
		names = append(names, f)
	}
	sort.Strings(names)

	used := make([]string, 0, len(names))
	for _, f := range names {
		if _, ok := panels[f]; ok {
			used = append(used, f)
		} else {
			log.Debug().Str("factor", f).Msg("factor has no rolling history, skipped in backtest")
		}
	}

	score := e.prices.Map(func(price float64) float64 {
		if math.IsNaN(price) {
			return math.NaN()
		}
		return 0
	})
	for i := 0; i < score.Rows(); i++ {
		for j := 0; j < score.Cols(); j++ {
			if math.IsNaN(score.At(i, j)) {
				continue
			}
			v := 0.0
			for _, f := range used {
				v += weights[f] * panels[f].At(i, j)
			}
			score.Set(i, j, v)
		}
	}
	return score, used
}

// positions picks the top N scored assets on every rebalance row at 1/N each
// and holds them until the next rebalance. Assets that drop out go to zero.
func (e *Engine) positions(score *frame.Matrix, p Params) ([][]float64, int) {
	rows, cols := score.Rows(), score.Cols()
	out := make([][]float64, rows)
	rebalances := 0
	candidates := make([]int, 0, cols)

	for i := 0; i < rows; i++ {
		if i%p.RebalanceDays != 0 {
			out[i] = out[i-1]
			continue
		}
		rebalances++

		candidates = candidates[:0]
		for j := 0; j < cols; j++ {
			if !math.IsNaN(score.At(i, j)) {
				candidates = append(candidates, j)
			}
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			return score.At(i, candidates[a]) > score.At(i, candidates[b])
		})

		row := make([]float64, cols)
		for k := 0; k < len(candidates) && k < p.TopN; k++ {
			row[candidates[k]] = 1 / float64(p.TopN)
		}
		out[i] = row
	}
	return out, rebalances
}

// benchmark prefers the configured asset, then bitcoin, then the first column
func (e *Engine) benchmark(preferred string) (string, int) {
	for _, id := range []string{preferred, "bitcoin"} {
		if j, ok := e.prices.AssetIndex(id); ok && id != "" {
			return id, j
		}
	}
	return e.prices.Assets()[0], 0
}

func curve(dates []time.Time, values []float64) []CurvePoint {
	out := make([]CurvePoint, len(values))
	for i, v := range values {
		out[i] = CurvePoint{Date: dates[i], Value: v}
	}
	return out
}
