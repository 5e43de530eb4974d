package grid

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/cryptorank/internal/backtest/vector"
	"github.com/sawpanic/cryptorank/internal/domain/factors"
	applog "github.com/sawpanic/cryptorank/internal/log"
)

// Evaluator scores one weight vector with a quick backtest
type Evaluator interface {
	Quick(panels factors.RollingPanel, weights map[string]float64) (vector.Stats, error)
}

// OptimizerConfig defines how the grid is searched and reported
type OptimizerConfig struct {
	Workers     int       `json:"workers"`     // Concurrent backtests (default: GOMAXPROCS)
	Top         int       `json:"top"`         // Entries per leaderboard (default: 5)
	Out         io.Writer `json:"-"`           // Progress output, nil disables it
	Interactive bool      `json:"interactive"` // Redraw progress in place
}

// DefaultOptimizerConfig returns the default optimizer configuration
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		Workers: runtime.GOMAXPROCS(0),
		Top:     5,
	}
}

// Evaluation is the outcome of one grid point
type Evaluation struct {
	Weights map[string]float64 `json:"weights"`
	Stats   vector.Stats       `json:"stats"`
	Error   string             `json:"error,omitempty"`
}

// Report holds every evaluation and the two leaderboards
type Report struct {
	Grid        Grid          `json:"grid"`
	Evaluations []Evaluation  `json:"evaluations"`
	BySharpe    []Evaluation  `json:"by_sharpe"`
	ByReturn    []Evaluation  `json:"by_return"`
	Failed      int           `json:"failed"`
	ElapsedTime time.Duration `json:"elapsed_time"`
}

// Optimizer runs a quick backtest for every grid candidate
type Optimizer struct {
	evaluator Evaluator
	config    OptimizerConfig
}

// NewOptimizer creates a grid optimizer
func NewOptimizer(evaluator Evaluator, config OptimizerConfig) *Optimizer {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Top < 1 {
		config.Top = 5
	}
	return &Optimizer{evaluator: evaluator, config: config}
}

// Search evaluates every candidate of g. Each candidate owns one result
// slot so the report order matches Candidates regardless of scheduling.
// A failing candidate is recorded and skipped; cancelling ctx aborts.
func (o *Optimizer) Search(ctx context.Context, panels factors.RollingPanel, g Grid) (*Report, error) {
	startTime := time.Now()
	candidates, err := g.Candidates()
	if err != nil {
		return nil, err
	}

	var progress *applog.Progress
	if o.config.Out != nil {
		progress = applog.NewProgress("weight grid", len(candidates), o.config.Out, o.config.Interactive)
	}

	results := make([]Evaluation, len(candidates))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(o.config.Workers)

	for i, w := range candidates {
		if egCtx.Err() != nil {
			break
		}
		i, w := i, w
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			stats, err := o.evaluator.Quick(panels, w)
			results[i] = Evaluation{Weights: w, Stats: stats}
			if err != nil {
				results[i].Error = err.Error()
				log.Warn().Err(err).Interface("weights", w).Msg("grid candidate failed")
			}
			if progress != nil {
				progress.Increment()
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil || ctx.Err() != nil {
		if err == nil {
			err = ctx.Err()
		}
		if progress != nil {
			progress.Fail(err.Error())
		}
		return nil, fmt.Errorf("grid search aborted: %w", err)
	}
	if progress != nil {
		progress.Finish()
	}

	report := &Report{Grid: g, Evaluations: results}
	ok := make([]Evaluation, 0, len(results))
	for _, r := range results {
		if r.Error != "" {
			report.Failed++
			continue
		}
		ok = append(ok, r)
	}
	report.BySharpe = leaders(ok, o.config.Top, func(e Evaluation) float64 { return e.Stats.Sharpe })
	report.ByReturn = leaders(ok, o.config.Top, func(e Evaluation) float64 { return e.Stats.TotalReturn })
	report.ElapsedTime = time.Since(startTime)

	log.Info().
		Int("candidates", len(candidates)).
		Int("failed", report.Failed).
		Dur("elapsed", report.ElapsedTime).
		Msg("grid search completed")
	return report, nil
}

// leaders returns the n best evaluations by key, earlier candidates first on ties
func leaders(evals []Evaluation, n int, key func(Evaluation) float64) []Evaluation {
	sorted := make([]Evaluation, len(evals))
	copy(sorted, evals)
	sort.SliceStable(sorted, func(a, b int) bool {
		return key(sorted[a]) > key(sorted[b])
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
