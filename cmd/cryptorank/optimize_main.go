package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/cryptorank/internal/backtest/vector"
	"github.com/sawpanic/cryptorank/internal/domain/factors"
	"github.com/sawpanic/cryptorank/internal/domain/frame"
	"github.com/sawpanic/cryptorank/internal/domain/strategy"
	applog "github.com/sawpanic/cryptorank/internal/log"
	"github.com/sawpanic/cryptorank/internal/tune/grid"
)

func newOptimizeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Grid search factor weights with quick backtests",
		Long: `Enumerates weight vectors on a fixed grid, keeps those whose sum falls in
the configured window, runs a fee-free weekly top 5 backtest for each and
prints the best candidates by Sharpe ratio and by total return.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd, a)
		},
	}

	cmd.Flags().StringSlice("factors", nil, "Factors to search (default: optimizer.grid.factors)")
	cmd.Flags().Float64("step", 0, "Grid step (default: optimizer.grid.step)")
	cmd.Flags().Int("workers", 0, "Concurrent backtests (default: optimizer.workers or GOMAXPROCS)")
	cmd.Flags().Int("top", 0, "Leaderboard size (default: optimizer.top)")
	cmd.Flags().String("output", "", "Write the best candidates as a strategy file")
	return cmd
}

func runOptimize(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	factorNames, _ := cmd.Flags().GetStringSlice("factors")
	step, _ := cmd.Flags().GetFloat64("step")
	workers, _ := cmd.Flags().GetInt("workers")
	top, _ := cmd.Flags().GetInt("top")
	output, _ := cmd.Flags().GetString("output")

	g := a.cfg.Optimizer.Grid
	if len(factorNames) > 0 {
		g.Factors = factorNames
	}
	if step > 0 {
		g.Step = step
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("invalid grid: %w", err)
	}

	ocfg := grid.DefaultOptimizerConfig()
	if a.cfg.Optimizer.Workers > 0 {
		ocfg.Workers = a.cfg.Optimizer.Workers
	}
	if workers > 0 {
		ocfg.Workers = workers
	}
	ocfg.Top = a.cfg.Optimizer.Top
	if top > 0 {
		ocfg.Top = top
	}
	ocfg.Out = os.Stderr
	ocfg.Interactive = a.cfg.Optimizer.Interactive || applog.IsTerminal(os.Stderr)

	st, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(st)

	histories, err := a.histories(ctx, st)
	if err != nil {
		return err
	}
	prices := frame.BuildPriceMatrix(histories)
	panels, err := factors.NewRollingEngine().Compute(prices)
	if err != nil {
		return fmt.Errorf("failed to compute rolling factors: %w", err)
	}

	engine := vector.NewEngine(prices, a.registry, vector.QuickParams())
	report, err := grid.NewOptimizer(engine, ocfg).Search(ctx, panels, g)
	if err != nil {
		return err
	}
	for _, ev := range report.Evaluations {
		a.metrics.RecordOptimizerOutcome(ev.Error == "")
	}

	if output != "" {
		if err := writeStrategies(output, report); err != nil {
			return err
		}
		log.Info().Str("file", output).Msg("best candidates written as strategies")
	}

	if a.asJSON {
		return a.printJSON(report)
	}
	printLeaderboard(a.out, "Top by Sharpe ratio", report.BySharpe)
	printLeaderboard(a.out, "Top by total return", report.ByReturn)
	fmt.Fprintf(a.out, "\n%d candidates, %d failed, %s\n",
		len(report.Evaluations), report.Failed, report.ElapsedTime.Round(time.Millisecond))
	return nil
}

func printLeaderboard(w io.Writer, title string, evals []grid.Evaluation) {
	fmt.Fprintf(w, "\n%s\n", title)
	if len(evals) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSHARPE\tRETURN\tMAX DD\tWEIGHTS")
	for i, ev := range evals {
		fmt.Fprintf(tw, "%d\t%.2f\t%+.1f%%\t%.1f%%\t%s\n",
			i+1, ev.Stats.Sharpe, ev.Stats.TotalReturn*100, ev.Stats.MaxDrawdown*100, formatWeights(ev.Weights))
	}
	tw.Flush()
}

// writeStrategies stores the leaders in the format Registry.LoadFile reads
func writeStrategies(path string, report *grid.Report) error {
	doc := make(map[string]strategy.Strategy)
	add := func(prefix string, evals []grid.Evaluation) {
		for i, ev := range evals {
			name := fmt.Sprintf("%s_%d", prefix, i+1)
			doc[name] = strategy.Strategy{
				Title:       fmt.Sprintf("Optimized (%s #%d)", prefix, i+1),
				Description: fmt.Sprintf("sharpe %.2f, return %+.1f%%", ev.Stats.Sharpe, ev.Stats.TotalReturn*100),
				Weights:     ev.Weights,
			}
		}
	}
	add("opt_sharpe", report.BySharpe)
	add("opt_return", report.ByReturn)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode strategies: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
