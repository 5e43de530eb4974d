package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/cryptorank/internal/backtest/vector"
	"github.com/sawpanic/cryptorank/internal/domain/factors"
	"github.com/sawpanic/cryptorank/internal/domain/frame"
)

func newBacktestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Backtest strategies over daily price history",
		Long: `Builds rolling factors from the price history and replays each strategy:
every rebalance day the top N assets by combined score are held equally
weighted, with fees charged on turnover. Results are compared against the
benchmark asset.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd, a)
		},
	}

	cmd.Flags().StringSlice("strategy", nil, "Strategies to test (default: every registered strategy)")
	cmd.Flags().Int("rebalance", 0, "Rebalance interval in days (default: backtest.rebalance_days)")
	cmd.Flags().Int("top-n", 0, "Assets held per rebalance (default: backtest.top_n)")
	cmd.Flags().Float64("fee", -1, "Fee per unit of turnover (default: backtest.fee_rate)")
	return cmd
}

type backtestRow struct {
	ID     *uuid.UUID     `json:"id,omitempty"`
	Result *vector.Result `json:"result"`
}

func runBacktest(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	names, _ := cmd.Flags().GetStringSlice("strategy")
	rebalance, _ := cmd.Flags().GetInt("rebalance")
	topN, _ := cmd.Flags().GetInt("top-n")
	fee, _ := cmd.Flags().GetFloat64("fee")

	params := a.cfg.Backtest
	if rebalance > 0 {
		params.RebalanceDays = rebalance
	}
	if topN > 0 {
		params.TopN = topN
	}
	if fee >= 0 {
		params.FeeRate = fee
	}

	if len(names) == 0 {
		names = a.registry.Names()
	}
	for _, name := range names {
		if _, ok := a.registry.Lookup(name); !ok {
			return fmt.Errorf("unknown strategy %q (known: %s)", name, strings.Join(a.registry.Names(), ", "))
		}
	}

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
	engine := vector.NewEngine(prices, a.registry, params)

	rows := make([]backtestRow, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := engine.Run(panels, name, params.RebalanceDays, params.TopN)
		if err != nil {
			return err
		}
		if res.Empty() {
			log.Warn().Str("strategy", name).Msg("backtest produced no returns")
			rows = append(rows, backtestRow{Result: res})
			continue
		}
		a.metrics.RecordBacktest(name, res.Stats.TotalReturn, res.Stats.Sharpe)

		row := backtestRow{Result: res}
		if st.durable {
			id, err := st.repo.Backtests.Save(ctx, res)
			if err != nil {
				return fmt.Errorf("failed to save backtest %s: %w", name, err)
			}
			row.ID = &id
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Result.Stats.Sharpe > rows[j].Result.Stats.Sharpe
	})

	if a.asJSON {
		return a.printJSON(rows)
	}
	printBacktests(a.out, rows, params)
	return nil
}

func printBacktests(w io.Writer, rows []backtestRow, p vector.Params) {
	fmt.Fprintf(w, "Backtest: rebalance every %d days into top %d, fee %.2f%%\n\n",
		p.RebalanceDays, p.TopN, p.FeeRate*100)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tDAYS\tRETURN\tCAGR\tVOL\tSHARPE\tMAX DD\tTURNOVER")
	var bench *vector.Result
	for _, r := range rows {
		res := r.Result
		if res.Empty() {
			fmt.Fprintf(tw, "%s\t0\t-\t-\t-\t-\t-\t-\n", res.Strategy)
			continue
		}
		if bench == nil {
			bench = res
		}
		s := res.Stats
		fmt.Fprintf(tw, "%s\t%d\t%+.1f%%\t%+.1f%%\t%.1f%%\t%.2f\t%.1f%%\t%.2f\n",
			res.Strategy, res.Days, s.TotalReturn*100, s.CAGR*100, s.Volatility*100,
			s.Sharpe, s.MaxDrawdown*100, res.TotalTurnover)
	}
	if bench != nil && bench.BenchmarkAsset != "" {
		b := bench.BenchmarkStats
		fmt.Fprintf(tw, "%s (hold)\t%d\t%+.1f%%\t%+.1f%%\t%.1f%%\t%.2f\t%.1f%%\t-\n",
			bench.BenchmarkAsset, bench.Days, b.TotalReturn*100, b.CAGR*100, b.Volatility*100,
			b.Sharpe, b.MaxDrawdown*100)
	}
	tw.Flush()

	for _, r := range rows {
		if r.ID != nil {
			fmt.Fprintf(w, "Saved %s as %s\n", r.Result.Strategy, r.ID)
		}
	}
}
