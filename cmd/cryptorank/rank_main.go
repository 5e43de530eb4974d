package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/cryptorank/internal/application/pipeline"
	"github.com/sawpanic/cryptorank/internal/data/loader"
	"github.com/sawpanic/cryptorank/internal/portfolio"
)

func newRankCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank the universe by long minus short score",
		Long: `Filters the snapshot universe, builds the factor panel, detects the
market regime, scores every asset with the long and short strategies and
prints the combined ranking. With --holdings the current portfolio is
compared against the score-weighted targets.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd, a)
		},
	}

	cmd.Flags().String("long", "", "Long strategy (default: follows the detected regime)")
	cmd.Flags().String("short", "", "Short strategy (default: scoring.short_strategy)")
	cmd.Flags().Int("top-n", 0, "Rows to print and confluence size (default: scoring.top_n)")
	cmd.Flags().String("holdings", "", "Current holdings file for plan versus fact")
	return cmd
}

type rankOutput struct {
	*pipeline.Result
	Portfolio *portfolioOutput `json:"portfolio,omitempty"`
}

type portfolioOutput struct {
	Health portfolio.Health  `json:"health"`
	Deltas []portfolio.Delta `json:"deltas"`
}

func runRank(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	long, _ := cmd.Flags().GetString("long")
	short, _ := cmd.Flags().GetString("short")
	topN, _ := cmd.Flags().GetInt("top-n")
	holdingsPath, _ := cmd.Flags().GetString("holdings")

	if long == "" {
		long = a.cfg.Scoring.LongStrategy
	}
	if short == "" {
		short = a.cfg.Scoring.ShortStrategy
	}
	if topN <= 0 {
		topN = a.cfg.Scoring.TopN
	}

	st, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(st)

	snaps, err := a.snapshots(ctx, st)
	if err != nil {
		return err
	}
	histories, err := a.histories(ctx, st)
	if err != nil {
		if !errors.Is(err, errNoPrices) {
			return err
		}
		log.Warn().Msg("no price history, the regime falls back to neutral")
	}

	var persistTo *storage
	if st.durable {
		persistTo = st
	}
	exec, err := a.executor(persistTo, long, short, topN)
	if err != nil {
		return err
	}

	res, err := exec.Run(ctx, pipeline.Input{Snapshots: snaps, Histories: histories})
	if err != nil {
		if res == nil {
			return err
		}
		log.Error().Err(err).Msg("ranking computed but not persisted")
	}

	out := rankOutput{Result: res}
	if holdingsPath != "" {
		holdings, err := loader.LoadHoldings(holdingsPath)
		if err != nil {
			return err
		}
		out.Portfolio = &portfolioOutput{
			Health: portfolio.Assess(holdings, res.Combined),
			Deltas: portfolio.NewPlanner(a.cfg.Portfolio).Compare(holdings, res.Combined),
		}
	}

	if a.asJSON {
		return a.printJSON(out)
	}
	printRanking(a.out, res, topN)
	if out.Portfolio != nil {
		printPortfolio(a.out, out.Portfolio)
	}
	return nil
}

func printRanking(w io.Writer, res *pipeline.Result, topN int) {
	v := res.Regime
	fmt.Fprintf(w, "%s ranking %s\n", appName, res.Timestamp.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "Regime: %s (%s)\n", v.Regime, v.Details.Reason)
	fmt.Fprintf(w, "Strategies: long=%s short=%s\n", res.Scores.LongStrategy, res.Scores.ShortStrategy)
	fmt.Fprintf(w, "Universe: %d of %d snapshots kept (duplicates %d, market cap %d, volume %d, price %d, stables %d)\n\n",
		res.Universe.Output, res.Universe.Input, res.Universe.Duplicates, res.Universe.MarketCap,
		res.Universe.Volume, res.Universe.Price, res.Universe.Stables)

	if len(res.Combined) == 0 {
		fmt.Fprintln(w, "No assets ranked.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSYMBOL\tNET\tLONG\tSHORT\tSIGNAL\tDRIVER")
	for i, c := range res.Combined {
		if i >= topN {
			break
		}
		fmt.Fprintf(tw, "%d\t%s\t%+.1f\t%.1f\t%.1f\t%s\t%s\n",
			c.FinalRank, c.Symbol, c.NetScore, c.ScoreLong, c.ScoreShort, c.Signal, c.PrimaryDriver)
	}
	tw.Flush()

	if len(res.Confluence.Conflicts) > 0 {
		fmt.Fprintln(w, "\nConflicts (both views rate highly):")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, c := range res.Confluence.Conflicts {
			fmt.Fprintf(tw, "  %s\tlong %.1f\tshort %.1f\tintensity %.1f\n", c.Symbol, c.ScoreLong, c.ScoreShort, c.Intensity)
		}
		tw.Flush()
	}

	if res.Persisted {
		fmt.Fprintf(w, "\nSaved as run %s\n", res.RunID)
	}
}

func printPortfolio(w io.Writer, p *portfolioOutput) {
	fmt.Fprintln(w)
	if p.Health.Empty {
		fmt.Fprintln(w, "Portfolio: empty, targets use the virtual equity")
	} else {
		fmt.Fprintf(w, "Portfolio: %s USD across %d assets, health %.1f\n",
			p.Health.TotalValue.StringFixed(2), p.Health.AssetCount, p.Health.Score)
	}
	if len(p.Deltas) == 0 {
		fmt.Fprintln(w, "No rebalancing needed.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tSYMBOL\tTARGET\tCURRENT\tDELTA USD")
	for _, d := range p.Deltas {
		fmt.Fprintf(tw, "%s\t%s\t%s%%\t%s%%\t%s\n",
			d.Action, d.Symbol,
			d.TargetWeight.Shift(2).StringFixed(1), d.CurrentWeight.Shift(2).StringFixed(1),
			d.ValueDelta.StringFixed(2))
	}
	tw.Flush()
}
