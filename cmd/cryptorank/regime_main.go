package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/cryptorank/internal/domain/regime"
)

func newRegimeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regime",
		Short: "Detect the market regime from benchmark history and sentiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegime(cmd, a)
		},
	}
	cmd.Flags().String("benchmark", "", "Benchmark coin id (default: bitcoin)")
	cmd.Flags().Bool("no-sentiment", false, "Skip the Fear & Greed reading")
	return cmd
}

func runRegime(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	benchmark, _ := cmd.Flags().GetString("benchmark")
	noSentiment, _ := cmd.Flags().GetBool("no-sentiment")

	st, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(st)

	histories, err := a.histories(ctx, st)
	if err != nil {
		return err
	}

	var ids []string
	if benchmark != "" {
		ids = append(ids, benchmark)
	}
	series, id, ok := regime.BenchmarkSeries(histories, ids...)
	if !ok {
		log.Warn().Strs("benchmark", ids).Msg("benchmark history not found")
	}

	var reading *regime.Sentiment
	if !noSentiment {
		provider, err := a.sentiment()
		if err != nil {
			return err
		}
		if provider != nil {
			reading = provider.Current(ctx)
		}
	}

	v := a.detector().Detect(series, reading)
	a.metrics.SetRegime(string(v.Regime))

	if st.durable {
		if err := st.repo.Regimes.Insert(ctx, v); err != nil {
			return fmt.Errorf("failed to save regime: %w", err)
		}
	}

	if a.asJSON {
		return a.printJSON(v)
	}

	d := v.Details
	fmt.Fprintf(a.out, "Regime: %s\n", v.Regime)
	fmt.Fprintf(a.out, "Suggested strategy: %s\n", v.SuggestedStrategy)
	if ok {
		fmt.Fprintf(a.out, "Benchmark: %s %.2f, 30d %+.1f%%, SMA %.2f (above: %t)\n",
			id, d.Price, d.Change30d*100, d.SMA, d.AboveSMA)
	}
	if d.SentimentClass != "" {
		fmt.Fprintf(a.out, "Fear & Greed: %d (%s)\n", d.SentimentValue, d.SentimentClass)
	}
	fmt.Fprintf(a.out, "Reason: %s\n", d.Reason)
	return nil
}
