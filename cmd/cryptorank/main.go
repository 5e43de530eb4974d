package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	appName = "CryptoRank"
	version = "v1.0.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "cryptorank",
		Short:   "Long/short crypto asset ranking with regime-aware strategies",
		Version: version,
		Long: `CryptoRank scores a crypto universe with weighted factor strategies,
combines a long and a short view into one net ranking, picks the long
strategy from the detected market regime and backtests strategies over
daily price history.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	addGlobalFlags(rootCmd.PersistentFlags(), a)

	rootCmd.AddCommand(
		newRankCmd(a),
		newRegimeCmd(a),
		newBacktestCmd(a),
		newOptimizeCmd(a),
		newStrategiesCmd(a),
		newMonitorCmd(a),
		newDataCmd(a),
	)
	return rootCmd
}

// addGlobalFlags declares the flags every command accepts
func addGlobalFlags(flags *pflag.FlagSet, a *app) {
	flags.StringVar(&a.configPath, "config", "", "Path to YAML config file")
	flags.String("log-level", "", "Log level override (trace|debug|info|warn|error)")
	flags.String("log-format", "", "Log format override (auto|console|json)")
	flags.String("prices", "", "Price history CSV (coin_id,date,price,volume)")
	flags.String("snapshots", "", "Asset snapshot file (JSON or YAML)")
	flags.Bool("json", false, "Print results as JSON")
}
