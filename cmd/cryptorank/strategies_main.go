package main

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sawpanic/cryptorank/internal/domain/strategy"
)

func newStrategiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List registered strategies and their normalized weights",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := a.registry.Names()
			list := make([]strategy.Strategy, 0, len(names))
			for _, name := range names {
				s, _ := a.registry.Lookup(name)
				list = append(list, s)
			}

			if a.asJSON {
				return a.printJSON(list)
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTITLE\tWEIGHTS")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Title, formatWeights(s.Weights))
			}
			return tw.Flush()
		},
	}
}

// formatWeights renders weights largest magnitude first
func formatWeights(weights map[string]float64) string {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		wi, wj := math.Abs(weights[names[i]]), math.Abs(weights[names[j]])
		if wi != wj {
			return wi > wj
		}
		return names[i] < names[j]
	})

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%+.2f", name, weights[name])
	}
	return strings.Join(parts, " ")
}
