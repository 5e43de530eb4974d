package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/cryptorank/internal/data/loader"
	"github.com/sawpanic/cryptorank/internal/persistence"
)

var errNoDatabase = errors.New("this command needs the database: set database.enabled or PG_DSN")

func newDataCmd(a *app) *cobra.Command {
	dataCmd := &cobra.Command{
		Use:   "data",
		Short: "Move price history and snapshots between files and the database",
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Load --prices and --snapshots files into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDataImport(cmd, a)
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored price history as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDataExport(cmd, a)
		},
	}
	exportCmd.Flags().String("out", "", "Output file (default: stdout)")
	exportCmd.Flags().Int("days", 0, "Days of history (default: data.history_days)")

	dataCmd.AddCommand(importCmd, exportCmd)
	return dataCmd
}

func runDataImport(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	if a.cfg.Data.PricesFile == "" && a.cfg.Data.SnapshotsFile == "" {
		return errors.New("nothing to import: pass --prices and/or --snapshots")
	}

	st, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(st)
	if !st.durable {
		return errNoDatabase
	}

	if path := a.cfg.Data.PricesFile; path != "" {
		histories, err := loader.LoadPriceFile(path)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(histories))
		for id := range histories {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		points := 0
		for _, id := range ids {
			if err := st.repo.Prices.UpsertBatch(ctx, id, histories[id]); err != nil {
				return fmt.Errorf("failed to import prices for %s: %w", id, err)
			}
			points += len(histories[id])
		}
		log.Info().Int("assets", len(ids)).Int("points", points).Str("file", path).Msg("price history imported")
		fmt.Fprintf(a.out, "Imported %d price points for %d assets\n", points, len(ids))
	}

	if path := a.cfg.Data.SnapshotsFile; path != "" {
		snaps, err := loader.LoadSnapshots(path)
		if err != nil {
			return err
		}
		if err := st.repo.Snapshots.UpsertBatch(ctx, snaps); err != nil {
			return fmt.Errorf("failed to import snapshots: %w", err)
		}
		log.Info().Int("snapshots", len(snaps)).Str("file", path).Msg("snapshots imported")
		fmt.Fprintf(a.out, "Imported %d snapshots\n", len(snaps))
	}
	return nil
}

func runDataExport(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	out, _ := cmd.Flags().GetString("out")
	days, _ := cmd.Flags().GetInt("days")
	if days <= 0 {
		days = a.cfg.Data.HistoryDays
	}

	st, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(st)
	if !st.durable {
		return errNoDatabase
	}

	to := time.Now().UTC()
	histories, err := st.repo.Prices.Histories(ctx, persistence.TimeRange{From: to.AddDate(0, 0, -days), To: to})
	if err != nil {
		return fmt.Errorf("failed to read price history: %w", err)
	}

	if out == "" {
		return loader.WritePrices(a.out, histories)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := loader.WritePrices(f, histories); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
