package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/cryptorank/internal/application/pipeline"
	httpapi "github.com/sawpanic/cryptorank/internal/interfaces/http"
)

func newMonitorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Serve the latest ranking and regime over HTTP",
		Long: `Starts a read-only HTTP server with /health, /metrics, /regime, /ranking
and /ranking/{coin}. With --refresh the ranking pipeline runs on that
interval and the server always reflects the newest run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd, a)
		},
	}

	cmd.Flags().String("host", "", "HTTP server host (default: http.host)")
	cmd.Flags().Int("port", 0, "HTTP server port (default: http.port)")
	cmd.Flags().Duration("refresh", 0, "Re-rank interval, 0 serves stored results only")
	return cmd
}

func runMonitor(cmd *cobra.Command, a *app) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	refresh, _ := cmd.Flags().GetDuration("refresh")

	cfg := a.cfg.HTTP
	if host != "" {
		cfg.Host = host
	}
	if port > 0 {
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(st)

	if !st.durable && refresh <= 0 {
		log.Warn().Msg("no database and no refresh interval, the ranking endpoints stay empty")
	}

	srv, err := httpapi.NewServer(cfg, httpapi.Sources{
		Rankings: st.repo.Rankings,
		Regimes:  st.repo.Regimes,
		Health:   st.health,
		Metrics:  a.metrics,
		Version:  version,
	})
	if err != nil {
		return err
	}

	if refresh > 0 {
		exec, err := a.executor(st, a.cfg.Scoring.LongStrategy, a.cfg.Scoring.ShortStrategy, a.cfg.Scoring.TopN)
		if err != nil {
			return err
		}
		go refreshLoop(ctx, a, st, exec, refresh)
	}

	return srv.Run(ctx)
}

// refreshLoop re-ranks immediately and then on every tick until ctx ends
func refreshLoop(ctx context.Context, a *app, st *storage, exec *pipeline.Executor, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		rerank(ctx, a, st, exec)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func rerank(ctx context.Context, a *app, st *storage, exec *pipeline.Executor) {
	snaps, err := a.snapshots(ctx, st)
	if err != nil {
		log.Error().Err(err).Msg("refresh skipped")
		return
	}
	histories, err := a.histories(ctx, st)
	if err != nil {
		log.Warn().Err(err).Msg("refresh without price history")
	}

	res, err := exec.Run(ctx, pipeline.Input{Snapshots: snaps, Histories: histories})
	if err != nil {
		log.Error().Err(err).Msg("refresh failed")
		return
	}
	log.Info().Str("run_id", res.RunID.String()).Int("ranked", len(res.Combined)).Msg("ranking refreshed")
}
