package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/cryptorank/internal/application/pipeline"
	"github.com/sawpanic/cryptorank/internal/config"
	"github.com/sawpanic/cryptorank/internal/data/cache"
	"github.com/sawpanic/cryptorank/internal/data/loader"
	"github.com/sawpanic/cryptorank/internal/domain/factors"
	"github.com/sawpanic/cryptorank/internal/domain/frame"
	"github.com/sawpanic/cryptorank/internal/domain/ranking"
	"github.com/sawpanic/cryptorank/internal/domain/regime"
	"github.com/sawpanic/cryptorank/internal/domain/strategy"
	"github.com/sawpanic/cryptorank/internal/infrastructure/db"
	applog "github.com/sawpanic/cryptorank/internal/log"
	"github.com/sawpanic/cryptorank/internal/metrics"
	"github.com/sawpanic/cryptorank/internal/persistence"
	"github.com/sawpanic/cryptorank/internal/persistence/memory"
	"github.com/sawpanic/cryptorank/internal/providers/sentiment"
	"github.com/sawpanic/cryptorank/internal/scoring"
	"github.com/sawpanic/cryptorank/internal/universe"
)

var errNoPrices = errors.New("no price history: set --prices, data.prices_file or enable the database")

// app holds what every command shares once flags and config are resolved
type app struct {
	configPath string
	cfg        *config.Config
	registry   *strategy.Registry
	metrics    *metrics.Registry
	out        io.Writer
	asJSON     bool
}

// storage is the repository a command reads from and writes to
type storage struct {
	repo    *persistence.Repository
	health  persistence.RepositoryHealth
	durable bool
	close   func() error
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if v, _ := flags.GetString("prices"); v != "" {
		cfg.Data.PricesFile = v
	}
	if v, _ := flags.GetString("snapshots"); v != "" {
		cfg.Data.SnapshotsFile = v
	}
	a.asJSON, _ = flags.GetBool("json")

	if err := applog.Setup(cfg.Log, os.Stderr); err != nil {
		return err
	}

	a.registry = strategy.NewRegistry()
	if cfg.Strategies.File != "" {
		if _, err := a.registry.LoadFile(cfg.Strategies.File); err != nil {
			return err
		}
	}

	a.cfg = cfg
	a.metrics = metrics.NewRegistry()
	a.out = cmd.OutOrStdout()
	return nil
}

// openStorage connects to Postgres when enabled and falls back to an
// in-process store otherwise
func (a *app) openStorage(ctx context.Context) (*storage, error) {
	if !a.cfg.Database.Enabled {
		store := memory.NewStore()
		return &storage{repo: store.Repository(), close: func() error { return nil }}, nil
	}

	mgr, err := db.NewManager(ctx, a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &storage{repo: mgr.Repository(), health: mgr.Health(), durable: true, close: mgr.Close}, nil
}

// histories reads price history from the configured file or the database
func (a *app) histories(ctx context.Context, st *storage) (map[string][]frame.PricePoint, error) {
	if path := a.cfg.Data.PricesFile; path != "" {
		return loader.LoadPriceFile(path)
	}
	if st == nil || !st.durable {
		return nil, errNoPrices
	}

	to := time.Now().UTC()
	tr := persistence.TimeRange{From: to.AddDate(0, 0, -a.cfg.Data.HistoryDays), To: to}
	h, err := st.repo.Prices.Histories(ctx, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to read price history: %w", err)
	}
	if len(h) == 0 {
		return nil, errNoPrices
	}
	return h, nil
}

// snapshots reads the current universe from the configured file or the
// database
func (a *app) snapshots(ctx context.Context, st *storage) ([]factors.AssetSnapshot, error) {
	if path := a.cfg.Data.SnapshotsFile; path != "" {
		return loader.LoadSnapshots(path)
	}
	if st == nil || !st.durable {
		return nil, errors.New("no snapshots: set --snapshots, data.snapshots_file or enable the database")
	}
	snaps, err := st.repo.Snapshots.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}
	return snaps, nil
}

// sentiment returns the Fear & Greed provider or nil when disabled
func (a *app) sentiment() (*sentiment.Provider, error) {
	if !a.cfg.Sentiment.Enabled {
		return nil, nil
	}
	c := cache.Observe(cache.New(a.cfg.Cache), "sentiment", a.metrics)
	return sentiment.NewProvider(a.cfg.Sentiment, c)
}

func (a *app) detector() *regime.Detector {
	return regime.NewDetector(a.cfg.Regime)
}

// executor wires the ranking pipeline from config
func (a *app) executor(st *storage, long, short string, topN int) (*pipeline.Executor, error) {
	if long != "" {
		if _, ok := a.registry.Lookup(long); !ok {
			return nil, fmt.Errorf("unknown long strategy %q", long)
		}
	}
	if _, ok := a.registry.Lookup(short); !ok {
		return nil, fmt.Errorf("unknown short strategy %q", short)
	}

	opts := []pipeline.Option{pipeline.WithMetrics(a.metrics)}
	provider, err := a.sentiment()
	if err != nil {
		return nil, err
	}
	if provider != nil {
		opts = append(opts, pipeline.WithSentiment(provider))
	}
	if st != nil {
		opts = append(opts, pipeline.WithRepository(st.repo))
	}

	return pipeline.NewExecutor(
		universe.NewFilter(a.cfg.Universe),
		factors.NewBuilder(a.cfg.Scoring.Normalizer(), factors.DefaultDefinitions()...),
		a.detector(),
		scoring.NewCalculator(a.registry),
		ranking.NewRanker(),
		pipeline.Config{
			LongStrategy:  long,
			ShortStrategy: short,
			TopN:          topN,
			MinScore:      a.cfg.Scoring.MinScore,
		},
		opts...,
	), nil
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func closeStorage(st *storage) {
	if err := st.close(); err != nil {
		log.Warn().Err(err).Msg("failed to close storage")
	}
}
