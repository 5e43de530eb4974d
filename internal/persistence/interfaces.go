package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/cryptorank/internal/backtest/vector"
	"github.com/sawpanic/cryptorank/internal/domain/factors"
	"github.com/sawpanic/cryptorank/internal/domain/frame"
	"github.com/sawpanic/cryptorank/internal/domain/ranking"
	"github.com/sawpanic/cryptorank/internal/domain/regime"
	"github.com/sawpanic/cryptorank/internal/scoring"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// TimeRange represents a closed time window for history queries
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Valid reports whether the window is non-inverted
func (tr TimeRange) Valid() bool {
	return !tr.To.Before(tr.From)
}

// ScoreRun is one strategy's score table for one ranking run
type ScoreRun struct {
	RunID     uuid.UUID       `json:"run_id" db:"run_id"`
	Timestamp time.Time       `json:"ts" db:"ts"`
	Strategy  string          `json:"strategy" db:"strategy"`
	Side      string          `json:"side" db:"side"` // long or short
	Scores    []scoring.Score `json:"scores"`
}

// RankingRun is the combined table produced by one pipeline run
type RankingRun struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	Timestamp     time.Time          `json:"ts" db:"ts"`
	Regime        string             `json:"regime" db:"regime"`
	LongStrategy  string             `json:"long_strategy" db:"long_strategy"`
	ShortStrategy string             `json:"short_strategy" db:"short_strategy"`
	Entries       []ranking.Combined `json:"entries"`
}

// BacktestRun is a stored backtest result
type BacktestRun struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	Result    vector.Result `json:"result"`
}

// PriceRepo stores daily price history
type PriceRepo interface {
	// UpsertBatch writes one asset's points, replacing existing days
	UpsertBatch(ctx context.Context, coinID string, points []frame.PricePoint) error

	// Histories returns every asset's points within the window, date ascending
	Histories(ctx context.Context, tr TimeRange) (map[string][]frame.PricePoint, error)
}

// SnapshotRepo stores market snapshots
type SnapshotRepo interface {
	// UpsertBatch writes snapshots keyed by coin id and update time
	UpsertBatch(ctx context.Context, snapshots []factors.AssetSnapshot) error

	// Latest returns the newest snapshot per asset
	Latest(ctx context.Context) ([]factors.AssetSnapshot, error)
}

// ScoreRepo stores per-strategy score tables
type ScoreRepo interface {
	Insert(ctx context.Context, run ScoreRun) error
	ListRun(ctx context.Context, runID uuid.UUID) ([]ScoreRun, error)
}

// RankingRepo stores combined rankings
type RankingRepo interface {
	Insert(ctx context.Context, run RankingRun) error

	// Latest returns the newest run, or ErrNotFound
	Latest(ctx context.Context) (*RankingRun, error)
}

// RegimeRepo stores regime verdicts
type RegimeRepo interface {
	Insert(ctx context.Context, v regime.Verdict) error

	// Latest returns the newest verdict, or ErrNotFound
	Latest(ctx context.Context) (*regime.Verdict, error)
}

// BacktestRepo stores backtest results
type BacktestRepo interface {
	// Save stores a result and returns its run id
	Save(ctx context.Context, result *vector.Result) (uuid.UUID, error)

	// Get loads a stored result, or ErrNotFound
	Get(ctx context.Context, id uuid.UUID) (*BacktestRun, error)
}

// Repository aggregates all persistence interfaces
type Repository struct {
	Prices    PriceRepo
	Snapshots SnapshotRepo
	Scores    ScoreRepo
	Rankings  RankingRepo
	Regimes   RegimeRepo
	Backtests BacktestRepo
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for persistence layer
type RepositoryHealth interface {
	// Health returns current repository health status
	Health(ctx context.Context) HealthCheck

	// Ping tests basic connectivity to database
	Ping(ctx context.Context) error
}
