package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/cryptorank/internal/backtest/vector"
	"github.com/sawpanic/cryptorank/internal/persistence"
)

// backtestRepo implements BacktestRepo for PostgreSQL. Headline stats get
// their own columns; the full result is kept as JSONB.
type backtestRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewBacktestRepo creates a new PostgreSQL backtest repository
func NewBacktestRepo(db *sqlx.DB, timeout time.Duration) persistence.BacktestRepo {
	return &backtestRepo{db: db, timeout: timeout}
}

// Save stores a result under a fresh run id
func (r *backtestRepo) Save(ctx context.Context, result *vector.Result) (uuid.UUID, error) {
	if result == nil {
		return uuid.Nil, fmt.Errorf("nil backtest result")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal backtest result: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	id := uuid.New()
	query := `
		INSERT INTO backtest_runs
		(id, strategy, start_date, end_date, rebalance_days, top_n, fee_rate,
		 total_return, cagr, volatility, sharpe, max_drawdown, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.ExecContext(ctx, query,
		id, result.Strategy, result.Start, result.End,
		result.Params.RebalanceDays, result.Params.TopN, result.Params.FeeRate,
		result.Stats.TotalReturn, result.Stats.CAGR, result.Stats.Volatility,
		result.Stats.Sharpe, result.Stats.MaxDrawdown, payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert backtest run: %w", err)
	}
	return id, nil
}

// Get loads a stored result by run id
func (r *backtestRepo) Get(ctx context.Context, id uuid.UUID) (*persistence.BacktestRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	run := persistence.BacktestRun{}
	var payload []byte
	err := r.db.QueryRowxContext(ctx, `
		SELECT id, created_at, result
		FROM backtest_runs
		WHERE id = $1`, id).
		Scan(&run.ID, &run.CreatedAt, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get backtest run: %w", err)
	}

	if err := json.Unmarshal(payload, &run.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backtest result: %w", err)
	}
	return &run, nil
}
