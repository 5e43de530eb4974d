package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/cryptorank/internal/domain/ranking"
	"github.com/sawpanic/cryptorank/internal/persistence"
	"github.com/sawpanic/cryptorank/internal/scoring"
)

// scoreRepo implements ScoreRepo for PostgreSQL
type scoreRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewScoreRepo creates a new PostgreSQL score repository
func NewScoreRepo(db *sqlx.DB, timeout time.Duration) persistence.ScoreRepo {
	return &scoreRepo{db: db, timeout: timeout}
}

type scoreRow struct {
	RunID     uuid.UUID `db:"run_id"`
	Timestamp time.Time `db:"ts"`
	Strategy  string    `db:"strategy"`
	Side      string    `db:"side"`
	scoring.Score
}

// Insert writes one score table atomically
func (r *scoreRepo) Insert(ctx context.Context, run persistence.ScoreRun) error {
	if len(run.Scores) == 0 {
		return nil
	}
	if run.Side != "long" && run.Side != "short" {
		return fmt.Errorf("invalid score side: %s", run.Side)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO asset_scores
		(run_id, ts, strategy, side, coin_id, symbol, raw_score, score, rank, verdict, primary_driver)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range run.Scores {
		_, err := stmt.ExecContext(ctx, run.RunID, run.Timestamp, run.Strategy, run.Side,
			s.CoinID, s.Symbol, s.RawScore, s.Score, s.Rank, string(s.Verdict), s.PrimaryDriver)
		if err != nil {
			return fmt.Errorf("failed to insert score for %s: %w", s.CoinID, err)
		}
	}
	return tx.Commit()
}

// ListRun returns the score tables of one run grouped by strategy and side
func (r *scoreRepo) ListRun(ctx context.Context, runID uuid.UUID) ([]persistence.ScoreRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT run_id, ts, strategy, side, coin_id, symbol, raw_score, score, rank, verdict, primary_driver
		FROM asset_scores
		WHERE run_id = $1
		ORDER BY side, strategy, rank`

	var rows []scoreRow
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	if len(rows) == 0 {
		return nil, persistence.ErrNotFound
	}

	var out []persistence.ScoreRun
	for _, row := range rows {
		n := len(out)
		if n == 0 || out[n-1].Strategy != row.Strategy || out[n-1].Side != row.Side {
			out = append(out, persistence.ScoreRun{
				RunID:     row.RunID,
				Timestamp: row.Timestamp,
				Strategy:  row.Strategy,
				Side:      row.Side,
			})
			n++
		}
		out[n-1].Scores = append(out[n-1].Scores, row.Score)
	}
	return out, nil
}

// rankingRepo implements RankingRepo for PostgreSQL
type rankingRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRankingRepo creates a new PostgreSQL ranking repository
func NewRankingRepo(db *sqlx.DB, timeout time.Duration) persistence.RankingRepo {
	return &rankingRepo{db: db, timeout: timeout}
}

// Insert writes a run header and its entries atomically
func (r *rankingRepo) Insert(ctx context.Context, run persistence.RankingRun) error {
	if run.ID == uuid.Nil {
		return fmt.Errorf("ranking run id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ranking_runs (id, ts, regime, long_strategy, short_strategy)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Timestamp, run.Regime, run.LongStrategy, run.ShortStrategy)
	if err != nil {
		return fmt.Errorf("failed to insert ranking run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ranking_entries
		(run_id, coin_id, symbol, score_long, score_short, rank_long, rank_short,
		 net_score, rank_diff, signal, final_rank, primary_driver)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range run.Entries {
		_, err := stmt.ExecContext(ctx, run.ID, e.CoinID, e.Symbol, e.ScoreLong, e.ScoreShort,
			e.RankLong, e.RankShort, e.NetScore, e.RankDiff, string(e.Signal), e.FinalRank, e.PrimaryDriver)
		if err != nil {
			return fmt.Errorf("failed to insert ranking entry %s: %w", e.CoinID, err)
		}
	}
	return tx.Commit()
}

// Latest returns the newest ranking run with its entries in final-rank order
func (r *rankingRepo) Latest(ctx context.Context) (*persistence.RankingRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var run persistence.RankingRun
	err := r.db.QueryRowxContext(ctx, `
		SELECT id, ts, regime, long_strategy, short_strategy
		FROM ranking_runs
		ORDER BY ts DESC
		LIMIT 1`).
		Scan(&run.ID, &run.Timestamp, &run.Regime, &run.LongStrategy, &run.ShortStrategy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest ranking run: %w", err)
	}

	var entries []ranking.Combined
	err = r.db.SelectContext(ctx, &entries, `
		SELECT coin_id, symbol, score_long, score_short, rank_long, rank_short,
		       net_score, rank_diff, signal, final_rank, primary_driver
		FROM ranking_entries
		WHERE run_id = $1
		ORDER BY final_rank`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranking entries: %w", err)
	}
	run.Entries = entries
	return &run, nil
}
