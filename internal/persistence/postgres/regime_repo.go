package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/cryptorank/internal/domain/regime"
	"github.com/sawpanic/cryptorank/internal/persistence"
)

// regimeRepo implements RegimeRepo for PostgreSQL
type regimeRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRegimeRepo creates a new PostgreSQL regime repository
func NewRegimeRepo(db *sqlx.DB, timeout time.Duration) persistence.RegimeRepo {
	return &regimeRepo{db: db, timeout: timeout}
}

// Insert stores a verdict
func (r *regimeRepo) Insert(ctx context.Context, v regime.Verdict) error {
	if !isValidRegime(v.Regime) {
		return fmt.Errorf("invalid regime type: %s", v.Regime)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO regime_verdicts
		(ts, regime, suggested_strategy, btc_price, change_30d, sma, above_sma,
		 sentiment_value, sentiment_class, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	d := v.Details
	_, err := r.db.ExecContext(ctx, query,
		v.DetectedAt, string(v.Regime), v.SuggestedStrategy, d.Price, d.Change30d, d.SMA,
		d.AboveSMA, d.SentimentValue, d.SentimentClass, d.Reason)
	if err != nil {
		return fmt.Errorf("failed to insert regime verdict: %w", err)
	}
	return nil
}

// Latest returns the most recent verdict
func (r *regimeRepo) Latest(ctx context.Context) (*regime.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ts, regime, suggested_strategy, btc_price, change_30d, sma, above_sma,
		       sentiment_value, sentiment_class, reason
		FROM regime_verdicts
		ORDER BY ts DESC
		LIMIT 1`

	var v regime.Verdict
	var name string
	d := &v.Details
	err := r.db.QueryRowxContext(ctx, query).Scan(
		&v.DetectedAt, &name, &v.SuggestedStrategy, &d.Price, &d.Change30d, &d.SMA,
		&d.AboveSMA, &d.SentimentValue, &d.SentimentClass, &d.Reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest regime: %w", err)
	}
	v.Regime = regime.Regime(name)
	return &v, nil
}

func isValidRegime(r regime.Regime) bool {
	switch r {
	case regime.Bull, regime.Bear, regime.Neutral, regime.DipBuy:
		return true
	}
	return false
}
