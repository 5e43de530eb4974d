package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/cryptorank/internal/domain/frame"
	"github.com/sawpanic/cryptorank/internal/persistence"
)

// priceRepo implements PriceRepo for PostgreSQL
type priceRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPriceRepo creates a new PostgreSQL price history repository
func NewPriceRepo(db *sqlx.DB, timeout time.Duration) persistence.PriceRepo {
	return &priceRepo{db: db, timeout: timeout}
}

type priceRow struct {
	CoinID string `db:"coin_id"`
	frame.PricePoint
}

// UpsertBatch writes one asset's points atomically
func (r *priceRepo) UpsertBatch(ctx context.Context, coinID string, points []frame.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	if coinID == "" {
		return fmt.Errorf("coin id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(points)/500+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_history (coin_id, date, price, volume)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (coin_id, date) DO UPDATE SET
			price = EXCLUDED.price,
			volume = EXCLUDED.volume`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, coinID, frame.Day(p.Date), p.Price, p.Volume); err != nil {
			return fmt.Errorf("failed to upsert price for %s: %w", coinID, err)
		}
	}
	return tx.Commit()
}

// Histories returns every asset's points within the window. A zero upper
// bound means now.
func (r *priceRepo) Histories(ctx context.Context, tr persistence.TimeRange) (map[string][]frame.PricePoint, error) {
	if tr.To.IsZero() {
		tr.To = time.Now().UTC()
	}
	if !tr.Valid() {
		return nil, fmt.Errorf("invalid time range %s..%s", tr.From, tr.To)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT coin_id, date, price, volume
		FROM price_history
		WHERE date >= $1 AND date <= $2
		ORDER BY coin_id, date`

	rows, err := r.db.QueryxContext(ctx, query, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	histories := map[string][]frame.PricePoint{}
	for rows.Next() {
		var row priceRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		histories[row.CoinID] = append(histories[row.CoinID], row.PricePoint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price rows: %w", err)
	}
	return histories, nil
}
