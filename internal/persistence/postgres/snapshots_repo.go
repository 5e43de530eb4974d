package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/cryptorank/internal/domain/factors"
	"github.com/sawpanic/cryptorank/internal/persistence"
)

const snapshotColumns = `coin_id, symbol, name, class, sector, price, market_cap, volume_24h,
		return_7d, return_30d, volatility_30d, sharpe_90d, max_drawdown_365d,
		correlation_btc, beta_btc, tvl, tvl_ratio, nvt, developer_score, updated_at`

// snapshotRepo implements SnapshotRepo for PostgreSQL
type snapshotRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSnapshotRepo creates a new PostgreSQL snapshot repository
func NewSnapshotRepo(db *sqlx.DB, timeout time.Duration) persistence.SnapshotRepo {
	return &snapshotRepo{db: db, timeout: timeout}
}

// UpsertBatch writes snapshots atomically. A zero update time is stamped now.
func (r *snapshotRepo) UpsertBatch(ctx context.Context, snapshots []factors.AssetSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO asset_snapshots (` + snapshotColumns + `)
		VALUES (:coin_id, :symbol, :name, :class, :sector, :price, :market_cap, :volume_24h,
		        :return_7d, :return_30d, :volatility_30d, :sharpe_90d, :max_drawdown_365d,
		        :correlation_btc, :beta_btc, :tvl, :tvl_ratio, :nvt, :developer_score, :updated_at)
		ON CONFLICT (coin_id, updated_at) DO NOTHING`

	now := time.Now().UTC()
	for _, s := range snapshots {
		if s.CoinID == "" {
			return fmt.Errorf("snapshot without coin id")
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, s); err != nil {
			return fmt.Errorf("failed to insert snapshot %s: %w", s.CoinID, err)
		}
	}
	return tx.Commit()
}

// Latest returns the newest snapshot per asset ordered by market cap
func (r *snapshotRepo) Latest(ctx context.Context) ([]factors.AssetSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT * FROM (
			SELECT DISTINCT ON (coin_id) ` + snapshotColumns + `
			FROM asset_snapshots
			ORDER BY coin_id, updated_at DESC
		) latest
		ORDER BY market_cap DESC`

	var out []factors.AssetSnapshot
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}
	return out, nil
}
