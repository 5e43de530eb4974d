package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema creates every table the repositories use. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS price_history (
	coin_id TEXT NOT NULL,
	date    DATE NOT NULL,
	price   DOUBLE PRECISION NOT NULL,
	volume  DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (coin_id, date)
);

CREATE TABLE IF NOT EXISTS asset_snapshots (
	coin_id           TEXT NOT NULL,
	symbol            TEXT NOT NULL,
	name              TEXT NOT NULL DEFAULT '',
	class             TEXT NOT NULL DEFAULT '',
	sector            TEXT NOT NULL DEFAULT '',
	price             DOUBLE PRECISION NOT NULL,
	market_cap        DOUBLE PRECISION NOT NULL,
	volume_24h        DOUBLE PRECISION NOT NULL,
	return_7d         DOUBLE PRECISION,
	return_30d        DOUBLE PRECISION,
	volatility_30d    DOUBLE PRECISION,
	sharpe_90d        DOUBLE PRECISION,
	max_drawdown_365d DOUBLE PRECISION,
	correlation_btc   DOUBLE PRECISION,
	beta_btc          DOUBLE PRECISION,
	tvl               DOUBLE PRECISION,
	tvl_ratio         DOUBLE PRECISION,
	nvt               DOUBLE PRECISION,
	developer_score   DOUBLE PRECISION,
	updated_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (coin_id, updated_at)
);

CREATE TABLE IF NOT EXISTS asset_scores (
	run_id         UUID NOT NULL,
	ts             TIMESTAMPTZ NOT NULL,
	strategy       TEXT NOT NULL,
	side           TEXT NOT NULL CHECK (side IN ('long', 'short')),
	coin_id        TEXT NOT NULL,
	symbol         TEXT NOT NULL,
	raw_score      DOUBLE PRECISION NOT NULL,
	score          DOUBLE PRECISION NOT NULL,
	rank           INTEGER NOT NULL,
	verdict        TEXT NOT NULL,
	primary_driver TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, strategy, side, coin_id)
);

CREATE TABLE IF NOT EXISTS ranking_runs (
	id             UUID PRIMARY KEY,
	ts             TIMESTAMPTZ NOT NULL,
	regime         TEXT NOT NULL,
	long_strategy  TEXT NOT NULL,
	short_strategy TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ranking_entries (
	run_id         UUID NOT NULL REFERENCES ranking_runs (id) ON DELETE CASCADE,
	coin_id        TEXT NOT NULL,
	symbol         TEXT NOT NULL,
	score_long     DOUBLE PRECISION NOT NULL,
	score_short    DOUBLE PRECISION NOT NULL,
	rank_long      INTEGER NOT NULL,
	rank_short     INTEGER NOT NULL,
	net_score      DOUBLE PRECISION NOT NULL,
	rank_diff      INTEGER NOT NULL,
	signal         TEXT NOT NULL,
	final_rank     INTEGER NOT NULL,
	primary_driver TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, coin_id)
);

CREATE TABLE IF NOT EXISTS regime_verdicts (
	id                 BIGSERIAL PRIMARY KEY,
	ts                 TIMESTAMPTZ NOT NULL,
	regime             TEXT NOT NULL,
	suggested_strategy TEXT NOT NULL,
	btc_price          DOUBLE PRECISION NOT NULL,
	change_30d         DOUBLE PRECISION NOT NULL,
	sma                DOUBLE PRECISION NOT NULL,
	above_sma          BOOLEAN NOT NULL,
	sentiment_value    INTEGER NOT NULL,
	sentiment_class    TEXT NOT NULL,
	reason             TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS backtest_runs (
	id             UUID PRIMARY KEY,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	strategy       TEXT NOT NULL,
	start_date     TIMESTAMPTZ NOT NULL,
	end_date       TIMESTAMPTZ NOT NULL,
	rebalance_days INTEGER NOT NULL,
	top_n          INTEGER NOT NULL,
	fee_rate       DOUBLE PRECISION NOT NULL,
	total_return   DOUBLE PRECISION NOT NULL,
	cagr           DOUBLE PRECISION NOT NULL,
	volatility     DOUBLE PRECISION NOT NULL,
	sharpe         DOUBLE PRECISION NOT NULL,
	max_drawdown   DOUBLE PRECISION NOT NULL,
	result         JSONB NOT NULL
);
`

// EnsureSchema creates missing tables
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
