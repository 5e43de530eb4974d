package factors

import "time"

// AssetClass is the coarse bucket an asset falls into
type AssetClass string

const (
	ClassBitcoin    AssetClass = "bitcoin"
	ClassEthereum   AssetClass = "ethereum"
	ClassStablecoin AssetClass = "stablecoin"
	ClassAltcoin    AssetClass = "altcoin"
)

// AssetSnapshot is the per-asset input to the snapshot factor builder.
// Optional fundamentals are nil when the data source had nothing for them.
type AssetSnapshot struct {
	CoinID    string     `json:"coin_id" yaml:"coin_id" db:"coin_id"`
	Symbol    string     `json:"symbol" yaml:"symbol" db:"symbol"`
	Name      string     `json:"name" yaml:"name" db:"name"`
	Class     AssetClass `json:"class,omitempty" yaml:"class,omitempty" db:"class"`
	Sector    string     `json:"sector,omitempty" yaml:"sector,omitempty" db:"sector"`
	Price     float64    `json:"price" yaml:"price" db:"price"`
	MarketCap float64    `json:"market_cap" yaml:"market_cap" db:"market_cap"`
	Volume24h float64    `json:"volume_24h" yaml:"volume_24h" db:"volume_24h"`

	Return7d        *float64 `json:"return_7d,omitempty" yaml:"return_7d,omitempty" db:"return_7d"`
	Return30d       *float64 `json:"return_30d,omitempty" yaml:"return_30d,omitempty" db:"return_30d"`
	Volatility30d   *float64 `json:"volatility_30d,omitempty" yaml:"volatility_30d,omitempty" db:"volatility_30d"`
	Sharpe90d       *float64 `json:"sharpe_90d,omitempty" yaml:"sharpe_90d,omitempty" db:"sharpe_90d"`
	MaxDrawdown365d *float64 `json:"max_drawdown_365d,omitempty" yaml:"max_drawdown_365d,omitempty" db:"max_drawdown_365d"`
	CorrelationBTC  *float64 `json:"correlation_btc,omitempty" yaml:"correlation_btc,omitempty" db:"correlation_btc"`
	BetaBTC         *float64 `json:"beta_btc,omitempty" yaml:"beta_btc,omitempty" db:"beta_btc"`
	TVL             *float64 `json:"tvl,omitempty" yaml:"tvl,omitempty" db:"tvl"`
	TVLRatio        *float64 `json:"tvl_ratio,omitempty" yaml:"tvl_ratio,omitempty" db:"tvl_ratio"` // market cap / TVL
	NVT             *float64 `json:"nvt,omitempty" yaml:"nvt,omitempty" db:"nvt"`
	DeveloperScore  *float64 `json:"developer_score,omitempty" yaml:"developer_score,omitempty" db:"developer_score"`

	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty" db:"updated_at"`
}

// Float returns a pointer to v, for filling optional snapshot fields
func Float(v float64) *float64 {
	return &v
}
