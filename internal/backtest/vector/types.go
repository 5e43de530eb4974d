package vector

import (
	"time"
)

// Params controls one backtest run
type Params struct {
	RebalanceDays     int     `yaml:"rebalance_days" json:"rebalance_days" default:"7" validate:"min=1"`
	TopN              int     `yaml:"top_n" json:"top_n" default:"10" validate:"min=1"`
	FeeRate           float64 `yaml:"fee_rate" json:"fee_rate" default:"0.001" validate:"gte=0,lt=1"` // charged per unit of turnover
	Benchmark         string  `yaml:"benchmark" json:"benchmark" default:"bitcoin"`
	AnnualizationDays float64 `yaml:"annualization_days" json:"annualization_days" default:"365" validate:"gt=0"`
	SkipCurves        bool    `yaml:"-" json:"-"` // grid search only needs the stats
}

// DefaultParams returns weekly rebalancing into the top 10 at 0.1% fees
func DefaultParams() Params {
	return Params{
		RebalanceDays:     7,
		TopN:              10,
		FeeRate:           0.001,
		Benchmark:         "bitcoin",
		AnnualizationDays: 365,
	}
}

// QuickParams returns the fee-free weekly top 5 setup used by weight search
func QuickParams() Params {
	p := DefaultParams()
	p.TopN = 5
	p.FeeRate = 0
	p.SkipCurves = true
	return p
}

// CurvePoint is one value of an equity curve
type CurvePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Stats summarizes a daily return series
type Stats struct {
	TotalReturn float64 `json:"total_return" db:"total_return"`
	CAGR        float64 `json:"cagr" db:"cagr"`
	Volatility  float64 `json:"volatility" db:"volatility"`     // annualized
	Sharpe      float64 `json:"sharpe" db:"sharpe"`             // annualized, zero risk-free rate
	MaxDrawdown float64 `json:"max_drawdown" db:"max_drawdown"` // negative fraction
}

// Result is the outcome of a backtest. A run that could not start (no data,
// no overlapping prices, nothing to weigh) returns an empty Result.
type Result struct {
	Strategy       string             `json:"strategy"`
	Weights        map[string]float64 `json:"weights"`
	Params         Params             `json:"params"`
	Start          time.Time          `json:"start"`
	End            time.Time          `json:"end"`
	Days           int                `json:"days"`
	Rebalances     int                `json:"rebalances"`
	TotalTurnover  float64            `json:"total_turnover"`
	Stats          Stats              `json:"stats"`
	BenchmarkAsset string             `json:"benchmark_asset"`
	BenchmarkStats Stats              `json:"benchmark_stats"`
	DailyReturns   []float64          `json:"daily_returns,omitempty"`
	EquityCurve    []CurvePoint       `json:"equity_curve,omitempty"`
	BenchmarkCurve []CurvePoint       `json:"benchmark_curve,omitempty"`
}

// Empty reports whether the run produced no series
func (r *Result) Empty() bool {
	return r == nil || r.Days == 0
}
