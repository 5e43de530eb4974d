package regime

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/cryptorank/internal/domain/frame"
)

// Regime is the market state the strategy choice adapts to
type Regime string

const (
	Bull    Regime = "bull"
	Bear    Regime = "bear"
	Neutral Regime = "neutral"
	DipBuy  Regime = "dip_buy"
)

// Sentiment is a Fear & Greed style reading, 0 = extreme fear, 100 = extreme greed
type Sentiment struct {
	Value          int       `json:"value"`
	Classification string    `json:"classification"`
	Timestamp      time.Time `json:"timestamp"`
}

// Details carries the inputs behind a verdict
type Details struct {
	Price          float64 `json:"btc_price"`
	Change30d      float64 `json:"btc_change_30d"`
	SMA            float64 `json:"sma_50"`
	AboveSMA       bool    `json:"above_sma"`
	SentimentValue int     `json:"fng_value"`
	SentimentClass string  `json:"fng_class"`
	Reason         string  `json:"reason"`
}

// Verdict is the outcome of one detection
type Verdict struct {
	Regime            Regime    `json:"regime"`
	SuggestedStrategy string    `json:"suggested_strategy"`
	Details           Details   `json:"details"`
	DetectedAt        time.Time `json:"detected_at"`
}

// Config holds the detector thresholds
type Config struct {
	MinHistory      int     `yaml:"min_history" default:"30" validate:"min=2"`
	SMAWindow       int     `yaml:"sma_window" default:"50" validate:"min=1"`
	ChangeWindow    int     `yaml:"change_window" default:"30" validate:"min=1"`
	CrashThreshold  float64 `yaml:"crash_threshold" default:"-0.15" validate:"lt=0"`
	WeakGrowth      float64 `yaml:"weak_growth" default:"0.03" validate:"gte=0"`
	DipSentiment    int     `yaml:"dip_sentiment" default:"40" validate:"min=0,max=100"`
	ExtremeGreed    int     `yaml:"extreme_greed" default:"80" validate:"min=0,max=100"`
	ExtremeFear     int     `yaml:"extreme_fear" default:"20" validate:"min=0,max=100"`
	BullStrategy    string  `yaml:"bull_strategy" default:"bull_run" validate:"required"`
	BearStrategy    string  `yaml:"bear_strategy" default:"bear_defense" validate:"required"`
	NeutralStrategy string  `yaml:"neutral_strategy" default:"balanced" validate:"required"`
}

// DefaultConfig returns the production thresholds
func DefaultConfig() Config {
	return Config{
		MinHistory:      30,
		SMAWindow:       50,
		ChangeWindow:    30,
		CrashThreshold:  -0.15,
		WeakGrowth:      0.03,
		DipSentiment:    40,
		ExtremeGreed:    80,
		ExtremeFear:     20,
		BullStrategy:    "bull_run",
		BearStrategy:    "bear_defense",
		NeutralStrategy: "balanced",
	}
}

// Detector classifies the market from a benchmark price series
type Detector struct {
	config Config
	now    func() time.Time
}

// NewDetector creates a new regime detector
func NewDetector(config Config) *Detector {
	return &Detector{config: config, now: time.Now}
}

// Detect classifies the market from benchmark closes (oldest first) and an
// optional sentiment reading. Too little history yields neutral/balanced.
func (d *Detector) Detect(prices []float64, sentiment *Sentiment) Verdict {
	cfg := d.config
	verdict := Verdict{
		Regime:            Neutral,
		SuggestedStrategy: cfg.NeutralStrategy,
		DetectedAt:        d.now().UTC(),
	}

	if len(prices) < cfg.MinHistory || len(prices) < cfg.ChangeWindow {
		verdict.Details.Reason = fmt.Sprintf("insufficient benchmark history (%d points)", len(prices))
		log.Warn().Int("points", len(prices)).Int("required", cfg.MinHistory).Msg("not enough benchmark history for regime detection")
		return verdict
	}

	current := prices[len(prices)-1]
	window := prices
	if len(prices) >= cfg.SMAWindow {
		window = prices[len(prices)-cfg.SMAWindow:]
	}
	sma := stat.Mean(window, nil)

	change := 0.0
	if base := prices[len(prices)-cfg.ChangeWindow]; base > 0 {
		change = (current - base) / base
	}

	fng, fngClass := 50, "Neutral"
	if sentiment != nil {
		fng, fngClass = sentiment.Value, sentiment.Classification
	}

	above := current > sma
	regime, strategyName, reason := Neutral, cfg.NeutralStrategy, "no clear trend"

	switch {
	case change < cfg.CrashThreshold || (!above && change < 0):
		regime, strategyName = Bear, cfg.BearStrategy
		reason = fmt.Sprintf("downtrend (benchmark %+.1f%% over %dd)", change*100, cfg.ChangeWindow)
		if fng < cfg.ExtremeFear {
			reason += " + extreme fear"
		}
	case above && change > 0:
		regime, strategyName = Bull, cfg.BullStrategy
		reason = fmt.Sprintf("uptrend (benchmark above SMA%d, %+.1f%%)", cfg.SMAWindow, change*100)
		if change < cfg.WeakGrowth {
			strategyName = cfg.NeutralStrategy
			reason = "weak growth, staying balanced"
		}
		if fng > cfg.ExtremeGreed {
			reason += " [extreme greed: overheated]"
		}
	case above && fng < cfg.DipSentiment:
		regime, strategyName = DipBuy, cfg.BullStrategy
		reason = "fear inside an uptrend (buy the dip)"
	}

	verdict.Regime = regime
	verdict.SuggestedStrategy = strategyName
	verdict.Details = Details{
		Price:          current,
		Change30d:      change,
		SMA:            sma,
		AboveSMA:       above,
		SentimentValue: fng,
		SentimentClass: fngClass,
		Reason:         reason,
	}

	log.Info().
		Str("regime", string(regime)).
		Str("strategy", strategyName).
		Float64("price", current).
		Float64("change_30d", change).
		Int("fng", fng).
		Msg(reason)
	return verdict
}

// BenchmarkSeries returns the price series of the first matching benchmark id
// (bitcoin or btc by default), sorted oldest first
func BenchmarkSeries(histories map[string][]frame.PricePoint, ids ...string) ([]float64, string, bool) {
	if len(ids) == 0 {
		ids = []string{"bitcoin", "btc"}
	}

	keys := make([]string, 0, len(histories))
	for k := range histories {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, id := range ids {
		for _, k := range keys {
			if !strings.EqualFold(k, id) || len(histories[k]) == 0 {
				continue
			}
			points := append([]frame.PricePoint(nil), histories[k]...)
			sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
			series := make([]float64, 0, len(points))
			for _, p := range points {
				if p.Price > 0 {
					series = append(series, p.Price)
				}
			}
			return series, k, true
		}
	}
	return nil, "", false
}
