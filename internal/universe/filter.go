package universe

import (
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptorank/internal/domain/factors"
)

// FilterConfig defines the tradeable universe thresholds
type FilterConfig struct {
	MinMarketCapUSD   float64 `yaml:"min_market_cap_usd" json:"min_market_cap_usd" default:"1000000000" validate:"gte=0"`
	MinDailyVolumeUSD float64 `yaml:"min_daily_volume_usd" json:"min_daily_volume_usd" default:"10000000" validate:"gte=0"`
	MinPrice          float64 `yaml:"min_price" json:"min_price" default:"0.00000001" validate:"gte=0"`
	ExcludeStables    bool    `yaml:"exclude_stables" json:"exclude_stables" default:"true"`
}

// DefaultFilterConfig returns the production universe thresholds
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinMarketCapUSD:   1e9,
		MinDailyVolumeUSD: 1e7,
		MinPrice:          1e-8,
		ExcludeStables:    true,
	}
}

// FilterStats counts how many assets each stage removed
type FilterStats struct {
	Input      int            `json:"input"`
	Duplicates int            `json:"duplicates"`
	MarketCap  int            `json:"market_cap"`
	Volume     int            `json:"volume"`
	Price      int            `json:"price"`
	Stables    int            `json:"stables"`
	Output     int            `json:"output"`
	Classes    map[string]int `json:"classes"`
}

// Filter narrows raw snapshots to the scoring universe
type Filter struct {
	config FilterConfig
}

// NewFilter creates a universe filter
func NewFilter(config FilterConfig) *Filter {
	return &Filter{config: config}
}

// Apply deduplicates symbols, keeping the largest market cap, drops assets
// below the cap, volume and price floors, tags class and sector, and removes
// stablecoins when configured. Input order is not preserved: the result is
// sorted by market cap descending.
func (f *Filter) Apply(snapshots []factors.AssetSnapshot) ([]factors.AssetSnapshot, FilterStats) {
	stats := FilterStats{Input: len(snapshots), Classes: map[string]int{}}
	if len(snapshots) == 0 {
		return nil, stats
	}

	sorted := make([]factors.AssetSnapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MarketCap > sorted[j].MarketCap
	})

	seen := make(map[string]bool, len(sorted))
	out := sorted[:0]
	for _, s := range sorted {
		key := strings.ToUpper(s.Symbol)
		if seen[key] {
			stats.Duplicates++
			continue
		}
		seen[key] = true

		switch {
		case s.MarketCap < f.config.MinMarketCapUSD:
			stats.MarketCap++
			continue
		case s.Volume24h < f.config.MinDailyVolumeUSD:
			stats.Volume++
			continue
		case s.Price < f.config.MinPrice:
			stats.Price++
			continue
		}

		s.Class = Classify(s.Symbol)
		if s.Sector == "" {
			s.Sector = SectorOf(s.CoinID)
		}
		if f.config.ExcludeStables && s.Class == factors.ClassStablecoin {
			stats.Stables++
			continue
		}
		stats.Classes[string(s.Class)]++
		out = append(out, s)
	}
	stats.Output = len(out)

	log.Info().
		Int("input", stats.Input).
		Int("duplicates", stats.Duplicates).
		Int("below_market_cap", stats.MarketCap).
		Int("below_volume", stats.Volume).
		Int("below_price", stats.Price).
		Int("stablecoins", stats.Stables).
		Int("output", stats.Output).
		Msg("universe filtered")
	return out, stats
}
