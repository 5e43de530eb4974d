package frame

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// PricePoint is one observation of an asset's daily history
type PricePoint struct {
	Date   time.Time `json:"date" db:"date"`
	Price  float64   `json:"price" db:"price"`
	Volume float64   `json:"volume" db:"volume"`
}

// PriceMatrix is the aligned date x asset price table every rolling factor
// and backtest reads from. It is read-only once built.
type PriceMatrix struct {
	*Matrix
}

// Day truncates a timestamp to its UTC calendar day
func Day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// BuildPriceMatrix reshapes per-asset histories into one table. Dates are the
// union of all observed days, ascending and deduplicated (the last observation
// of a day wins). Columns are sorted by asset id. Gaps are forward-filled,
// never back-filled, so no asset shows a price before its first observation.
func BuildPriceMatrix(histories map[string][]PricePoint) *PriceMatrix {
	perAsset := make(map[string]map[time.Time]float64, len(histories))
	dateSet := make(map[time.Time]struct{})

	for asset, points := range histories {
		if len(points) == 0 {
			continue
		}
		byDay := make(map[time.Time]float64, len(points))
		for _, p := range points {
			if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price <= 0 {
				continue
			}
			d := Day(p.Date)
			byDay[d] = p.Price
			dateSet[d] = struct{}{}
		}
		if len(byDay) == 0 {
			log.Debug().Str("coin_id", asset).Msg("history has no usable prices, skipping")
			continue
		}
		perAsset[asset] = byDay
	}

	assets := make([]string, 0, len(perAsset))
	for a := range perAsset {
		assets = append(assets, a)
	}
	sort.Strings(assets)

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	m := NewMatrix(dates, assets)
	for j, asset := range assets {
		last := math.NaN()
		for i, d := range dates {
			if p, ok := perAsset[asset][d]; ok {
				last = p
			}
			if !math.IsNaN(last) {
				m.Set(i, j, last)
			}
		}
	}

	log.Debug().Int("dates", len(dates)).Int("assets", len(assets)).Msg("price matrix built")
	return &PriceMatrix{Matrix: m}
}

// DailyReturns returns the one-day simple return of every cell
func (p *PriceMatrix) DailyReturns() *Matrix {
	return p.PctChange(1)
}

// HasOverlap reports whether any date carries prices for at least two assets.
// A single-asset matrix only needs one priced date.
func (p *PriceMatrix) HasOverlap() bool {
	if p == nil || p.Empty() {
		return false
	}
	need := 2
	if p.Cols() == 1 {
		need = 1
	}
	for i := 0; i < p.Rows(); i++ {
		n := 0
		for j := 0; j < p.Cols(); j++ {
			if !math.IsNaN(p.At(i, j)) {
				n++
			}
		}
		if n >= need {
			return true
		}
	}
	return false
}
