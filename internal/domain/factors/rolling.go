package factors

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/cryptorank/internal/domain/frame"
)

// RollingEngine derives price-only factors for every date of a price matrix
type RollingEngine struct {
	LongWindow        int     // momentum lookback in rows
	ShortWindow       int     // bearish momentum lookback in rows
	VolatilityWindow  int     // rolling std window in rows
	AnnualizationDays float64 // trading days per year for volatility
	Clip              float64
}

// NewRollingEngine creates a rolling engine with the 30/7/30 day windows
func NewRollingEngine() *RollingEngine {
	return &RollingEngine{
		LongWindow:        30,
		ShortWindow:       7,
		VolatilityWindow:  30,
		AnnualizationDays: 365,
		Clip:              DefaultNormalizer().Clip,
	}
}

// Compute returns momentum_30d, low_volatility, momentum_7d_bearish and
// quality_sharpe as per-date cross-sectional z-scores. Each date row is
// standardized against that row only, so no date sees another date's data.
func (e *RollingEngine) Compute(pm *frame.PriceMatrix) (RollingPanel, error) {
	if e.LongWindow < 1 || e.ShortWindow < 1 || e.VolatilityWindow < 2 {
		return nil, fmt.Errorf("invalid rolling windows %d/%d/%d", e.LongWindow, e.ShortWindow, e.VolatilityWindow)
	}
	if pm == nil || pm.Empty() {
		log.Warn().Msg("empty price matrix, no rolling factors")
		return RollingPanel{}, nil
	}

	momentum := pm.PctChange(e.LongWindow)
	annualize := math.Sqrt(e.AnnualizationDays)
	volatility := pm.LogReturns().RollingStd(e.VolatilityWindow).Map(func(v float64) float64 {
		return v * annualize
	})
	shortMomentum := pm.PctChange(e.ShortWindow)
	sharpe, err := momentum.Zip(volatility, func(ret, vol float64) float64 {
		if vol == 0 {
			return math.NaN()
		}
		return ret / vol
	})
	if err != nil {
		return nil, err
	}

	panel := RollingPanel{
		MomentumLong:         e.zscoreRows(momentum, false),
		LowVolatility:        e.zscoreRows(volatility, true),
		MomentumShortBearish: e.zscoreRows(shortMomentum, true),
		QualitySharpe:        e.zscoreRows(sharpe, false),
	}

	log.Debug().Int("dates", pm.Rows()).Int("assets", pm.Cols()).Strs("factors", panel.Names()).
		Msg("rolling factors computed")
	return panel, nil
}

// zscoreRows standardizes each row with its own mean and sample std. Cells
// that cannot be scored (missing input, fewer than two values, no spread)
// end up at 0.
func (e *RollingEngine) zscoreRows(raw *frame.Matrix, reverse bool) *frame.Matrix {
	out := raw.Map(func(float64) float64 { return 0 })
	present := make([]float64, 0, raw.Cols())

	for i := 0; i < raw.Rows(); i++ {
		present = present[:0]
		for j := 0; j < raw.Cols(); j++ {
			if v := raw.At(i, j); !isMissing(v) {
				present = append(present, v)
			}
		}
		if len(present) < 2 {
			continue
		}
		mean, std := stat.MeanStdDev(present, nil)
		if math.IsNaN(std) || std <= varianceEps*math.Max(1, math.Abs(mean)) {
			continue
		}
		for j := 0; j < raw.Cols(); j++ {
			v := raw.At(i, j)
			if isMissing(v) {
				continue
			}
			z := clip((v-mean)/std, e.Clip)
			if reverse {
				z = -z
			}
			out.Set(i, j, z)
		}
	}
	return out
}
