package factors

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// varianceEps treats a column as constant when its spread is only rounding noise
const varianceEps = 1e-12

// Normalizer turns one raw factor column into cross-sectional z-scores
type Normalizer struct {
	Clip            float64 // Final z-scores are clipped to [-Clip, Clip]
	LowerPercentile float64 // Winsorization floor, as a fraction
	UpperPercentile float64 // Winsorization ceiling, as a fraction
}

// DefaultNormalizer returns the production settings: 1%/99% winsorization, ±3 clip
func DefaultNormalizer() Normalizer {
	return Normalizer{Clip: 3.0, LowerPercentile: 0.01, UpperPercentile: 0.99}
}

// Normalize maps values to z-scores. Missing values (NaN) take the median of
// the present ones, outliers are winsorized, and the population z-score is
// negated when reverse is set before clipping. Empty, all-missing or constant
// input yields all zeros.
func (n Normalizer) Normalize(values []float64, reverse bool) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !isMissing(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return out
	}
	sort.Float64s(present)

	median := Quantile(present, 0.5)
	lower := Quantile(present, n.LowerPercentile)
	upper := Quantile(present, n.UpperPercentile)

	filled := make([]float64, len(values))
	for i, v := range values {
		if isMissing(v) {
			v = median
		}
		filled[i] = math.Min(math.Max(v, lower), upper)
	}

	mean, std := stat.PopMeanStdDev(filled, nil)
	if math.IsNaN(std) || std <= varianceEps*math.Max(1, math.Abs(mean)) {
		return out
	}

	for i, v := range filled {
		z := (v - mean) / std
		if reverse {
			z = -z
		}
		out[i] = clip(z, n.Clip)
	}
	return out
}

// Quantile returns the p-quantile of sorted values, interpolating linearly
// between the closest ranks (h = (n-1)p).
func Quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	p = math.Max(0, math.Min(1, p))
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

func isMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func clip(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	return math.Max(-limit, math.Min(limit, v))
}
