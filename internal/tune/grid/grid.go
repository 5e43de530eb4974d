package grid

import (
	"fmt"
	"math"

	"github.com/sawpanic/cryptorank/internal/domain/factors"
)

const sumEpsilon = 1e-9

// Grid spans every weight vector over Factors whose entries are multiples
// of Step in [0, 1] and whose sum lies in [MinSum, MaxSum]
type Grid struct {
	Factors []string `json:"factors" yaml:"factors"`
	Step    float64  `json:"step" yaml:"step" default:"0.2" validate:"gt=0,lte=1"`
	MinSum  float64  `json:"min_sum" yaml:"min_sum" default:"0.9"`
	MaxSum  float64  `json:"max_sum" yaml:"max_sum" default:"1.1" validate:"gtefield=MinSum"`
}

// DefaultGrid returns the three-factor grid over momentum, low volatility and quality
func DefaultGrid() Grid {
	return Grid{
		Factors: []string{factors.MomentumLong, factors.LowVolatility, factors.QualitySharpe},
		Step:    0.2,
		MinSum:  0.9,
		MaxSum:  1.1,
	}
}

// Validate checks the grid can be enumerated
func (g Grid) Validate() error {
	if len(g.Factors) == 0 {
		return fmt.Errorf("grid has no factors")
	}
	if g.Step <= 0 || g.Step > 1 || math.IsNaN(g.Step) {
		return fmt.Errorf("grid step %v outside (0, 1]", g.Step)
	}
	if g.MinSum > g.MaxSum {
		return fmt.Errorf("grid min sum %v above max sum %v", g.MinSum, g.MaxSum)
	}
	seen := make(map[string]bool, len(g.Factors))
	for _, f := range g.Factors {
		if seen[f] {
			return fmt.Errorf("grid factor %s listed twice", f)
		}
		seen[f] = true
	}
	return nil
}

// Candidates enumerates the admissible weight vectors in lexicographic
// order of the factor list. Levels are integer multiples of Step so sums
// do not accumulate rounding error.
func (g Grid) Candidates() ([]map[string]float64, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	levels := int(math.Floor(1/g.Step + sumEpsilon))

	var out []map[string]float64
	idx := make([]int, len(g.Factors))
	for {
		total := 0
		for _, k := range idx {
			total += k
		}
		if g.admits(float64(total) * g.Step) {
			w := make(map[string]float64, len(g.Factors))
			for i, f := range g.Factors {
				w[f] = float64(idx[i]) * g.Step
			}
			out = append(out, w)
		}

		// odometer increment, last factor fastest
		pos := len(idx) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] <= levels {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			return out, nil
		}
	}
}

func (g Grid) admits(sum float64) bool {
	return sum >= g.MinSum-sumEpsilon && sum <= g.MaxSum+sumEpsilon
}
