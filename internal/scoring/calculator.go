package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/cryptorank/internal/domain/factors"
	"github.com/sawpanic/cryptorank/internal/domain/strategy"
)

// Verdict is the human readable bucket of a 0-100 score
type Verdict string

const (
	VerdictStrongSell Verdict = "Strong Sell"
	VerdictSell       Verdict = "Sell"
	VerdictNeutral    Verdict = "Neutral"
	VerdictBuy        Verdict = "Buy"
	VerdictStrongBuy  Verdict = "Strong Buy"
)

// Score is one asset's result under one strategy
type Score struct {
	CoinID        string  `json:"coin_id" db:"coin_id"`
	Symbol        string  `json:"symbol" db:"symbol"`
	RawScore      float64 `json:"raw_score" db:"raw_score"` // Σ weight × z-score
	Score         float64 `json:"score" db:"score"`         // min-max scaled to 0..100
	Rank          int     `json:"rank" db:"rank"`           // 1 = best
	Verdict       Verdict `json:"verdict" db:"verdict"`
	PrimaryDriver string  `json:"primary_driver" db:"primary_driver"`
}

// Dual holds the long and short score tables of one evaluation
type Dual struct {
	LongStrategy  string  `json:"long_strategy"`
	ShortStrategy string  `json:"short_strategy"`
	Long          []Score `json:"long"`
	Short         []Score `json:"short"`
}

// StrategySource resolves a strategy name to its weights
type StrategySource interface {
	Get(name string) strategy.Strategy
}

// Calculator applies strategy weights to factor panels
type Calculator struct {
	strategies StrategySource
}

// NewCalculator creates a new scoring calculator
func NewCalculator(strategies StrategySource) *Calculator {
	return &Calculator{strategies: strategies}
}

// Score ranks every asset of the panel under the named strategy. Unknown
// strategy names resolve through the source's fallback.
func (c *Calculator) Score(panel *factors.Panel, strategyName string) ([]Score, error) {
	s := c.strategies.Get(strategyName)
	log.Debug().Str("strategy", s.Name).Int("assets", panelLen(panel)).Msg("scoring panel")
	return ScoreWeights(panel, s.Weights)
}

// DualScore scores the panel with a long and a short strategy concurrently
func (c *Calculator) DualScore(ctx context.Context, panel *factors.Panel, longName, shortName string) (Dual, error) {
	dual := Dual{LongStrategy: longName, ShortStrategy: shortName}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		scores, err := c.Score(panel, longName)
		if err != nil {
			return fmt.Errorf("long scoring with %s: %w", longName, err)
		}
		dual.Long = scores
		return nil
	})
	g.Go(func() error {
		scores, err := c.Score(panel, shortName)
		if err != nil {
			return fmt.Errorf("short scoring with %s: %w", shortName, err)
		}
		dual.Short = scores
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dual{}, err
	}
	return dual, nil
}

// ScoreWeights scores a panel against an explicit weight vector. Factors the
// panel does not carry contribute nothing. The result is sorted by rank.
// PrimaryDriver is the factor with the largest absolute contribution |w*z|,
// so a strongly negative term can be the driver; this differs from picking
// the largest signed contribution.
func ScoreWeights(panel *factors.Panel, weights map[string]float64) ([]Score, error) {
	if panel == nil {
		return nil, fmt.Errorf("nil factor panel")
	}
	if panel.Len() == 0 {
		log.Warn().Msg("no assets to score")
		return []Score{}, nil
	}
	if len(weights) == 0 {
		log.Error().Msg("strategy carries no weights, nothing to score")
		return []Score{}, nil
	}

	used := make([]string, 0, len(weights))
	for _, f := range sortedKeys(weights) {
		if !panel.Has(f) {
			log.Debug().Str("factor", f).Msg("factor missing from panel, contributes 0")
			continue
		}
		used = append(used, f)
	}

	assets := panel.Assets()
	scores := make([]Score, len(assets))
	for i, a := range assets {
		raw, driver, best := 0.0, "", -1.0
		for _, f := range used {
			contribution := weights[f] * panel.Value(i, f)
			raw += contribution
			if math.Abs(contribution) > best {
				best = math.Abs(contribution)
				driver = f
			}
		}
		scores[i] = Score{CoinID: a.CoinID, Symbol: a.Symbol, RawScore: raw, PrimaryDriver: driver}
	}

	scale(scores)
	assignRanks(scores)

	top := scores[0]
	log.Info().Str("symbol", top.Symbol).Float64("score", top.Score).Str("driver", top.PrimaryDriver).
		Msg("ranking leader")
	return scores, nil
}

// scale maps raw scores onto 0..100; a flat universe gets 50 everywhere
func scale(scores []Score) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		lo = math.Min(lo, s.RawScore)
		hi = math.Max(hi, s.RawScore)
	}
	for i := range scores {
		if hi > lo {
			scores[i].Score = (scores[i].RawScore - lo) / (hi - lo) * 100
		} else {
			scores[i].Score = 50
		}
		scores[i].Verdict = VerdictFor(scores[i].Score)
	}
}

// assignRanks sorts by score descending with the coin id breaking ties, so
// every rank is unique and reproducible
func assignRanks(scores []Score) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].CoinID < scores[j].CoinID
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
}

// VerdictFor buckets a 0..100 score into (-1,20], (20,40], (40,60], (60,80], (80,101]
func VerdictFor(score float64) Verdict {
	switch {
	case score <= 20:
		return VerdictStrongSell
	case score <= 40:
		return VerdictSell
	case score <= 60:
		return VerdictNeutral
	case score <= 80:
		return VerdictBuy
	default:
		return VerdictStrongBuy
	}
}

// TopAssets returns at most n scores at or above minScore from a rank-sorted table
func TopAssets(scores []Score, n int, minScore float64) []Score {
	if n <= 0 {
		return []Score{}
	}
	out := make([]Score, 0, n)
	for _, s := range scores {
		if len(out) == n {
			break
		}
		if s.Score >= minScore {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func panelLen(p *factors.Panel) int {
	if p == nil {
		return 0
	}
	return p.Len()
}
