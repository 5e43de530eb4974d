package strategy

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultName is the strategy used when a requested one is unknown
const DefaultName = "balanced"

var (
	// ErrNoWeights is returned for a strategy document without a weights block
	ErrNoWeights = errors.New("strategy has no weights")
	// ErrZeroWeights is returned when every weight is zero
	ErrZeroWeights = errors.New("strategy weights sum to zero")
)

// Strategy is a named factor weight vector. Weights are normalized so that
// the absolute values sum to 1; negative weights penalize a factor.
type Strategy struct {
	Name        string             `yaml:"-" json:"name"`
	Title       string             `yaml:"name,omitempty" json:"title,omitempty"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	Weights     map[string]float64 `yaml:"weights" json:"weights"`
}

// Factors returns the weighted factor names in sorted order
func (s Strategy) Factors() []string {
	names := make([]string, 0, len(s.Weights))
	for f := range s.Weights {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

func (s Strategy) clone() Strategy {
	c := s
	c.Weights = make(map[string]float64, len(s.Weights))
	for k, v := range s.Weights {
		c.Weights[k] = v
	}
	return c
}

// Registry holds the strategies available to scoring and backtests
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates a registry preloaded with the built-in strategies
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	for _, s := range Defaults() {
		if err := r.Register(s); err != nil {
			panic(fmt.Sprintf("built-in strategy %s: %v", s.Name, err))
		}
	}
	return r
}

// Defaults returns the built-in strategies with raw weights
func Defaults() []Strategy {
	return []Strategy{
		{
			Name:        "balanced",
			Title:       "Balanced (Classic)",
			Description: "Growth, quality and low risk in one book.",
			Weights: map[string]float64{
				"momentum_30d":       0.25,
				"quality_sharpe":     0.20,
				"low_volatility":     0.15,
				"size_large":         0.10,
				"category_advantage": 0.10,
				"tvl_strength":       0.10,
				"correlation_low":    0.10,
			},
		},
		{
			Name:        "defi_value",
			Title:       "Smart DeFi (Value)",
			Description: "Undervalued DeFi protocols with real locked value.",
			Weights: map[string]float64{
				"defi_value":     0.35,
				"tvl_strength":   0.20,
				"quality_dev":    0.15,
				"quality_sharpe": 0.15,
				"momentum_30d":   0.15,
			},
		},
		{
			Name:        "short_speculative",
			Title:       "Short (Speculative)",
			Description: "Overvalued assets with a falling trend.",
			Weights: map[string]float64{
				"momentum_7d_bearish": 0.40,
				"high_volatility":     0.20,
				"value_nvt":           0.20,
				"quality_sharpe":      -0.20,
			},
		},
		{
			Name:        "bull_run",
			Title:       "Bull Run",
			Description: "Trend following for rising markets.",
			Weights: map[string]float64{
				"momentum_30d":       0.45,
				"quality_sharpe":     0.20,
				"category_advantage": 0.15,
				"size_large":         0.10,
				"tvl_strength":       0.10,
			},
		},
		{
			Name:        "bear_defense",
			Title:       "Bear Defense",
			Description: "Large, steady, low-beta assets for falling markets.",
			Weights: map[string]float64{
				"low_volatility":  0.35,
				"quality_sharpe":  0.25,
				"size_large":      0.25,
				"correlation_low": 0.15,
			},
		},
	}
}

// Register normalizes and stores a strategy, replacing any with the same name
func (r *Registry) Register(s Strategy) error {
	if s.Name == "" {
		return fmt.Errorf("strategy name is empty")
	}
	weights, err := NormalizeWeights(s.Weights)
	if err != nil {
		return fmt.Errorf("strategy %s: %w", s.Name, err)
	}
	s = s.clone()
	s.Weights = weights

	r.mu.Lock()
	r.strategies[s.Name] = s
	r.mu.Unlock()
	return nil
}

// Lookup returns a strategy by name without falling back
func (r *Registry) Lookup(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return Strategy{}, false
	}
	return s.clone(), true
}

// Get returns a strategy by name, falling back to balanced when unknown
func (r *Registry) Get(name string) Strategy {
	if s, ok := r.Lookup(name); ok {
		return s
	}
	log.Warn().Str("strategy", name).Str("fallback", DefaultName).Msg("unknown strategy, using fallback")
	s, _ := r.Lookup(DefaultName)
	return s
}

// Names returns the registered strategy names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile merges strategies from a YAML or JSON document keyed by strategy
// name. Invalid entries are logged and skipped; the count of loaded entries is
// returned.
func (r *Registry) LoadFile(path string) (int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return 0, fmt.Errorf("unsupported strategy file format %q", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read strategy file %s: %w", path, err)
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("failed to parse strategy file %s: %w", path, err)
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	loaded := 0
	for _, name := range names {
		node := doc[name]
		var s Strategy
		if err := node.Decode(&s); err != nil {
			log.Error().Str("strategy", name).Str("file", path).Err(err).Msg("skipping malformed strategy")
			continue
		}
		s.Name = name
		if s.Weights == nil {
			log.Error().Str("strategy", name).Str("file", path).Err(ErrNoWeights).Msg("skipping strategy")
			continue
		}
		if err := r.Register(s); err != nil {
			log.Error().Str("strategy", name).Str("file", path).Err(err).Msg("skipping strategy")
			continue
		}
		loaded++
	}

	log.Info().Int("loaded", loaded).Int("entries", len(doc)).Str("file", path).Msg("custom strategies loaded")
	return loaded, nil
}

// NormalizeWeights drops zero weights and scales the rest so that their
// absolute values sum to 1. Normalizing twice gives the same result.
func NormalizeWeights(weights map[string]float64) (map[string]float64, error) {
	if weights == nil {
		return nil, ErrNoWeights
	}
	total := 0.0
	for f, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight %s is not finite", f)
		}
		total += math.Abs(w)
	}
	if total == 0 {
		return nil, ErrZeroWeights
	}

	out := make(map[string]float64, len(weights))
	for f, w := range weights {
		if w == 0 {
			continue
		}
		out[f] = w / total
	}
	return out, nil
}
