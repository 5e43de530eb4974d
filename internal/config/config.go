package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/cryptorank/internal/backtest/vector"
	"github.com/sawpanic/cryptorank/internal/data/cache"
	"github.com/sawpanic/cryptorank/internal/domain/factors"
	"github.com/sawpanic/cryptorank/internal/domain/regime"
	"github.com/sawpanic/cryptorank/internal/infrastructure/db"
	httpapi "github.com/sawpanic/cryptorank/internal/interfaces/http"
	applog "github.com/sawpanic/cryptorank/internal/log"
	"github.com/sawpanic/cryptorank/internal/portfolio"
	"github.com/sawpanic/cryptorank/internal/providers/sentiment"
	"github.com/sawpanic/cryptorank/internal/tune/grid"
	"github.com/sawpanic/cryptorank/internal/universe"
)

var validate = validator.New()

// Config is the complete application configuration
type Config struct {
	Log        applog.Config         `yaml:"log"`
	Strategies StrategiesConfig      `yaml:"strategies"`
	Scoring    ScoringConfig         `yaml:"scoring"`
	Data       DataConfig            `yaml:"data"`
	Universe   universe.FilterConfig `yaml:"universe"`
	Regime     regime.Config         `yaml:"regime"`
	Backtest   vector.Params         `yaml:"backtest"`
	Optimizer  OptimizerConfig       `yaml:"optimizer"`
	Portfolio  portfolio.Config      `yaml:"portfolio"`
	Database   db.Config             `yaml:"database"`
	Cache      cache.Config          `yaml:"cache"`
	Sentiment  sentiment.Config      `yaml:"sentiment"`
	HTTP       httpapi.ServerConfig  `yaml:"http"`
}

// StrategiesConfig points at extra strategy definitions
type StrategiesConfig struct {
	File string `yaml:"file"` // optional YAML/JSON with custom strategies
}

// ScoringConfig controls normalization and which strategies score each side
type ScoringConfig struct {
	LongStrategy    string  `yaml:"long_strategy"` // empty follows the detected regime
	ShortStrategy   string  `yaml:"short_strategy" default:"short_speculative" validate:"required"`
	Clip            float64 `yaml:"clip" default:"3" validate:"gt=0"`
	LowerPercentile float64 `yaml:"lower_percentile" default:"0.01" validate:"gte=0,lt=1"`
	UpperPercentile float64 `yaml:"upper_percentile" default:"0.99" validate:"gtfield=LowerPercentile,lte=1"`
	TopN            int     `yaml:"top_n" default:"10" validate:"min=1"`
	MinScore        float64 `yaml:"min_score" validate:"gte=0,lte=100"`
}

// Normalizer returns the cross-sectional normalizer these settings describe
func (s ScoringConfig) Normalizer() factors.Normalizer {
	return factors.Normalizer{Clip: s.Clip, LowerPercentile: s.LowerPercentile, UpperPercentile: s.UpperPercentile}
}

// DataConfig locates the offline inputs
type DataConfig struct {
	PricesFile    string `yaml:"prices_file"`
	SnapshotsFile string `yaml:"snapshots_file"`
	HistoryDays   int    `yaml:"history_days" default:"365" validate:"min=30"`
}

// OptimizerConfig controls the weight grid search
type OptimizerConfig struct {
	Workers     int       `yaml:"workers" validate:"min=0"` // 0 means GOMAXPROCS
	Top         int       `yaml:"top" default:"5" validate:"min=1"`
	Interactive bool      `yaml:"interactive"`
	Grid        grid.Grid `yaml:"grid"`
}

// Default returns the configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	cfg.Optimizer.Grid.Factors = grid.DefaultGrid().Factors
	return cfg
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides lets deployment secrets and switches bypass the file
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("PG_DSN"); ok && v != "" {
		cfg.Database.DSN = v
		cfg.Database.Enabled = true
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		cfg.Cache.Addr = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v, ok := lookup("STRATEGIES_FILE"); ok {
		cfg.Strategies.File = v
	}
	if v, ok := lookup("HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_PORT %q: %w", v, err)
		}
		cfg.HTTP.Port = port
	}
	return nil
}

// Validate checks every section's constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if err := c.Optimizer.Grid.Validate(); err != nil {
		return fmt.Errorf("optimizer grid: %w", err)
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database enabled without dsn")
	}
	return nil
}
