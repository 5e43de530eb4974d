package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptorank/internal/domain/factors"
	"github.com/sawpanic/cryptorank/internal/domain/frame"
	"github.com/sawpanic/cryptorank/internal/domain/ranking"
	"github.com/sawpanic/cryptorank/internal/domain/regime"
	applog "github.com/sawpanic/cryptorank/internal/log"
	"github.com/sawpanic/cryptorank/internal/metrics"
	"github.com/sawpanic/cryptorank/internal/persistence"
	"github.com/sawpanic/cryptorank/internal/scoring"
	"github.com/sawpanic/cryptorank/internal/universe"
)

// Pipeline step names
const (
	StepFilter  = "Filter"
	StepFactors = "Factors"
	StepRegime  = "Regime"
	StepScore   = "Score"
	StepCombine = "Combine"
	StepPersist = "Persist"
)

var steps = []string{StepFilter, StepFactors, StepRegime, StepScore, StepCombine, StepPersist}

// SentimentSource returns the current market sentiment, or nil when none is
// available
type SentimentSource interface {
	Current(ctx context.Context) *regime.Sentiment
}

// Config contains configuration for pipeline execution
type Config struct {
	LongStrategy  string  `json:"long_strategy"` // empty follows the detected regime
	ShortStrategy string  `json:"short_strategy"`
	TopN          int     `json:"top_n"`     // top longs and confluence size
	MinScore      float64 `json:"min_score"` // floor for the top longs
}

// Input is one run's market data
type Input struct {
	Snapshots []factors.AssetSnapshot
	Histories map[string][]frame.PricePoint // benchmark history for regime detection
}

// Result contains the results of pipeline execution
type Result struct {
	RunID         uuid.UUID                `json:"run_id"`
	Timestamp     time.Time                `json:"timestamp"`
	Universe      universe.FilterStats     `json:"universe"`
	Regime        regime.Verdict           `json:"regime"`
	Scores        scoring.Dual             `json:"scores"`
	Combined      []ranking.Combined       `json:"combined"`
	Confluence    ranking.Confluence       `json:"confluence"`
	TopLongs      []scoring.Score          `json:"top_longs"`
	Persisted     bool                     `json:"persisted"`
	StepDurations map[string]time.Duration `json:"step_durations"`
}

// Executor runs filter, factor panel, regime detection, dual scoring,
// combination and persistence in order
type Executor struct {
	filter     *universe.Filter
	builder    *factors.Builder
	detector   *regime.Detector
	calculator *scoring.Calculator
	ranker     *ranking.Ranker
	sentiment  SentimentSource
	repo       *persistence.Repository
	metrics    *metrics.Registry
	config     Config
	now        func() time.Time
}

// Option customizes an Executor
type Option func(*Executor)

// WithSentiment sets the sentiment source used by regime detection
func WithSentiment(s SentimentSource) Option {
	return func(e *Executor) { e.sentiment = s }
}

// WithRepository persists each run's regime, scores and ranking
func WithRepository(repo *persistence.Repository) Option {
	return func(e *Executor) { e.repo = repo }
}

// WithMetrics records step timings and run outcomes
func WithMetrics(m *metrics.Registry) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates a new pipeline executor
func NewExecutor(
	filter *universe.Filter,
	builder *factors.Builder,
	detector *regime.Detector,
	calculator *scoring.Calculator,
	ranker *ranking.Ranker,
	config Config,
	opts ...Option,
) *Executor {
	if config.TopN <= 0 {
		config.TopN = 10
	}
	e := &Executor{
		filter:     filter,
		builder:    builder,
		detector:   detector,
		calculator: calculator,
		ranker:     ranker,
		config:     config,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// state carries intermediate values between steps
type state struct {
	in       Input
	filtered []factors.AssetSnapshot
	panel    *factors.Panel
	result   *Result
}

// Run executes every step. When persisting fails the computed result is
// still returned alongside the error.
func (e *Executor) Run(ctx context.Context, in Input) (*Result, error) {
	st := &state{
		in: in,
		result: &Result{
			RunID:     uuid.New(),
			Timestamp: e.now().UTC(),
		},
	}

	stepLogger := applog.NewStepLogger(steps...)
	fns := []struct {
		name string
		fn   func(ctx context.Context, st *state) error
	}{
		{StepFilter, e.filterStep},
		{StepFactors, e.factorsStep},
		{StepRegime, e.regimeStep},
		{StepScore, e.scoreStep},
		{StepCombine, e.combineStep},
		{StepPersist, e.persistStep},
	}

	for _, step := range fns {
		if err := ctx.Err(); err != nil {
			stepLogger.Fail(err)
			e.metrics.RecordPipelineRun("cancelled")
			return nil, fmt.Errorf("pipeline cancelled before %s: %w", step.name, err)
		}

		stepLogger.StartStep(step.name)
		timer := e.metrics.StartStepTimer(step.name)

		if err := step.fn(ctx, st); err != nil {
			timer.Stop("error")
			e.metrics.RecordPipelineError(step.name)
			e.metrics.RecordPipelineRun("failed")
			stepLogger.Fail(err)
			st.result.StepDurations = stepLogger.Durations()
			if step.name == StepPersist {
				return st.result, err
			}
			return nil, err
		}
		timer.Stop("success")
	}

	stepLogger.Finish()
	st.result.StepDurations = stepLogger.Durations()
	e.metrics.RecordPipelineRun("success")
	e.metrics.SetAssetsRanked(len(st.result.Combined))

	log.Info().
		Str("run_id", st.result.RunID.String()).
		Str("regime", string(st.result.Regime.Regime)).
		Str("long_strategy", st.result.Scores.LongStrategy).
		Str("short_strategy", st.result.Scores.ShortStrategy).
		Int("ranked", len(st.result.Combined)).
		Msg("ranking run completed")
	return st.result, nil
}

func (e *Executor) filterStep(_ context.Context, st *state) error {
	st.filtered, st.result.Universe = e.filter.Apply(st.in.Snapshots)
	if len(st.filtered) == 0 {
		log.Warn().Int("snapshots", len(st.in.Snapshots)).Msg("universe is empty after filtering")
	}
	return nil
}

func (e *Executor) factorsStep(_ context.Context, st *state) error {
	panel, err := e.builder.Build(st.filtered)
	if err != nil {
		return fmt.Errorf("failed to build factor panel: %w", err)
	}
	st.panel = panel
	return nil
}

func (e *Executor) regimeStep(ctx context.Context, st *state) error {
	series, id, ok := regime.BenchmarkSeries(st.in.Histories)
	if !ok {
		log.Warn().Msg("no benchmark history, regime detection falls back to neutral")
	} else {
		log.Debug().Str("benchmark", id).Int("points", len(series)).Msg("benchmark series loaded")
	}

	var sentiment *regime.Sentiment
	if e.sentiment != nil {
		sentiment = e.sentiment.Current(ctx)
	}

	st.result.Regime = e.detector.Detect(series, sentiment)
	e.metrics.SetRegime(string(st.result.Regime.Regime))
	return nil
}

func (e *Executor) scoreStep(ctx context.Context, st *state) error {
	long := e.config.LongStrategy
	if long == "" {
		long = st.result.Regime.SuggestedStrategy
	}

	dual, err := e.calculator.DualScore(ctx, st.panel, long, e.config.ShortStrategy)
	if err != nil {
		return fmt.Errorf("dual scoring failed: %w", err)
	}
	st.result.Scores = dual
	st.result.TopLongs = scoring.TopAssets(dual.Long, e.config.TopN, e.config.MinScore)
	return nil
}

func (e *Executor) combineStep(_ context.Context, st *state) error {
	st.result.Combined = e.ranker.Combine(st.result.Scores.Long, st.result.Scores.Short)
	st.result.Confluence = e.ranker.Confluence(st.result.Combined, e.config.TopN)
	return nil
}

func (e *Executor) persistStep(ctx context.Context, st *state) error {
	if e.repo == nil {
		return nil
	}
	r := st.result

	if e.repo.Regimes != nil {
		v := r.Regime
		if v.DetectedAt.IsZero() {
			v.DetectedAt = r.Timestamp
		}
		if err := e.repo.Regimes.Insert(ctx, v); err != nil {
			return fmt.Errorf("failed to persist regime: %w", err)
		}
	}

	if e.repo.Scores != nil {
		sides := []struct {
			side     string
			strategy string
			scores   []scoring.Score
		}{
			{"long", r.Scores.LongStrategy, r.Scores.Long},
			{"short", r.Scores.ShortStrategy, r.Scores.Short},
		}
		for _, s := range sides {
			run := persistence.ScoreRun{RunID: r.RunID, Timestamp: r.Timestamp, Strategy: s.strategy, Side: s.side, Scores: s.scores}
			if err := e.repo.Scores.Insert(ctx, run); err != nil {
				return fmt.Errorf("failed to persist %s scores: %w", s.side, err)
			}
		}
	}

	if e.repo.Rankings != nil {
		run := persistence.RankingRun{
			ID:            r.RunID,
			Timestamp:     r.Timestamp,
			Regime:        string(r.Regime.Regime),
			LongStrategy:  r.Scores.LongStrategy,
			ShortStrategy: r.Scores.ShortStrategy,
			Entries:       r.Combined,
		}
		if err := e.repo.Rankings.Insert(ctx, run); err != nil {
			return fmt.Errorf("failed to persist ranking: %w", err)
		}
	}

	r.Persisted = true
	return nil
}
