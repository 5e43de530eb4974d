package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus collectors of one process. A nil *Registry
// is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	StepDuration   *prometheus.HistogramVec
	PipelineRuns   *prometheus.CounterVec
	PipelineErrors *prometheus.CounterVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	ActiveRegime   prometheus.Gauge
	RegimeSwitches *prometheus.CounterVec

	AssetsRanked      prometheus.Gauge
	BacktestSharpe    *prometheus.GaugeVec
	BacktestReturn    *prometheus.GaugeVec
	OptimizerOutcomes *prometheus.CounterVec

	mu         sync.Mutex
	lastRegime string
}

// NewRegistry creates every collector and registers it together with the
// Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptorank_step_duration_seconds",
				Help:    "Duration of each pipeline step in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"step", "result"},
		),

		PipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptorank_pipeline_runs_total",
				Help: "Total number of ranking pipeline runs by status",
			},
			[]string{"status"},
		),

		PipelineErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptorank_pipeline_errors_total",
				Help: "Total number of pipeline errors by step",
			},
			[]string{"step"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptorank_cache_hits_total",
				Help: "Total number of cache hits by cache name",
			},
			[]string{"cache"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptorank_cache_misses_total",
				Help: "Total number of cache misses by cache name",
			},
			[]string{"cache"},
		),

		ActiveRegime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cryptorank_active_regime",
				Help: "Current market regime (-1=bear, 0=neutral, 1=bull, 2=dip_buy)",
			},
		),

		RegimeSwitches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptorank_regime_switches_total",
				Help: "Total number of regime switches by from/to regime",
			},
			[]string{"from_regime", "to_regime"},
		),

		AssetsRanked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cryptorank_assets_ranked",
				Help: "Number of assets in the latest combined ranking",
			},
		),

		BacktestSharpe: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptorank_backtest_sharpe",
				Help: "Annualized Sharpe ratio of the latest backtest per strategy",
			},
			[]string{"strategy"},
		),

		BacktestReturn: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptorank_backtest_total_return",
				Help: "Total return of the latest backtest per strategy",
			},
			[]string{"strategy"},
		),

		OptimizerOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptorank_optimizer_candidates_total",
				Help: "Weight candidates evaluated by the grid optimizer by outcome",
			},
			[]string{"outcome"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.StepDuration,
		r.PipelineRuns,
		r.PipelineErrors,
		r.CacheHits,
		r.CacheMisses,
		r.ActiveRegime,
		r.RegimeSwitches,
		r.AssetsRanked,
		r.BacktestSharpe,
		r.BacktestReturn,
		r.OptimizerOutcomes,
	)
	return r
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// StepTimer measures one pipeline step
type StepTimer struct {
	registry *Registry
	step     string
	start    time.Time
}

// StartStepTimer starts timing a pipeline step
func (r *Registry) StartStepTimer(step string) *StepTimer {
	return &StepTimer{registry: r, step: step, start: time.Now()}
}

// Stop records the step duration under the given result label
func (st *StepTimer) Stop(result string) {
	if st == nil || st.registry == nil {
		return
	}
	st.registry.StepDuration.WithLabelValues(st.step, result).Observe(time.Since(st.start).Seconds())
}

// RecordPipelineRun counts a finished pipeline run
func (r *Registry) RecordPipelineRun(status string) {
	if r == nil {
		return
	}
	r.PipelineRuns.WithLabelValues(status).Inc()
}

// RecordPipelineError counts a failed step
func (r *Registry) RecordPipelineError(step string) {
	if r == nil {
		return
	}
	r.PipelineErrors.WithLabelValues(step).Inc()
}

// RecordCache counts a cache lookup
func (r *Registry) RecordCache(cache string, hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.CacheHits.WithLabelValues(cache).Inc()
		return
	}
	r.CacheMisses.WithLabelValues(cache).Inc()
}

// SetRegime updates the active regime gauge and counts a switch when the
// regime differs from the previous one.
func (r *Registry) SetRegime(regime string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastRegime != "" && r.lastRegime != regime {
		r.RegimeSwitches.WithLabelValues(r.lastRegime, regime).Inc()
	}
	r.lastRegime = regime
	r.ActiveRegime.Set(regimeToGaugeValue(regime))
}

// SetAssetsRanked records the size of the latest ranking
func (r *Registry) SetAssetsRanked(n int) {
	if r == nil {
		return
	}
	r.AssetsRanked.Set(float64(n))
}

// RecordBacktest records the headline stats of a finished backtest
func (r *Registry) RecordBacktest(strategy string, totalReturn, sharpe float64) {
	if r == nil {
		return
	}
	r.BacktestReturn.WithLabelValues(strategy).Set(totalReturn)
	r.BacktestSharpe.WithLabelValues(strategy).Set(sharpe)
}

// RecordOptimizerOutcome counts one evaluated weight candidate
func (r *Registry) RecordOptimizerOutcome(ok bool) {
	if r == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	r.OptimizerOutcomes.WithLabelValues(outcome).Inc()
}

func regimeToGaugeValue(regime string) float64 {
	switch regime {
	case "bear":
		return -1
	case "bull":
		return 1
	case "dip_buy":
		return 2
	default:
		return 0
	}
}
