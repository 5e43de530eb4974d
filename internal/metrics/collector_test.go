package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findMetric returns the metric of the named family whose labels include
// every given pair.
func findMetric(t *testing.T, r *Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := r.Gatherer().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabels(m, labels) {
				return m
			}
		}
	}
	return nil
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
			found++
		}
	}
	return found == len(want)
}

func TestRegimeSwitches(t *testing.T) {
	r := NewRegistry()
	r.SetRegime("neutral")
	r.SetRegime("neutral")
	r.SetRegime("bull")
	r.SetRegime("bear")

	gauge := findMetric(t, r, "cryptorank_active_regime", nil)
	require.NotNil(t, gauge)
	assert.Equal(t, -1.0, gauge.GetGauge().GetValue())

	sw := findMetric(t, r, "cryptorank_regime_switches_total", map[string]string{"from_regime": "neutral", "to_regime": "bull"})
	require.NotNil(t, sw)
	assert.Equal(t, 1.0, sw.GetCounter().GetValue())

	assert.Nil(t, findMetric(t, r, "cryptorank_regime_switches_total", map[string]string{"from_regime": "neutral", "to_regime": "neutral"}))
}

func TestCountersAndGauges(t *testing.T) {
	r := NewRegistry()
	r.RecordCache("sentiment", true)
	r.RecordCache("sentiment", true)
	r.RecordCache("sentiment", false)
	r.RecordPipelineRun("success")
	r.RecordPipelineError("score")
	r.SetAssetsRanked(42)
	r.RecordBacktest("balanced", 0.25, 1.3)
	r.RecordOptimizerOutcome(true)
	r.RecordOptimizerOutcome(false)

	assert.Equal(t, 2.0, findMetric(t, r, "cryptorank_cache_hits_total", map[string]string{"cache": "sentiment"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, findMetric(t, r, "cryptorank_cache_misses_total", map[string]string{"cache": "sentiment"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, findMetric(t, r, "cryptorank_pipeline_runs_total", map[string]string{"status": "success"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, findMetric(t, r, "cryptorank_pipeline_errors_total", map[string]string{"step": "score"}).GetCounter().GetValue())
	assert.Equal(t, 42.0, findMetric(t, r, "cryptorank_assets_ranked", nil).GetGauge().GetValue())
	assert.Equal(t, 1.3, findMetric(t, r, "cryptorank_backtest_sharpe", map[string]string{"strategy": "balanced"}).GetGauge().GetValue())
	assert.Equal(t, 1.0, findMetric(t, r, "cryptorank_optimizer_candidates_total", map[string]string{"outcome": "failed"}).GetCounter().GetValue())
}

func TestStepTimer(t *testing.T) {
	r := NewRegistry()
	r.StartStepTimer("filter").Stop("ok")

	m := findMetric(t, r, "cryptorank_step_duration_seconds", map[string]string{"step": "filter", "result": "ok"})
	require.NotNil(t, m)
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.SetRegime("bull")
		r.RecordCache("x", true)
		r.RecordPipelineRun("success")
		r.RecordPipelineError("x")
		r.SetAssetsRanked(1)
		r.RecordBacktest("x", 0, 0)
		r.RecordOptimizerOutcome(true)
		r.StartStepTimer("x").Stop("ok")
	})
}

func TestHandlerExposition(t *testing.T) {
	r := NewRegistry()
	r.SetAssetsRanked(7)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "cryptorank_assets_ranked 7")
	assert.Contains(t, string(body), "go_goroutines")
}
