package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/cryptorank/internal/domain/ranking"
	"github.com/sawpanic/cryptorank/internal/domain/regime"
	"github.com/sawpanic/cryptorank/internal/metrics"
	"github.com/sawpanic/cryptorank/internal/persistence"
	"github.com/sawpanic/cryptorank/internal/persistence/memory"
)

type stubHealth struct{ healthy bool }

func (s stubHealth) Health(context.Context) persistence.HealthCheck {
	return persistence.HealthCheck{Healthy: s.healthy, LastCheck: time.Now()}
}

func (s stubHealth) Ping(context.Context) error {
	if !s.healthy {
		return errors.New("down")
	}
	return nil
}

func newTestServer(t *testing.T, seed bool, health persistence.RepositoryHealth) *httptest.Server {
	t.Helper()
	repo := memory.NewStore().Repository()

	if seed {
		ctx := context.Background()
		require.NoError(t, repo.Regimes.Insert(ctx, regime.Verdict{
			Regime:            regime.Bull,
			SuggestedStrategy: "bull_run",
			DetectedAt:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		}))
		require.NoError(t, repo.Rankings.Insert(ctx, persistence.RankingRun{
			ID:            uuid.New(),
			Timestamp:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			Regime:        "bull",
			LongStrategy:  "bull_run",
			ShortStrategy: "short_speculative",
			Entries: []ranking.Combined{
				{CoinID: "solana", Symbol: "SOL", NetScore: 80, Signal: ranking.SignalStrongBuy, FinalRank: 1},
				{CoinID: "ethereum", Symbol: "ETH", NetScore: 30, Signal: ranking.SignalBuy, FinalRank: 2},
				{CoinID: "pepe", Symbol: "PEPE", NetScore: -70, Signal: ranking.SignalStrongSell, FinalRank: 3},
			},
		}))
	}

	s, err := NewServer(DefaultServerConfig(), Sources{
		Rankings: repo.Rankings,
		Regimes:  repo.Regimes,
		Health:   health,
		Metrics:  metrics.NewRegistry(),
		Version:  "test",
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, false, stubHealth{healthy: true})

	var body HealthResponse
	resp := getJSON(t, ts.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Len(t, resp.Header.Get("X-Request-ID"), 8)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "test", body.Version)
	require.NotNil(t, body.Database)
	assert.Positive(t, body.NumGoroutines)
}

func TestHealthEndpoint_Degraded(t *testing.T) {
	ts := newTestServer(t, false, stubHealth{healthy: false})

	var body HealthResponse
	resp := getJSON(t, ts.URL+"/health", &body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body.Status)
}

func TestRegimeEndpoint(t *testing.T) {
	empty := newTestServer(t, false, nil)
	var errBody ErrorResponse
	resp := getJSON(t, empty.URL+"/regime", &errBody)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "no_regime", errBody.Code)
	assert.NotEqual(t, "unknown", errBody.RequestID)

	ts := newTestServer(t, true, nil)
	var v regime.Verdict
	resp = getJSON(t, ts.URL+"/regime", &v)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, regime.Bull, v.Regime)
	assert.Equal(t, "bull_run", v.SuggestedStrategy)
}

func TestRankingEndpoint(t *testing.T) {
	ts := newTestServer(t, true, nil)

	var body RankingResponse
	resp := getJSON(t, ts.URL+"/ranking", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, body.Total)
	require.Len(t, body.Entries, 3)
	assert.Equal(t, "solana", body.Entries[0].CoinID)

	body = RankingResponse{}
	getJSON(t, ts.URL+"/ranking?limit=1", &body)
	require.Len(t, body.Entries, 1)

	body = RankingResponse{}
	getJSON(t, ts.URL+"/ranking?signal=strong%20sell", &body)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "pepe", body.Entries[0].CoinID)

	for _, bad := range []string{"0", "-1", "abc", "501"} {
		resp := getJSON(t, ts.URL+"/ranking?limit="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit=%s", bad)
	}
}

func TestExplainEndpoint(t *testing.T) {
	ts := newTestServer(t, true, nil)

	var entry ranking.Combined
	resp := getJSON(t, ts.URL+"/ranking/eth", &entry)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ethereum", entry.CoinID)

	resp = getJSON(t, ts.URL+"/ranking/dogecoin", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsAndNotFound(t *testing.T) {
	ts := newTestServer(t, false, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))

	var errBody ErrorResponse
	resp = getJSON(t, ts.URL+"/nope", &errBody)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "endpoint_not_found", errBody.Code)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/ranking", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestNewServer_RequiresSources(t *testing.T) {
	_, err := NewServer(DefaultServerConfig(), Sources{})
	assert.Error(t, err)
}
