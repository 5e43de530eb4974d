package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptorank/internal/domain/ranking"
	"github.com/sawpanic/cryptorank/internal/persistence"
)

const (
	defaultRankingLimit = 50
	maxRankingLimit     = 500
)

// Handlers serves the monitor endpoints
type Handlers struct {
	sources   Sources
	startTime time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(sources Sources) *Handlers {
	return &Handlers{sources: sources, startTime: time.Now()}
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse reports process and database health
type HealthResponse struct {
	Status        string                   `json:"status"` // healthy or degraded
	Timestamp     time.Time                `json:"timestamp"`
	Uptime        string                   `json:"uptime"`
	Version       string                   `json:"version"`
	GoVersion     string                   `json:"go_version"`
	NumGoroutines int                      `json:"num_goroutines"`
	Database      *persistence.HealthCheck `json:"database,omitempty"`
}

// RankingResponse is a page of the latest combined ranking
type RankingResponse struct {
	RunID         string             `json:"run_id"`
	Timestamp     time.Time          `json:"timestamp"`
	Regime        string             `json:"regime"`
	LongStrategy  string             `json:"long_strategy"`
	ShortStrategy string             `json:"short_strategy"`
	Total         int                `json:"total"`
	Entries       []ranking.Combined `json:"entries"`
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC(),
		Uptime:        time.Since(h.startTime).Truncate(time.Second).String(),
		Version:       h.sources.Version,
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
	}

	status := http.StatusOK
	if h.sources.Health != nil {
		check := h.sources.Health.Health(r.Context())
		resp.Database = &check
		if !check.Healthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	h.writeJSON(w, status, resp)
}

// Regime handles GET /regime
func (h *Handlers) Regime(w http.ResponseWriter, r *http.Request) {
	v, err := h.sources.Regimes.Latest(r.Context())
	if err != nil {
		h.writeLookupError(w, r, err, "regime")
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// Ranking handles GET /ranking?limit=N&signal=S
func (h *Handlers) Ranking(w http.ResponseWriter, r *http.Request) {
	limit := defaultRankingLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxRankingLimit {
			h.writeError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}
	signal := ranking.Signal(r.URL.Query().Get("signal"))

	run, err := h.sources.Rankings.Latest(r.Context())
	if err != nil {
		h.writeLookupError(w, r, err, "ranking")
		return
	}

	entries := make([]ranking.Combined, 0, limit)
	for _, e := range run.Entries {
		if signal != "" && !strings.EqualFold(string(e.Signal), string(signal)) {
			continue
		}
		if len(entries) == limit {
			break
		}
		entries = append(entries, e)
	}

	h.writeJSON(w, http.StatusOK, RankingResponse{
		RunID:         run.ID.String(),
		Timestamp:     run.Timestamp,
		Regime:        run.Regime,
		LongStrategy:  run.LongStrategy,
		ShortStrategy: run.ShortStrategy,
		Total:         len(run.Entries),
		Entries:       entries,
	})
}

// Explain handles GET /ranking/{coin}, matching coin id or symbol
func (h *Handlers) Explain(w http.ResponseWriter, r *http.Request) {
	coin := mux.Vars(r)["coin"]

	run, err := h.sources.Rankings.Latest(r.Context())
	if err != nil {
		h.writeLookupError(w, r, err, "ranking")
		return
	}
	for _, e := range run.Entries {
		if e.CoinID == coin || strings.EqualFold(e.Symbol, coin) {
			h.writeJSON(w, http.StatusOK, e)
			return
		}
	}
	h.writeError(w, r, http.StatusNotFound, "asset_not_ranked", "asset "+coin+" is not in the latest ranking")
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found", "The requested endpoint does not exist")
}

func (h *Handlers) writeLookupError(w http.ResponseWriter, r *http.Request, err error, what string) {
	if errors.Is(err, persistence.ErrNotFound) {
		h.writeError(w, r, http.StatusNotFound, "no_"+what, "no "+what+" has been recorded yet")
		return
	}
	log.Error().Err(err).Str("source", what).Msg("monitor lookup failed")
	h.writeError(w, r, http.StatusInternalServerError, "lookup_failed", "failed to load "+what)
}

// writeJSON writes JSON response with proper error handling
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes standardized error response
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, ok := r.Context().Value(requestIDKey).(string)
	if !ok {
		requestID = "unknown"
	}
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	})
}
