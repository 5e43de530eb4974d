// Package memory keeps repository data in process memory. It backs runs
// without a database and the monitor's latest-result endpoints.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/cryptorank/internal/backtest/vector"
	"github.com/sawpanic/cryptorank/internal/domain/factors"
	"github.com/sawpanic/cryptorank/internal/domain/frame"
	"github.com/sawpanic/cryptorank/internal/domain/ranking"
	"github.com/sawpanic/cryptorank/internal/domain/regime"
	"github.com/sawpanic/cryptorank/internal/persistence"
)

// Store holds every record type behind one lock
type Store struct {
	mu        sync.RWMutex
	prices    map[string]map[time.Time]frame.PricePoint
	snapshots map[string]factors.AssetSnapshot
	scores    map[uuid.UUID][]persistence.ScoreRun
	rankings  []persistence.RankingRun
	regimes   []regime.Verdict
	backtests map[uuid.UUID]persistence.BacktestRun
	now       func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		prices:    make(map[string]map[time.Time]frame.PricePoint),
		snapshots: make(map[string]factors.AssetSnapshot),
		scores:    make(map[uuid.UUID][]persistence.ScoreRun),
		backtests: make(map[uuid.UUID]persistence.BacktestRun),
		now:       time.Now,
	}
}

// Repository exposes the store through the persistence interfaces
func (s *Store) Repository() *persistence.Repository {
	return &persistence.Repository{
		Prices:    priceRepo{s},
		Snapshots: snapshotRepo{s},
		Scores:    scoreRepo{s},
		Rankings:  rankingRepo{s},
		Regimes:   regimeRepo{s},
		Backtests: backtestRepo{s},
	}
}

type priceRepo struct{ s *Store }

func (r priceRepo) UpsertBatch(_ context.Context, coinID string, points []frame.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	if coinID == "" {
		return fmt.Errorf("coin id is required")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	days, ok := r.s.prices[coinID]
	if !ok {
		days = make(map[time.Time]frame.PricePoint, len(points))
		r.s.prices[coinID] = days
	}
	for _, p := range points {
		p.Date = frame.Day(p.Date)
		days[p.Date] = p
	}
	return nil
}

func (r priceRepo) Histories(_ context.Context, tr persistence.TimeRange) (map[string][]frame.PricePoint, error) {
	if tr.To.IsZero() {
		tr.To = r.s.now().UTC()
	}
	if !tr.Valid() {
		return nil, fmt.Errorf("invalid time range %s..%s", tr.From, tr.To)
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[string][]frame.PricePoint, len(r.s.prices))
	for id, days := range r.s.prices {
		for d, p := range days {
			if d.Before(tr.From) || d.After(tr.To) {
				continue
			}
			out[id] = append(out[id], p)
		}
		sort.Slice(out[id], func(i, j int) bool { return out[id][i].Date.Before(out[id][j].Date) })
	}
	return out, nil
}

type snapshotRepo struct{ s *Store }

func (r snapshotRepo) UpsertBatch(_ context.Context, snapshots []factors.AssetSnapshot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now().UTC()
	for _, snap := range snapshots {
		if snap.CoinID == "" {
			return fmt.Errorf("snapshot without coin id")
		}
		if snap.UpdatedAt.IsZero() {
			snap.UpdatedAt = now
		}
		if cur, ok := r.s.snapshots[snap.CoinID]; ok && cur.UpdatedAt.After(snap.UpdatedAt) {
			continue
		}
		r.s.snapshots[snap.CoinID] = snap
	}
	return nil
}

func (r snapshotRepo) Latest(context.Context) ([]factors.AssetSnapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]factors.AssetSnapshot, 0, len(r.s.snapshots))
	for _, snap := range r.s.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MarketCap != out[j].MarketCap {
			return out[i].MarketCap > out[j].MarketCap
		}
		return out[i].CoinID < out[j].CoinID
	})
	return out, nil
}

type scoreRepo struct{ s *Store }

func (r scoreRepo) Insert(_ context.Context, run persistence.ScoreRun) error {
	if len(run.Scores) == 0 {
		return nil
	}
	if run.Side != "long" && run.Side != "short" {
		return fmt.Errorf("invalid score side: %s", run.Side)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.scores[run.RunID] = append(r.s.scores[run.RunID], run)
	return nil
}

func (r scoreRepo) ListRun(_ context.Context, runID uuid.UUID) ([]persistence.ScoreRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	runs, ok := r.s.scores[runID]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	out := append([]persistence.ScoreRun(nil), runs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Side != out[j].Side {
			return out[i].Side < out[j].Side
		}
		return out[i].Strategy < out[j].Strategy
	})
	return out, nil
}

type rankingRepo struct{ s *Store }

func (r rankingRepo) Insert(_ context.Context, run persistence.RankingRun) error {
	if run.ID == uuid.Nil {
		return fmt.Errorf("ranking run id is required")
	}
	run.Entries = append([]ranking.Combined(nil), run.Entries...)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.rankings = append(r.s.rankings, run)
	return nil
}

func (r rankingRepo) Latest(context.Context) (*persistence.RankingRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if len(r.s.rankings) == 0 {
		return nil, persistence.ErrNotFound
	}
	latest := r.s.rankings[0]
	for _, run := range r.s.rankings[1:] {
		if !run.Timestamp.Before(latest.Timestamp) {
			latest = run
		}
	}
	latest.Entries = append([]ranking.Combined(nil), latest.Entries...)
	return &latest, nil
}

type regimeRepo struct{ s *Store }

func (r regimeRepo) Insert(_ context.Context, v regime.Verdict) error {
	switch v.Regime {
	case regime.Bull, regime.Bear, regime.Neutral, regime.DipBuy:
	default:
		return fmt.Errorf("invalid regime type: %s", v.Regime)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.regimes = append(r.s.regimes, v)
	return nil
}

func (r regimeRepo) Latest(context.Context) (*regime.Verdict, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if len(r.s.regimes) == 0 {
		return nil, persistence.ErrNotFound
	}
	latest := r.s.regimes[0]
	for _, v := range r.s.regimes[1:] {
		if !v.DetectedAt.Before(latest.DetectedAt) {
			latest = v
		}
	}
	return &latest, nil
}

type backtestRepo struct{ s *Store }

func (r backtestRepo) Save(_ context.Context, result *vector.Result) (uuid.UUID, error) {
	if result == nil {
		return uuid.Nil, fmt.Errorf("nil backtest result")
	}
	id := uuid.New()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.backtests[id] = persistence.BacktestRun{ID: id, CreatedAt: r.s.now().UTC(), Result: *result}
	return id, nil
}

func (r backtestRepo) Get(_ context.Context, id uuid.UUID) (*persistence.BacktestRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	run, ok := r.s.backtests[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return &run, nil
}
