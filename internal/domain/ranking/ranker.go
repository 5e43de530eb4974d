package ranking

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptorank/internal/scoring"
)

// Signal is the discrete long/short call derived from the net score
type Signal string

const (
	SignalStrongBuy  Signal = "Strong Buy"
	SignalBuy        Signal = "Buy"
	SignalNeutral    Signal = "Neutral"
	SignalSell       Signal = "Sell"
	SignalStrongSell Signal = "Strong Sell"
)

// Combined is one asset's joined long/short view
type Combined struct {
	CoinID        string  `json:"coin_id" db:"coin_id"`
	Symbol        string  `json:"symbol" db:"symbol"`
	ScoreLong     float64 `json:"score_long" db:"score_long"`
	ScoreShort    float64 `json:"score_short" db:"score_short"`
	RankLong      int     `json:"rank_long" db:"rank_long"`
	RankShort     int     `json:"rank_short" db:"rank_short"`
	NetScore      float64 `json:"net_score" db:"net_score"` // ScoreLong - ScoreShort, -100..100
	RankDiff      int     `json:"rank_diff" db:"rank_diff"` // RankShort - RankLong
	Signal        Signal  `json:"signal" db:"signal"`
	FinalRank     int     `json:"final_rank" db:"final_rank"`
	PrimaryDriver string  `json:"primary_driver" db:"primary_driver"` // long side
}

// Conflict is an asset both strategies rate highly
type Conflict struct {
	Combined
	Intensity float64 `json:"intensity"` // ScoreLong + ScoreShort
}

// Confluence summarizes where the long and short views agree and clash
type Confluence struct {
	TopLongs  []Combined `json:"top_longs"`
	TopShorts []Combined `json:"top_shorts"` // most negative net score first
	Conflicts []Conflict `json:"conflicts"`
}

// Ranker merges long and short score tables
type Ranker struct {
	StrongThreshold float64 // |net| at or beyond this is a strong call
	WeakThreshold   float64 // |net| at or beyond this is a call at all
	ConflictScore   float64 // both legs above this mark a conflict
}

// NewRanker creates a ranker with the ±50 / ±15 signal bands
func NewRanker() *Ranker {
	return &Ranker{StrongThreshold: 50, WeakThreshold: 15, ConflictScore: 60}
}

// Combine inner-joins long and short scores on coin id and ranks by net score
// (descending, coin id breaking ties). Assets missing from either side are
// left out. A coin listed more than once on a side keeps only its first
// (best-ranked) row.
func (r *Ranker) Combine(long, short []scoring.Score) []Combined {
	if len(long) == 0 || len(short) == 0 {
		log.Warn().Int("long", len(long)).Int("short", len(short)).Msg("cannot combine: one side is empty")
		return []Combined{}
	}

	shortByID := make(map[string]scoring.Score, len(short))
	for _, s := range short {
		if _, dup := shortByID[s.CoinID]; !dup {
			shortByID[s.CoinID] = s
		}
	}

	out := make([]Combined, 0, len(long))
	seen := make(map[string]struct{}, len(long))
	for _, l := range long {
		s, ok := shortByID[l.CoinID]
		if !ok {
			continue
		}
		if _, dup := seen[l.CoinID]; dup {
			continue
		}
		seen[l.CoinID] = struct{}{}
		net := l.Score - s.Score
		out = append(out, Combined{
			CoinID:        l.CoinID,
			Symbol:        l.Symbol,
			ScoreLong:     l.Score,
			ScoreShort:    s.Score,
			RankLong:      l.Rank,
			RankShort:     s.Rank,
			NetScore:      net,
			RankDiff:      s.Rank - l.Rank,
			Signal:        r.SignalFor(net),
			PrimaryDriver: l.PrimaryDriver,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NetScore != out[j].NetScore {
			return out[i].NetScore > out[j].NetScore
		}
		return out[i].CoinID < out[j].CoinID
	})
	for i := range out {
		out[i].FinalRank = i + 1
	}

	log.Info().Int("assets", len(out)).Msg("combined ranking built")
	return out
}

// SignalFor maps a net score onto the five signal bands
func (r *Ranker) SignalFor(net float64) Signal {
	switch {
	case net >= r.StrongThreshold:
		return SignalStrongBuy
	case net >= r.WeakThreshold:
		return SignalBuy
	case net <= -r.StrongThreshold:
		return SignalStrongSell
	case net <= -r.WeakThreshold:
		return SignalSell
	default:
		return SignalNeutral
	}
}

// Confluence picks the n best longs, the n best shorts and up to n conflicts
// from a combined ranking sorted by final rank
func (r *Ranker) Confluence(combined []Combined, n int) Confluence {
	c := Confluence{TopLongs: []Combined{}, TopShorts: []Combined{}, Conflicts: []Conflict{}}
	if n <= 0 {
		return c
	}

	for i := 0; i < len(combined) && i < n; i++ {
		c.TopLongs = append(c.TopLongs, combined[i])
	}
	for i := len(combined) - 1; i >= 0 && len(c.TopShorts) < n; i-- {
		c.TopShorts = append(c.TopShorts, combined[i])
	}

	for _, row := range combined {
		if row.ScoreLong > r.ConflictScore && row.ScoreShort > r.ConflictScore {
			c.Conflicts = append(c.Conflicts, Conflict{Combined: row, Intensity: row.ScoreLong + row.ScoreShort})
		}
	}
	sort.SliceStable(c.Conflicts, func(i, j int) bool {
		return c.Conflicts[i].Intensity > c.Conflicts[j].Intensity
	})
	if len(c.Conflicts) > n {
		c.Conflicts = c.Conflicts[:n]
	}
	return c
}
