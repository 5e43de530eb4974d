package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/cryptorank/internal/domain/ranking"
)

// Health summarizes how well the current holdings match the ranking
type Health struct {
	Empty      bool            `json:"empty"`
	TotalValue decimal.Decimal `json:"total_value_usd"`
	AssetCount int             `json:"asset_count"` // non-cash holdings
	Score      float64         `json:"health_score"`
}

// Assess weights each non-cash holding's net score by its share of the
// non-cash value. Holdings missing from the ranking count as zero.
func Assess(current []Holding, ranked []ranking.Combined) Health {
	if len(current) == 0 {
		return Health{Empty: true}
	}

	net := make(map[string]float64, len(ranked))
	for _, c := range ranked {
		net[c.CoinID] = c.NetScore
	}

	h := Health{}
	risky := decimal.Zero
	weighted := decimal.Zero
	for _, holding := range current {
		h.TotalValue = h.TotalValue.Add(holding.Value)
		if holding.IsCash {
			continue
		}
		h.AssetCount++
		risky = risky.Add(holding.Value)
		weighted = weighted.Add(holding.Value.Mul(decimal.NewFromFloat(net[holding.CoinID])))
	}
	if risky.IsPositive() {
		h.Score = weighted.Div(risky).InexactFloat64()
	}
	return h
}
