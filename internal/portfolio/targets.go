package portfolio

import (
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/cryptorank/internal/domain/ranking"
)

// Action is the trade needed to move a holding to its target
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Config defines how rankings turn into a target portfolio
type Config struct {
	MaxAssets          int     `yaml:"max_assets" json:"max_assets" default:"10" validate:"gte=1"`
	MinNetScore        float64 `yaml:"min_net_score" json:"min_net_score" default:"20"`
	CashBuffer         float64 `yaml:"cash_buffer" json:"cash_buffer" default:"0.05" validate:"gte=0,lt=1"`
	RebalanceThreshold float64 `yaml:"rebalance_threshold" json:"rebalance_threshold" default:"0.05" validate:"gte=0"`
	VirtualEquityUSD   float64 `yaml:"virtual_equity_usd" json:"virtual_equity_usd" default:"1000" validate:"gt=0"`
}

// DefaultConfig returns a ten-asset portfolio with a 5% cash buffer
func DefaultConfig() Config {
	return Config{
		MaxAssets:          10,
		MinNetScore:        20,
		CashBuffer:         0.05,
		RebalanceThreshold: 0.05,
		VirtualEquityUSD:   1000,
	}
}

// Holding is one position of the current portfolio
type Holding struct {
	CoinID string          `json:"coin_id" yaml:"coin_id"`
	Symbol string          `json:"symbol" yaml:"symbol"`
	Amount decimal.Decimal `json:"amount" yaml:"amount"`
	Value  decimal.Decimal `json:"value_usd" yaml:"value_usd"`
	IsCash bool            `json:"is_cash" yaml:"is_cash"`
}

// Target is one position of the planned portfolio
type Target struct {
	CoinID   string          `json:"coin_id"`
	Symbol   string          `json:"symbol"`
	NetScore float64         `json:"net_score"`
	Weight   decimal.Decimal `json:"target_weight"`
	Value    decimal.Decimal `json:"target_value_usd"`
}

// Delta is the plan-vs-fact line for one asset
type Delta struct {
	CoinID        string          `json:"coin_id"`
	Symbol        string          `json:"symbol"`
	TargetWeight  decimal.Decimal `json:"target_weight"`
	CurrentWeight decimal.Decimal `json:"current_weight"`
	WeightDelta   decimal.Decimal `json:"weight_delta"`
	TargetValue   decimal.Decimal `json:"target_value_usd"`
	CurrentValue  decimal.Decimal `json:"current_value_usd"`
	ValueDelta    decimal.Decimal `json:"value_delta"`
	Action        Action          `json:"action"`
}

// Planner turns rankings into target weights and trade deltas
type Planner struct {
	config Config
}

// NewPlanner creates a portfolio planner
func NewPlanner(config Config) *Planner {
	return &Planner{config: config}
}

// Targets allocates the invested share of equity across the first
// MaxAssets ranked assets whose net score clears MinNetScore, in proportion
// to net score. Rankings are expected in final-rank order.
func (p *Planner) Targets(ranked []ranking.Combined, equity decimal.Decimal) []Target {
	candidates := make([]ranking.Combined, 0, p.config.MaxAssets)
	for _, c := range ranked {
		if len(candidates) == p.config.MaxAssets {
			break
		}
		if c.NetScore > p.config.MinNetScore {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		log.Warn().Float64("min_net_score", p.config.MinNetScore).Msg("no asset qualifies for the target portfolio, stay in cash")
		return nil
	}

	sum := decimal.Zero
	for _, c := range candidates {
		sum = sum.Add(decimal.NewFromFloat(c.NetScore))
	}
	invested := equity.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(p.config.CashBuffer)))

	out := make([]Target, len(candidates))
	for i, c := range candidates {
		weight := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(candidates))))
		if sum.IsPositive() {
			weight = decimal.NewFromFloat(c.NetScore).Div(sum)
		}
		out[i] = Target{
			CoinID:   c.CoinID,
			Symbol:   c.Symbol,
			NetScore: c.NetScore,
			Weight:   weight,
			Value:    weight.Mul(invested),
		}
	}
	return out
}

// Compare joins the target portfolio built from ranked against the current
// holdings. Cash lines count toward equity but get no delta. An empty
// portfolio is planned against the virtual equity. Deltas are sorted by
// value delta ascending so sells come first.
func (p *Planner) Compare(current []Holding, ranked []ranking.Combined) []Delta {
	total := decimal.Zero
	for _, h := range current {
		total = total.Add(h.Value)
	}
	if len(current) == 0 || !total.IsPositive() {
		total = decimal.NewFromFloat(p.config.VirtualEquityUSD)
	}

	deltas := map[string]*Delta{}
	order := []string{}
	get := func(id, symbol string) *Delta {
		if d, ok := deltas[id]; ok {
			if d.Symbol == "" {
				d.Symbol = symbol
			}
			return d
		}
		d := &Delta{CoinID: id, Symbol: symbol}
		deltas[id] = d
		order = append(order, id)
		return d
	}

	for _, t := range p.Targets(ranked, total) {
		d := get(t.CoinID, t.Symbol)
		d.TargetWeight = t.Weight
		d.TargetValue = t.Value
	}
	for _, h := range current {
		if h.IsCash {
			continue
		}
		d := get(h.CoinID, h.Symbol)
		d.CurrentValue = d.CurrentValue.Add(h.Value)
	}

	threshold := decimal.NewFromFloat(p.config.RebalanceThreshold)
	out := make([]Delta, 0, len(order))
	for _, id := range order {
		d := deltas[id]
		d.CurrentWeight = d.CurrentValue.Div(total)
		d.WeightDelta = d.TargetWeight.Sub(d.CurrentWeight)
		d.ValueDelta = d.TargetValue.Sub(d.CurrentValue)
		switch {
		case d.WeightDelta.GreaterThan(threshold):
			d.Action = ActionBuy
		case d.WeightDelta.LessThan(threshold.Neg()):
			d.Action = ActionSell
		default:
			d.Action = ActionHold
		}
		out = append(out, *d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].ValueDelta.Cmp(out[j].ValueDelta); c != 0 {
			return c < 0
		}
		return out[i].CoinID < out[j].CoinID
	})
	return out
}
