package factors

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// Factor names shared by the snapshot builder, the rolling engine and strategies
const (
	MomentumLong         = "momentum_30d"
	MomentumShortBearish = "momentum_7d_bearish"
	QualitySharpe        = "quality_sharpe"
	LowVolatility        = "low_volatility"
	HighVolatility       = "high_volatility"
	SizeLarge            = "size_large"
	CorrelationLow       = "correlation_low"
	ValueNVT             = "value_nvt"
	TVLStrength          = "tvl_strength"
	DeFiValue            = "defi_value"
	QualityDev           = "quality_dev"
	CategoryAdvantage    = "category_advantage"
)

// SectorPremium scores how favoured a sector currently is; unknown sectors get 0
var SectorPremium = map[string]float64{
	"DeFi":       1.0,
	"L2":         0.8,
	"L1":         0.6,
	"NFT_Gaming": 0.3,
	"Meme":       0.2,
}

// Extractor reads one raw factor value from a snapshot; ok=false means missing
type Extractor func(s AssetSnapshot) (value float64, ok bool)

// Definition describes one snapshot factor
type Definition struct {
	Name    string
	Reverse bool // lower raw values score higher
	Extract Extractor
}

// Builder turns asset snapshots into a normalized factor panel
type Builder struct {
	normalizer  Normalizer
	definitions []Definition
}

// NewBuilder creates a builder; with no definitions it uses DefaultDefinitions
func NewBuilder(normalizer Normalizer, definitions ...Definition) *Builder {
	if len(definitions) == 0 {
		definitions = DefaultDefinitions()
	}
	return &Builder{normalizer: normalizer, definitions: definitions}
}

// DefaultDefinitions returns the built-in snapshot factors
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: MomentumLong, Extract: optional(func(s AssetSnapshot) *float64 { return s.Return30d })},
		{Name: MomentumShortBearish, Reverse: true, Extract: optional(func(s AssetSnapshot) *float64 { return s.Return7d })},
		{Name: QualitySharpe, Extract: optional(func(s AssetSnapshot) *float64 { return s.Sharpe90d })},
		{Name: LowVolatility, Reverse: true, Extract: optional(func(s AssetSnapshot) *float64 { return s.Volatility30d })},
		{Name: HighVolatility, Extract: optional(func(s AssetSnapshot) *float64 { return s.Volatility30d })},
		{Name: SizeLarge, Extract: func(s AssetSnapshot) (float64, bool) { return logPositive(s.MarketCap) }},
		{Name: CorrelationLow, Reverse: true, Extract: optional(func(s AssetSnapshot) *float64 { return s.CorrelationBTC })},
		{Name: ValueNVT, Extract: optional(func(s AssetSnapshot) *float64 { return s.NVT })},
		{Name: TVLStrength, Extract: func(s AssetSnapshot) (float64, bool) {
			if s.TVL == nil {
				return 0, false
			}
			return logPositive(*s.TVL)
		}},
		{Name: DeFiValue, Reverse: true, Extract: tvlRatio},
		{Name: QualityDev, Extract: optional(func(s AssetSnapshot) *float64 { return s.DeveloperScore })},
		{Name: CategoryAdvantage, Extract: func(s AssetSnapshot) (float64, bool) {
			return SectorPremium[s.Sector], true
		}},
	}
}

// Build evaluates every definition per asset and normalizes each column. An
// asset whose extraction fails is dropped on its own; the rest still score.
func (b *Builder) Build(snapshots []AssetSnapshot) (*Panel, error) {
	assets := make([]AssetRef, 0, len(snapshots))
	rows := make([][]float64, 0, len(snapshots))

	for _, s := range snapshots {
		row, err := b.extractRow(s)
		if err != nil {
			log.Error().Err(err).Str("coin_id", s.CoinID).Msg("dropping asset from factor panel")
			continue
		}
		assets = append(assets, AssetRef{CoinID: s.CoinID, Symbol: s.Symbol})
		rows = append(rows, row)
	}

	panel := NewPanel(assets)
	if len(assets) == 0 {
		log.Warn().Int("snapshots", len(snapshots)).Msg("no assets survived factor extraction")
		return panel, nil
	}

	column := make([]float64, len(rows))
	for k, def := range b.definitions {
		for i := range rows {
			column[i] = rows[i][k]
		}
		if err := panel.Set(def.Name, b.normalizer.Normalize(column, def.Reverse)); err != nil {
			return nil, err
		}
	}

	log.Debug().Int("assets", panel.Len()).Int("factors", len(b.definitions)).Msg("factor panel built")
	return panel, nil
}

func (b *Builder) extractRow(s AssetSnapshot) (row []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factor extraction panicked: %v", r)
		}
	}()

	row = make([]float64, len(b.definitions))
	for k, def := range b.definitions {
		v, ok := def.Extract(s)
		if !ok || isMissing(v) {
			row[k] = math.NaN()
			continue
		}
		row[k] = v
	}
	return row, nil
}

func optional(field func(AssetSnapshot) *float64) Extractor {
	return func(s AssetSnapshot) (float64, bool) {
		p := field(s)
		if p == nil {
			return 0, false
		}
		return *p, true
	}
}

func logPositive(v float64) (float64, bool) {
	if v <= 0 || isMissing(v) {
		return 0, false
	}
	return math.Log(v), true
}

// tvlRatio prefers the reported market cap / TVL ratio and derives it otherwise
func tvlRatio(s AssetSnapshot) (float64, bool) {
	if s.TVLRatio != nil {
		return *s.TVLRatio, true
	}
	if s.TVL == nil || *s.TVL <= 0 || s.MarketCap <= 0 {
		return 0, false
	}
	return s.MarketCap / *s.TVL, true
}
