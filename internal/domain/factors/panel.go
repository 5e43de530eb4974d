package factors

import (
	"fmt"
	"sort"

	"github.com/sawpanic/cryptorank/internal/domain/frame"
)

// AssetRef identifies one row of a factor panel
type AssetRef struct {
	CoinID string `json:"coin_id"`
	Symbol string `json:"symbol"`
}

// Panel holds normalized factor values for one evaluation date. Every column
// is aligned with Assets; values are finite and within [-clip, clip].
type Panel struct {
	assets  []AssetRef
	factors map[string][]float64
	clip    float64
}

// NewPanel creates an empty panel over the given assets
func NewPanel(assets []AssetRef) *Panel {
	return &Panel{
		assets:  append([]AssetRef(nil), assets...),
		factors: make(map[string][]float64),
		clip:    DefaultNormalizer().Clip,
	}
}

// Assets returns the row axis. Callers must not modify it.
func (p *Panel) Assets() []AssetRef { return p.assets }

// Len returns the number of assets
func (p *Panel) Len() int { return len(p.assets) }

// Set stores a factor column. Missing values become 0 and everything is
// clipped, so the panel invariant holds whatever the caller passes.
func (p *Panel) Set(name string, values []float64) error {
	if len(values) != len(p.assets) {
		return fmt.Errorf("factor %s has %d values for %d assets: %w", name, len(values), len(p.assets), frame.ErrShape)
	}
	col := make([]float64, len(values))
	for i, v := range values {
		if isMissing(v) {
			continue
		}
		col[i] = clip(v, p.clip)
	}
	p.factors[name] = col
	return nil
}

// Factor returns a factor column
func (p *Panel) Factor(name string) ([]float64, bool) {
	col, ok := p.factors[name]
	return col, ok
}

// Has reports whether the panel carries a factor
func (p *Panel) Has(name string) bool {
	_, ok := p.factors[name]
	return ok
}

// Names returns the factor names in sorted order
func (p *Panel) Names() []string {
	names := make([]string, 0, len(p.factors))
	for name := range p.factors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Value returns the z-score of asset i for a factor, 0 when absent
func (p *Panel) Value(i int, name string) float64 {
	col, ok := p.factors[name]
	if !ok || i < 0 || i >= len(col) {
		return 0
	}
	return col[i]
}

// RollingPanel maps a factor name to its date x asset z-score matrix. All
// matrices share the price matrix's shape.
type RollingPanel map[string]*frame.Matrix

// Names returns the factor names in sorted order
func (rp RollingPanel) Names() []string {
	names := make([]string, 0, len(rp))
	for name := range rp {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckShape returns an error when any factor matrix does not match ref
func (rp RollingPanel) CheckShape(ref *frame.Matrix) error {
	for _, name := range rp.Names() {
		if !rp[name].SameShape(ref) {
			return fmt.Errorf("rolling factor %s: %w", name, frame.ErrShape)
		}
	}
	return nil
}

// At slices one date out of the rolling panel. Symbols default to coin ids.
func (rp RollingPanel) At(row int) (*Panel, error) {
	ref := rp.first()
	if ref.Empty() {
		return NewPanel(nil), nil
	}
	if row < 0 || row >= ref.Rows() {
		return nil, fmt.Errorf("row %d outside %d dates", row, ref.Rows())
	}

	assets := make([]AssetRef, ref.Cols())
	for j, id := range ref.Assets() {
		assets[j] = AssetRef{CoinID: id, Symbol: id}
	}
	p := NewPanel(assets)
	for _, name := range rp.Names() {
		m := rp[name]
		if !m.SameShape(ref) {
			return nil, fmt.Errorf("rolling factor %s: %w", name, frame.ErrShape)
		}
		if err := p.Set(name, m.Row(row)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Latest slices the most recent date, the one live ranking scores against
func (rp RollingPanel) Latest() (*Panel, error) {
	ref := rp.first()
	if ref.Empty() {
		return NewPanel(nil), nil
	}
	return rp.At(ref.Rows() - 1)
}

func (rp RollingPanel) first() *frame.Matrix {
	names := rp.Names()
	if len(names) == 0 {
		return nil
	}
	return rp[names[0]]
}
