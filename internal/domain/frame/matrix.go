package frame

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrShape is returned when two date x asset tables do not line up
var ErrShape = errors.New("frame: shape mismatch")

// Matrix is a date x asset table of float64 values. NaN marks a missing cell.
// Rows are dates in ascending order, columns are asset identifiers.
type Matrix struct {
	dates  []time.Time
	assets []string
	index  map[string]int
	data   *mat.Dense // nil when the matrix has no rows or no columns
}

// NewMatrix creates a matrix for the given axes with every cell missing
func NewMatrix(dates []time.Time, assets []string) *Matrix {
	m := &Matrix{
		dates:  append([]time.Time(nil), dates...),
		assets: append([]string(nil), assets...),
		index:  make(map[string]int, len(assets)),
	}
	for j, a := range m.assets {
		m.index[a] = j
	}

	if len(dates) == 0 || len(assets) == 0 {
		return m
	}

	raw := make([]float64, len(dates)*len(assets))
	for i := range raw {
		raw[i] = math.NaN()
	}
	m.data = mat.NewDense(len(dates), len(assets), raw)
	return m
}

// Dates returns the row axis. Callers must not modify it.
func (m *Matrix) Dates() []time.Time { return m.dates }

// Assets returns the column axis. Callers must not modify it.
func (m *Matrix) Assets() []string { return m.assets }

// Rows returns the number of dates
func (m *Matrix) Rows() int { return len(m.dates) }

// Cols returns the number of assets
func (m *Matrix) Cols() int { return len(m.assets) }

// Empty reports whether the matrix holds no cells
func (m *Matrix) Empty() bool { return m == nil || m.data == nil }

// At returns the value at row i, column j
func (m *Matrix) At(i, j int) float64 { return m.data.At(i, j) }

// Set stores v at row i, column j
func (m *Matrix) Set(i, j int, v float64) { m.data.Set(i, j, v) }

// AssetIndex returns the column of an asset
func (m *Matrix) AssetIndex(asset string) (int, bool) {
	j, ok := m.index[asset]
	return j, ok
}

// Row returns a copy of row i
func (m *Matrix) Row(i int) []float64 {
	if m.Empty() {
		return nil
	}
	return mat.Row(nil, i, m.data)
}

// Column returns a copy of an asset's column
func (m *Matrix) Column(asset string) ([]float64, bool) {
	j, ok := m.index[asset]
	if !ok || m.Empty() {
		return nil, false
	}
	return mat.Col(nil, j, m.data), true
}

// SetRow overwrites row i with values
func (m *Matrix) SetRow(i int, values []float64) {
	m.data.SetRow(i, values)
}

// SameShape reports whether o has identical dates and assets
func (m *Matrix) SameShape(o *Matrix) bool {
	if m == nil || o == nil {
		return m == o
	}
	if len(m.dates) != len(o.dates) || len(m.assets) != len(o.assets) {
		return false
	}
	for i := range m.assets {
		if m.assets[i] != o.assets[i] {
			return false
		}
	}
	for i := range m.dates {
		if !m.dates[i].Equal(o.dates[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy
func (m *Matrix) Clone() *Matrix {
	c := &Matrix{
		dates:  append([]time.Time(nil), m.dates...),
		assets: append([]string(nil), m.assets...),
		index:  make(map[string]int, len(m.assets)),
	}
	for k, v := range m.index {
		c.index[k] = v
	}
	if m.data != nil {
		c.data = mat.DenseCopyOf(m.data)
	}
	return c
}

// Map returns a new matrix with fn applied to every cell
func (m *Matrix) Map(fn func(v float64) float64) *Matrix {
	out := NewMatrix(m.dates, m.assets)
	if m.Empty() {
		return out
	}
	out.data.Apply(func(_, _ int, v float64) float64 { return fn(v) }, m.data)
	return out
}

// Zip combines two same-shaped matrices cell by cell
func (m *Matrix) Zip(o *Matrix, fn func(a, b float64) float64) (*Matrix, error) {
	if !m.SameShape(o) {
		return nil, ErrShape
	}
	out := NewMatrix(m.dates, m.assets)
	if m.Empty() {
		return out, nil
	}
	out.data.Apply(func(i, j int, _ float64) float64 {
		return fn(m.data.At(i, j), o.data.At(i, j))
	}, out.data)
	return out, nil
}

// PctChange returns the fractional change over the given number of rows.
// A cell is missing when either end is missing or the base is zero.
func (m *Matrix) PctChange(periods int) *Matrix {
	out := NewMatrix(m.dates, m.assets)
	if m.Empty() || periods <= 0 {
		return out
	}
	for i := periods; i < m.Rows(); i++ {
		for j := 0; j < m.Cols(); j++ {
			cur, base := m.At(i, j), m.At(i-periods, j)
			if math.IsNaN(cur) || math.IsNaN(base) || base == 0 {
				continue
			}
			out.Set(i, j, cur/base-1)
		}
	}
	return out
}

// LogReturns returns ln(p[t]/p[t-1]) per cell
func (m *Matrix) LogReturns() *Matrix {
	out := NewMatrix(m.dates, m.assets)
	if m.Empty() {
		return out
	}
	for i := 1; i < m.Rows(); i++ {
		for j := 0; j < m.Cols(); j++ {
			cur, prev := m.At(i, j), m.At(i-1, j)
			if math.IsNaN(cur) || math.IsNaN(prev) || cur <= 0 || prev <= 0 {
				continue
			}
			out.Set(i, j, math.Log(cur/prev))
		}
	}
	return out
}

// RollingStd returns the sample standard deviation over a trailing window of
// rows. The window must be complete: any missing cell inside it yields NaN.
func (m *Matrix) RollingStd(window int) *Matrix {
	out := NewMatrix(m.dates, m.assets)
	if m.Empty() || window < 2 {
		return out
	}
	buf := make([]float64, window)
	for j := 0; j < m.Cols(); j++ {
	rows:
		for i := window - 1; i < m.Rows(); i++ {
			for k := 0; k < window; k++ {
				v := m.At(i-window+1+k, j)
				if math.IsNaN(v) {
					continue rows
				}
				buf[k] = v
			}
			out.Set(i, j, stat.StdDev(buf, nil))
		}
	}
	return out
}
