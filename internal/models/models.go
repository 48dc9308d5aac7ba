package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyMatrix         = errors.New("price matrix has no rows")
	ErrRaggedRow           = errors.New("row width does not match symbol count")
	ErrUnorderedIndex      = errors.New("timestamps must be strictly ascending")
	ErrDuplicateSymbol     = errors.New("duplicate symbol")
	ErrInvalidSignificance = errors.New("significance must be one of 90%, 95%, 99%")
)

// Significance is a confidence tier used by the critical-value tables
type Significance int

const (
	Significance90 Significance = iota
	Significance95
	Significance99
)

// ParseSignificance accepts confidence levels ("95%") and test sizes ("5%")
func ParseSignificance(s string) (Significance, error) {
	switch strings.TrimSpace(s) {
	case "90%", "90", "10%", "0.10", "0.1":
		return Significance90, nil
	case "95%", "95", "5%", "0.05":
		return Significance95, nil
	case "99%", "99", "1%", "0.01":
		return Significance99, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSignificance, s)
}

// Column returns the critical-value table column for the tier
func (s Significance) Column() int {
	return int(s)
}

// Valid reports whether s is one of the three supported tiers
func (s Significance) Valid() bool {
	return s >= Significance90 && s <= Significance99
}

func (s Significance) String() string {
	switch s {
	case Significance90:
		return "90%"
	case Significance95:
		return "95%"
	case Significance99:
		return "99%"
	}
	return fmt.Sprintf("Significance(%d)", int(s))
}

// PriceMatrix is a time-ascending multivariate price table, one column per symbol.
// Missing observations are NaN.
type PriceMatrix struct {
	Symbols []string    `json:"symbols"`
	Index   []time.Time `json:"index"`
	Values  [][]float64 `json:"values"`
}

// NewPriceMatrix validates shape and ordering and returns the matrix
func NewPriceMatrix(symbols []string, index []time.Time, values [][]float64) (*PriceMatrix, error) {
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if seen[s] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSymbol, s)
		}
		seen[s] = true
	}
	if len(index) != len(values) {
		return nil, fmt.Errorf("index has %d timestamps for %d rows", len(index), len(values))
	}
	for i, row := range values {
		if len(row) != len(symbols) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrRaggedRow, i, len(row), len(symbols))
		}
		if i > 0 && !index[i].After(index[i-1]) {
			return nil, fmt.Errorf("%w: %s after %s", ErrUnorderedIndex, index[i], index[i-1])
		}
	}
	return &PriceMatrix{Symbols: symbols, Index: index, Values: values}, nil
}

// Rows returns the number of observations
func (m *PriceMatrix) Rows() int {
	return len(m.Values)
}

// Cols returns the number of securities
func (m *PriceMatrix) Cols() int {
	return len(m.Symbols)
}

// Row returns a copy of row i
func (m *PriceMatrix) Row(i int) []float64 {
	row := make([]float64, len(m.Values[i]))
	copy(row, m.Values[i])
	return row
}

// Column returns a copy of column j
func (m *PriceMatrix) Column(j int) []float64 {
	col := make([]float64, len(m.Values))
	for i, row := range m.Values {
		col[i] = row[j]
	}
	return col
}

// SymbolIndex returns the column of symbol, or -1
func (m *PriceMatrix) SymbolIndex(symbol string) int {
	for j, s := range m.Symbols {
		if s == symbol {
			return j
		}
	}
	return -1
}

// Slice returns the rows with start <= t < end. A zero bound is open.
func (m *PriceMatrix) Slice(start, end time.Time) *PriceMatrix {
	out := &PriceMatrix{Symbols: m.Symbols}
	for i, ts := range m.Index {
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && !ts.Before(end) {
			break
		}
		out.Index = append(out.Index, ts)
		out.Values = append(out.Values, m.Values[i])
	}
	return out
}

// DropIncomplete returns the rows without any missing value
func (m *PriceMatrix) DropIncomplete() *PriceMatrix {
	out := &PriceMatrix{Symbols: m.Symbols}
	for i, row := range m.Values {
		if hasNaN(row) {
			continue
		}
		out.Index = append(out.Index, m.Index[i])
		out.Values = append(out.Values, row)
	}
	return out
}

// Dense copies the values into a gonum matrix
func (m *PriceMatrix) Dense() (*mat.Dense, error) {
	if m.Rows() == 0 || m.Cols() == 0 {
		return nil, ErrEmptyMatrix
	}
	d := mat.NewDense(m.Rows(), m.Cols(), nil)
	for i, row := range m.Values {
		d.SetRow(i, row)
	}
	return d, nil
}

func hasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Series is a time-indexed scalar sequence
type Series struct {
	Index  []time.Time `json:"index"`
	Values []float64   `json:"values"`
}

// Len returns the number of points
func (s Series) Len() int {
	return len(s.Values)
}

// Last returns the latest value, or NaN when empty
func (s Series) Last() float64 {
	if len(s.Values) == 0 {
		return math.NaN()
	}
	return s.Values[len(s.Values)-1]
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339, "2006-01-02 15:04:05" and plain dates.
// Timestamps without a zone are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
