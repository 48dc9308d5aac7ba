// Package signal projects price matrices onto cointegration vectors.
package signal

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/TruWeaveTrader/cointeg/internal/johansen"
	"github.com/TruWeaveTrader/cointeg/internal/models"
	"gonum.org/v1/gonum/floats"
)

// ErrDimensionMismatch is returned when the vector length differs from the column count
var ErrDimensionMismatch = errors.New("vector length does not match price columns")

// Daily collapses the matrix to one row per calendar day. Each column keeps
// the last non-missing observation of the day; rows are stamped at midnight
// in the location of the source timestamps.
func Daily(m *models.PriceMatrix) *models.PriceMatrix {
	out := &models.PriceMatrix{Symbols: m.Symbols}
	var current time.Time
	for i, ts := range m.Index {
		day := midnight(ts)
		if len(out.Index) == 0 || !day.Equal(current) {
			current = day
			row := make([]float64, len(m.Symbols))
			for j := range row {
				row[j] = math.NaN()
			}
			out.Index = append(out.Index, day)
			out.Values = append(out.Values, row)
		}
		row := out.Values[len(out.Values)-1]
		for j, v := range m.Values[i] {
			if !math.IsNaN(v) {
				row[j] = v
			}
		}
	}
	return out
}

func midnight(ts time.Time) time.Time {
	y, mo, d := ts.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, ts.Location())
}

// Project returns m·vector row by row, dropping rows whose product is missing
func Project(m *models.PriceMatrix, vector []float64) (models.Series, error) {
	if len(vector) == 0 {
		return models.Series{}, johansen.ErrNoCointegration
	}
	if len(vector) != m.Cols() {
		return models.Series{}, fmt.Errorf("%w: %d components for %d columns", ErrDimensionMismatch, len(vector), m.Cols())
	}
	var s models.Series
	for i, row := range m.Values {
		v := floats.Dot(row, vector)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		s.Index = append(s.Index, m.Index[i])
		s.Values = append(s.Values, v)
	}
	return s, nil
}

// Window aggregates the observations in [start, end) to daily rows and keeps
// only the days whose midnight stamp is also in [start, end). A start bound
// inside a day therefore drops that partial day.
func Window(m *models.PriceMatrix, start, end time.Time) *models.PriceMatrix {
	return Daily(m.Slice(start, end)).Slice(start, end)
}

// Build projects the daily window [start, end) of m onto vector
func Build(m *models.PriceMatrix, vector []float64, start, end time.Time) (models.Series, error) {
	return Project(Window(m, start, end), vector)
}
