package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2015, 10, d, 0, 0, 0, 0, time.UTC)
}

func TestNewPriceMatrixValidation(t *testing.T) {
	_, err := NewPriceMatrix([]string{"KO", "PEP"}, []time.Time{day(1), day(2)}, [][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrRaggedRow)

	_, err = NewPriceMatrix([]string{"KO", "PEP"}, []time.Time{day(2), day(2)}, [][]float64{{1, 2}, {3, 4}})
	assert.ErrorIs(t, err, ErrUnorderedIndex)

	_, err = NewPriceMatrix([]string{"KO", "KO"}, []time.Time{day(1)}, [][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrDuplicateSymbol)

	m, err := NewPriceMatrix([]string{"KO", "PEP"}, []time.Time{day(1), day(2)}, [][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, 2, m.Cols())
	assert.Equal(t, []float64{2, 4}, m.Column(1))
	assert.Equal(t, 1, m.SymbolIndex("PEP"))
	assert.Equal(t, -1, m.SymbolIndex("XOM"))
}

func TestSliceBounds(t *testing.T) {
	m, err := NewPriceMatrix([]string{"A"}, []time.Time{day(1), day(2), day(3), day(4)},
		[][]float64{{1}, {2}, {3}, {4}})
	require.NoError(t, err)

	s := m.Slice(day(2), day(4))
	assert.Equal(t, []time.Time{day(2), day(3)}, s.Index)

	open := m.Slice(time.Time{}, day(3))
	assert.Equal(t, 2, open.Rows())

	tail := m.Slice(day(3), time.Time{})
	assert.Equal(t, []float64{3, 4}, tail.Column(0))
}

func TestDropIncomplete(t *testing.T) {
	m, err := NewPriceMatrix([]string{"A", "B"}, []time.Time{day(1), day(2), day(3)},
		[][]float64{{1, 2}, {math.NaN(), 3}, {4, 5}})
	require.NoError(t, err)

	clean := m.DropIncomplete()
	assert.Equal(t, []time.Time{day(1), day(3)}, clean.Index)

	d, err := clean.Dense()
	require.NoError(t, err)
	r, c := d.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 5.0, d.At(1, 1))
}

func TestParseSignificance(t *testing.T) {
	tests := []struct {
		in   string
		want Significance
	}{
		{"90%", Significance90},
		{"10%", Significance90},
		{"95%", Significance95},
		{"5%", Significance95},
		{"99%", Significance99},
		{"1%", Significance99},
	}
	for _, tt := range tests {
		got, err := ParseSignificance(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseSignificance("97.5%")
	assert.ErrorIs(t, err, ErrInvalidSignificance)
	assert.Equal(t, 1, Significance95.Column())
	assert.Equal(t, "99%", Significance99.String())
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2015-10-01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, day(1), ts)

	ts, err = ParseTimestamp("2015-10-01 15:30:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 15, ts.Hour())

	ts, err = ParseTimestamp("2015-10-01T09:30:00-04:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 13, ts.UTC().Hour())

	_, err = ParseTimestamp("01/10/2015", time.UTC)
	assert.Error(t, err)
}
