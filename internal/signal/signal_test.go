package signal

import (
	"math"
	"testing"
	"time"

	"github.com/TruWeaveTrader/cointeg/internal/johansen"
	"github.com/TruWeaveTrader/cointeg/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour, min int) time.Time {
	return time.Date(2015, 10, day, hour, min, 0, 0, time.UTC)
}

func intraday(t *testing.T) *models.PriceMatrix {
	t.Helper()
	nan := math.NaN()
	m, err := models.NewPriceMatrix(
		[]string{"KO", "PEP"},
		[]time.Time{at(1, 9, 30), at(1, 12, 0), at(1, 15, 59), at(2, 10, 0), at(2, 14, 0), at(5, 11, 0)},
		[][]float64{
			{40, 100},
			{41, nan},
			{nan, 102},
			{42, nan},
			{43, nan},
			{nan, 99},
		},
	)
	require.NoError(t, err)
	return m
}

func TestDailyLastObservation(t *testing.T) {
	d := Daily(intraday(t))

	assert.Equal(t, []time.Time{at(1, 0, 0), at(2, 0, 0), at(5, 0, 0)}, d.Index)
	assert.Equal(t, []float64{41, 102}, d.Values[0])
	assert.Equal(t, 43.0, d.Values[1][0])
	assert.True(t, math.IsNaN(d.Values[1][1]))
	assert.True(t, math.IsNaN(d.Values[2][0]))
	assert.Equal(t, 99.0, d.Values[2][1])
}

func TestDailyKeepsLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	ts := time.Date(2015, 10, 1, 23, 0, 0, 0, ny)
	m, err := models.NewPriceMatrix([]string{"A"}, []time.Time{ts}, [][]float64{{1}})
	require.NoError(t, err)

	d := Daily(m)
	assert.Equal(t, time.Date(2015, 10, 1, 0, 0, 0, 0, ny), d.Index[0])
	assert.Equal(t, ny, d.Index[0].Location())
}

func TestProjectDropsMissing(t *testing.T) {
	s, err := Project(Daily(intraday(t)), []float64{1, -0.5})
	require.NoError(t, err)

	assert.Equal(t, []time.Time{at(1, 0, 0)}, s.Index)
	assert.Equal(t, []float64{41 - 51}, s.Values)
}

func TestProjectErrors(t *testing.T) {
	m := intraday(t)

	_, err := Project(m, nil)
	assert.ErrorIs(t, err, johansen.ErrNoCointegration)

	_, err = Project(m, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBuildBounds(t *testing.T) {
	m, err := models.NewPriceMatrix(
		[]string{"A", "B"},
		[]time.Time{at(1, 10, 0), at(1, 16, 0), at(2, 10, 0), at(3, 10, 0), at(4, 10, 0)},
		[][]float64{{1, 1}, {2, 1}, {3, 1}, {4, 2}, {5, 2}},
	)
	require.NoError(t, err)

	// a start inside day 1 drops that partial day
	start := at(1, 12, 0)
	s, err := Build(m, []float64{1, 1}, start, at(4, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(2, 0, 0), at(3, 0, 0)}, s.Index)
	assert.Equal(t, []float64{4, 6}, s.Values)
	assert.Equal(t, 6.0, s.Last())
	for _, ts := range s.Index {
		assert.False(t, ts.Before(start), "row %s stamped before start", ts)
	}

	// midnight bounds keep whole days
	days, err := Build(m, []float64{1, 1}, at(1, 0, 0), at(4, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(1, 0, 0), at(2, 0, 0), at(3, 0, 0)}, days.Index)
	assert.Equal(t, []float64{3, 4, 6}, days.Values)

	all, err := Build(m, []float64{1, 0}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4, 5}, all.Values)
}

func TestWindowStampsInsideBounds(t *testing.T) {
	w := Window(intraday(t), at(1, 10, 0), at(5, 0, 0))

	assert.Equal(t, []time.Time{at(2, 0, 0)}, w.Index)
	assert.Equal(t, 43.0, w.Values[0][0])
	assert.True(t, math.IsNaN(w.Values[0][1]))
}
