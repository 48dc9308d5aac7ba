package backtest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// HalfLife regresses Δy(t) on y(t-1) with an intercept and returns
// round(-ln 2 / slope) periods. A non-negative or undefined slope means the
// series shows no mean reversion and is reported as ErrDegenerateHalfLife.
func HalfLife(y []float64) (int, float64, error) {
	if len(y) < 3 {
		return 0, math.NaN(), fmt.Errorf("%w: %d observations", ErrDegenerateHalfLife, len(y))
	}
	lagged := y[:len(y)-1]
	delta := make([]float64, len(y)-1)
	for i := 1; i < len(y); i++ {
		delta[i-1] = y[i] - y[i-1]
	}

	_, slope := stat.LinearRegression(lagged, delta, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) || slope >= 0 {
		return 0, slope, fmt.Errorf("%w: slope %v", ErrDegenerateHalfLife, slope)
	}
	return int(math.Round(-math.Ln2 / slope)), slope, nil
}
