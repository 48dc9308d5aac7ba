// Package johansen estimates cointegrating relationships between price series
// with the Johansen trace-test procedure.
package johansen

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/TruWeaveTrader/cointeg/internal/models"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInsufficientData is returned when the calibration sample is too short,
	// or too collinear, for a full-rank residual regression.
	ErrInsufficientData = errors.New("insufficient data for johansen estimation")
	// ErrNoCointegration is returned when no relation passes the trace test.
	ErrNoCointegration   = errors.New("no cointegration vector at the requested significance")
	ErrInvalidLags       = errors.New("lag order must be at least 1")
	ErrInvalidTrendOrder = errors.New("trend order must be -1, 0 or 1")
	ErrTooFewSeries      = errors.New("at least two series are required")
	ErrMissingValues     = errors.New("price matrix contains missing or non-finite values")
)

// Result holds the output of a Johansen estimation. It is not modified after
// Estimate returns and may be shared.
type Result struct {
	Eigenvalues            []float64        `json:"eigenvalues"`
	Eigenvectors           *mat.Dense       `json:"-"`
	TraceStatistics        []float64        `json:"trace_statistics"`
	MaxEigenStatistics     []float64        `json:"max_eigen_statistics"`
	TraceCriticalValues    []CriticalValues `json:"trace_critical_values"`
	MaxEigenCriticalValues []CriticalValues `json:"max_eigen_critical_values"`

	Trend        TrendOrder          `json:"trend"`
	Lags         int                 `json:"lags"`
	SampleCount  int                 `json:"sample_count"`
	Significance models.Significance `json:"significance"`

	CountCointegrationVectors int `json:"count_cointegration_vectors"`
}

// Johansen runs the estimation on an N×M matrix of levels (N observations,
// M series) with k lagged differences. The trend order only selects the
// critical-value family; the data are always demeaned.
// CountCointegrationVectors is left at zero, see Estimate.
func Johansen(x mat.Matrix, trend TrendOrder, lags int) (*Result, error) {
	if lags < 1 {
		return nil, ErrInvalidLags
	}
	if !trend.Valid() {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTrendOrder, trend)
	}
	nobs, m := x.Dims()
	if m < 2 {
		return nil, ErrTooFewSeries
	}
	samples := nobs - 1 - lags
	if samples <= m*lags {
		return nil, fmt.Errorf("%w: %d samples for %d lagged regressors", ErrInsufficientData, samples, m*lags)
	}
	for i := 0; i < nobs; i++ {
		if !finite(mat.Row(nil, i, x)) {
			return nil, fmt.Errorf("%w: row %d", ErrMissingValues, i)
		}
	}

	level := demean(x)
	dx := diff(level)
	z := demean(rowRange(lagMatrix(dx, lags), lags, nobs-1))
	dxt := demean(rowRange(dx, lags, nobs-1))

	// differences on lagged differences
	r0t, err := residuals(dxt, z)
	if err != nil {
		return nil, err
	}
	// lagged levels on lagged differences
	lx := demean(rowRange(level, 1, nobs-lags))
	rkt, err := residuals(lx, z)
	if err != nil {
		return nil, err
	}

	t, _ := rkt.Dims()
	skk := moment(rkt, rkt, t)
	sk0 := moment(rkt, r0t, t)
	s00 := moment(r0t, r0t, t)

	var s00inv, skkinv mat.Dense
	if err := s00inv.Inverse(s00); err != nil {
		return nil, fmt.Errorf("%w: S00 not invertible: %v", ErrInsufficientData, err)
	}
	if err := skkinv.Inverse(skk); err != nil {
		return nil, fmt.Errorf("%w: Skk not invertible: %v", ErrInsufficientData, err)
	}

	var tmp, sig, prod mat.Dense
	tmp.Mul(&s00inv, sk0.T())
	sig.Mul(sk0, &tmp)
	prod.Mul(&skkinv, &sig)

	values, vectors, err := eigenReal(&prod)
	if err != nil {
		return nil, err
	}
	normalized, err := normalize(vectors, skk)
	if err != nil {
		return nil, err
	}

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] > values[order[b]]
	})

	res := &Result{
		Eigenvalues:            make([]float64, m),
		Eigenvectors:           mat.NewDense(m, m, nil),
		TraceStatistics:        make([]float64, m),
		MaxEigenStatistics:     make([]float64, m),
		TraceCriticalValues:    make([]CriticalValues, m),
		MaxEigenCriticalValues: make([]CriticalValues, m),
		Trend:                  trend,
		Lags:                   lags,
		SampleCount:            t,
	}
	for dst, src := range order {
		res.Eigenvalues[dst] = values[src]
		for i := 0; i < m; i++ {
			res.Eigenvectors.Set(i, dst, normalized.At(i, src))
		}
	}
	if !finite(res.Eigenvalues) {
		return nil, fmt.Errorf("%w: non-finite eigenvalues", ErrInsufficientData)
	}

	ft := float64(t)
	for i := 0; i < m; i++ {
		var sum float64
		for j := i; j < m; j++ {
			sum += math.Log(1 - res.Eigenvalues[j])
		}
		res.TraceStatistics[i] = -ft * sum
		res.MaxEigenStatistics[i] = -ft * math.Log(1-res.Eigenvalues[i])
		res.TraceCriticalValues[i] = TraceCriticalValues(m-i, trend)
		res.MaxEigenCriticalValues[i] = MaxEigenCriticalValues(m-i, trend)
	}
	return res, nil
}

// Estimate runs Johansen with a constant trend order and counts the
// cointegration vectors at the requested significance.
func Estimate(x mat.Matrix, lags int, sig models.Significance) (*Result, error) {
	return EstimateTrend(x, TrendConstant, lags, sig)
}

// EstimateTrend is Estimate with an explicit critical-value family
func EstimateTrend(x mat.Matrix, trend TrendOrder, lags int, sig models.Significance) (*Result, error) {
	if !sig.Valid() {
		return nil, models.ErrInvalidSignificance
	}
	res, err := Johansen(x, trend, lags)
	if err != nil {
		return nil, err
	}
	res.Significance = sig
	res.CountCointegrationVectors = countRelations(res.TraceStatistics, res.TraceCriticalValues, sig)
	return res, nil
}

// countRelations counts the leading relation counts whose trace statistic
// strictly exceeds the critical value. Counting stops at the first
// non-rejection or at the first missing critical value.
func countRelations(stats []float64, cvs []CriticalValues, sig models.Significance) int {
	count := 0
	for i, stat := range stats {
		if !cvs[i].Available() || stat <= cvs[i].At(sig) {
			break
		}
		count++
	}
	return count
}

// Degraded reports whether any trace critical value was unavailable
func (r *Result) Degraded() bool {
	for _, cv := range r.TraceCriticalValues {
		if !cv.Available() {
			return true
		}
	}
	return false
}

// CointegrationVectors returns the first CountCointegrationVectors columns of
// the eigenvector matrix, or nil when there are none.
func (r *Result) CointegrationVectors() *mat.Dense {
	if r.CountCointegrationVectors == 0 {
		return nil
	}
	rows, _ := r.Eigenvectors.Dims()
	return mat.DenseCopyOf(r.Eigenvectors.Slice(0, rows, 0, r.CountCointegrationVectors))
}

// Vector returns a copy of eigenvector i
func (r *Result) Vector(i int) []float64 {
	return mat.Col(nil, i, r.Eigenvectors)
}

// CointegrationVector returns cointegration vector i, or ErrNoCointegration
// when fewer than i+1 vectors passed the test.
func (r *Result) CointegrationVector(i int) ([]float64, error) {
	if r.CountCointegrationVectors == 0 {
		return nil, ErrNoCointegration
	}
	if i < 0 || i >= r.CountCointegrationVectors {
		return nil, fmt.Errorf("%w: vector %d requested, %d available", ErrNoCointegration, i, r.CountCointegrationVectors)
	}
	return r.Vector(i), nil
}

// Normalize scales v so that component j equals -1, giving hedge ratios
// against security j.
func Normalize(v []float64, j int) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / -v[j]
	}
	return out
}
