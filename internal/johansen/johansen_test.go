package johansen

import (
	"math"
	"testing"

	"github.com/TruWeaveTrader/cointeg/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// splitmix64 is a small deterministic source, so fixtures and the reference
// values pinned below do not depend on the math/rand implementation.
type splitmix64 uint64

func (s *splitmix64) next() uint64 {
	*s += 0x9E3779B97F4A7C15
	z := uint64(*s)
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func (s *splitmix64) uniform() float64 {
	return float64(s.next()>>11) / (1 << 53)
}

// normal is the Irwin-Hall sum of twelve uniforms, an approximate N(0, 1) draw
func (s *splitmix64) normal() float64 {
	var sum float64
	for i := 0; i < 12; i++ {
		sum += s.uniform()
	}
	return sum - 6
}

// commonTrend builds x1 = cumsum(s1)+s2, x2 = 0.5·cumsum(s1)+s3, x3 = s3:
// three series sharing one stochastic trend, hence two cointegrating relations.
func commonTrend(n int, seed uint64) *mat.Dense {
	rng := splitmix64(seed)
	x := mat.NewDense(n, 3, nil)
	var walk float64
	for i := 0; i < n; i++ {
		s1, s2, s3 := rng.normal(), rng.normal(), rng.normal()
		walk += s1
		x.Set(i, 0, walk+s2)
		x.Set(i, 1, 0.5*walk+s3)
		x.Set(i, 2, s3)
	}
	return x
}

// independentWalks builds two unrelated random walks
func independentWalks(n int, seed uint64) *mat.Dense {
	rng := splitmix64(seed)
	x := mat.NewDense(n, 2, nil)
	var a, b float64
	for i := 0; i < n; i++ {
		a += rng.normal()
		b += rng.normal()
		x.Set(i, 0, a+100)
		x.Set(i, 1, b+50)
	}
	return x
}

// sameSign flips v when it points away from ref; eigenvectors are only
// defined up to sign.
func sameSign(v, ref []float64) []float64 {
	var dot float64
	for i := range v {
		dot += v[i] * ref[i]
	}
	if dot >= 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}

func TestCriticalValueLookup(t *testing.T) {
	assert.Equal(t, CriticalValues{2.7055, 3.8415, 6.6349}, TraceCriticalValues(1, TrendConstant))
	assert.Equal(t, CriticalValues{21.7781, 24.2761, 29.5147}, TraceCriticalValues(3, TrendNone))
	assert.Equal(t, CriticalValues{350.1125, 358.7190, 375.3203}, TraceCriticalValues(12, TrendLinear))
	assert.Equal(t, CriticalValues{15.0006, 17.1481, 21.7465}, MaxEigenCriticalValues(2, TrendLinear))
	assert.Equal(t, CriticalValues{9.4748, 11.2246, 15.0923}, MaxEigenCriticalValues(2, TrendNone))

	for _, cv := range []CriticalValues{
		TraceCriticalValues(0, TrendConstant),
		TraceCriticalValues(13, TrendConstant),
		TraceCriticalValues(2, TrendOrder(2)),
		MaxEigenCriticalValues(-1, TrendNone),
		MaxEigenCriticalValues(3, TrendOrder(-2)),
	} {
		assert.False(t, cv.Available())
		assert.Equal(t, CriticalValues{}, cv)
	}

	cv := TraceCriticalValues(2, TrendConstant)
	assert.True(t, cv.Available())
	assert.Equal(t, 13.4294, cv.At(models.Significance90))
	assert.Equal(t, 15.4943, cv.At(models.Significance95))
	assert.Equal(t, 19.9349, cv.At(models.Significance99))
}

func TestEstimateCommonTrend(t *testing.T) {
	x := commonTrend(500, 1)

	res, err := Estimate(x, 1, models.Significance95)
	require.NoError(t, err)

	require.Equal(t, 2, res.CountCointegrationVectors)
	assert.Equal(t, 500-2, res.SampleCount)
	assert.False(t, res.Degraded())

	wantEigenvalues := []float64{0.3728364513073622, 0.3032227695896753, 0.0011707625099907045}
	wantTrace := []float64{412.84643662523274, 180.50556790706707, 0.5833812971262541}
	for i := range wantEigenvalues {
		assert.InDelta(t, wantEigenvalues[i], res.Eigenvalues[i], 1e-5)
		assert.InDelta(t, wantTrace[i], res.TraceStatistics[i], 1e-4)
	}
	assert.InDelta(t, res.TraceStatistics[2], res.MaxEigenStatistics[2], 1e-9)

	vectors := res.CointegrationVectors()
	require.NotNil(t, vectors)
	r, c := vectors.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)

	// eigenvectors scaled so that vᵀ·Skk·v = 1
	want := [][]float64{
		{1.3771754252335635, -2.727683073386946, 2.254176505233728},
		{0.4709162252620089, -0.9191155104248251, 2.1856409236543115},
		// not a cointegration vector: it loads on the common walk
		{0.007929907680387538, 0.17970249938142724, -0.1627219060021106},
	}
	for j, ref := range want {
		got := sameSign(res.Vector(j), ref)
		assert.InDeltaSlice(t, ref, got, 1e-5, "vector %d", j)
	}

	// hedge ratios against the first series
	assert.InDeltaSlice(t, []float64{-1, 1.9806358895231826, -1.6368114504014102}, Normalize(res.Vector(0), 0), 1e-5)
	assert.InDeltaSlice(t, []float64{-1, 1.9517601244540823, -4.641252108988732}, Normalize(res.Vector(1), 0), 1e-5)

	first, err := res.CointegrationVector(0)
	require.NoError(t, err)
	assert.Equal(t, mat.Col(nil, 0, vectors), first)

	_, err = res.CointegrationVector(2)
	assert.ErrorIs(t, err, ErrNoCointegration)
}

func TestEstimateNoCointegration(t *testing.T) {
	res, err := Estimate(independentWalks(400, 1), 1, models.Significance95)
	require.NoError(t, err)

	assert.Equal(t, 0, res.CountCointegrationVectors)
	assert.InDelta(t, 5.485, res.TraceStatistics[0], 1e-3)
	assert.Less(t, res.TraceStatistics[0], res.TraceCriticalValues[0].At(models.Significance95))
	assert.Nil(t, res.CointegrationVectors())

	_, err = res.CointegrationVector(0)
	assert.ErrorIs(t, err, ErrNoCointegration)
}

func TestEstimateSignificanceTiers(t *testing.T) {
	x := commonTrend(2000, 7)

	loose, err := Estimate(x, 1, models.Significance90)
	require.NoError(t, err)
	strict, err := Estimate(x, 1, models.Significance99)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, loose.CountCointegrationVectors, strict.CountCointegrationVectors)
	assert.Equal(t, loose.TraceStatistics, strict.TraceStatistics)
}

func TestEstimateTrend(t *testing.T) {
	x := commonTrend(500, 11)

	constant, err := Estimate(x, 1, models.Significance95)
	require.NoError(t, err)
	linear, err := EstimateTrend(x, TrendLinear, 1, models.Significance95)
	require.NoError(t, err)

	// the trend order only changes the critical values
	assert.Equal(t, constant.TraceStatistics, linear.TraceStatistics)
	assert.Equal(t, TrendLinear, linear.Trend)
	assert.Equal(t, TraceCriticalValues(3, TrendLinear), linear.TraceCriticalValues[0])

	_, err = EstimateTrend(x, TrendOrder(3), 1, models.Significance95)
	assert.ErrorIs(t, err, ErrInvalidTrendOrder)
	_, err = EstimateTrend(x, TrendNone, 1, models.Significance(50))
	assert.ErrorIs(t, err, models.ErrInvalidSignificance)
}

func TestJohansenNormalization(t *testing.T) {
	x := commonTrend(500, 99)
	nobs, _ := x.Dims()
	lags := 2

	level := demean(x)
	dx := diff(level)
	z := demean(rowRange(lagMatrix(dx, lags), lags, nobs-1))
	lx := demean(rowRange(level, 1, nobs-lags))
	rkt, err := residuals(lx, z)
	require.NoError(t, err)

	tRows, _ := rkt.Dims()
	skk := moment(rkt, rkt, tRows)

	// eigenvectors of a symmetric problem are skk-orthogonal, so the
	// Cholesky normalisation should give vᵀ·skk·v = I
	var eig mat.EigenSym
	require.True(t, eig.Factorize(mat.NewSymDense(3, skk.RawMatrix().Data), true))
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	out, err := normalize(&vecs, skk)
	require.NoError(t, err)

	var tmp, g mat.Dense
	tmp.Mul(skk, out)
	g.Mul(out.T(), &tmp)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, g.At(i, j), 1e-9)
		}
	}
}

func TestJohansenInsufficientData(t *testing.T) {
	short := commonTrend(8, 1)
	_, err := Johansen(short, TrendConstant, 2)
	assert.ErrorIs(t, err, ErrInsufficientData)

	// second series is an exact multiple of the first: rank-deficient design
	rng := splitmix64(3)
	x := mat.NewDense(200, 2, nil)
	var walk float64
	for i := 0; i < 200; i++ {
		walk += rng.normal()
		x.Set(i, 0, walk)
		x.Set(i, 1, 2*walk)
	}
	_, err = Estimate(x, 1, models.Significance95)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestJohansenArgumentValidation(t *testing.T) {
	x := commonTrend(100, 5)

	_, err := Johansen(x, TrendConstant, 0)
	assert.ErrorIs(t, err, ErrInvalidLags)

	_, err = Johansen(x, TrendOrder(2), 1)
	assert.ErrorIs(t, err, ErrInvalidTrendOrder)

	single := mat.NewDense(100, 1, nil)
	_, err = Johansen(single, TrendConstant, 1)
	assert.ErrorIs(t, err, ErrTooFewSeries)

	_, err = Estimate(x, 1, models.Significance(7))
	assert.ErrorIs(t, err, models.ErrInvalidSignificance)

	x.Set(10, 1, math.NaN())
	_, err = Johansen(x, TrendConstant, 1)
	assert.ErrorIs(t, err, ErrMissingValues)
}

func TestCountRelations(t *testing.T) {
	cvs := []CriticalValues{
		TraceCriticalValues(3, TrendConstant),
		TraceCriticalValues(2, TrendConstant),
		TraceCriticalValues(1, TrendConstant),
	}
	assert.Equal(t, 2, countRelations([]float64{50, 20, 1}, cvs, models.Significance95))
	assert.Equal(t, 3, countRelations([]float64{50, 20, 5}, cvs, models.Significance95))
	assert.Equal(t, 2, countRelations([]float64{50, 20, 5}, cvs, models.Significance99))
	// only leading rejections count
	assert.Equal(t, 0, countRelations([]float64{10, 20, 5}, cvs, models.Significance95))
	// the statistic has to exceed the critical value strictly
	assert.Equal(t, 0, countRelations([]float64{29.7961, 20, 5}, cvs, models.Significance95))

	degraded := []CriticalValues{{}, cvs[1], cvs[2]}
	assert.Equal(t, 0, countRelations([]float64{500, 20, 5}, degraded, models.Significance95))
}

func TestNormalize(t *testing.T) {
	v := []float64{1.18712515, -2.37415904, 3.14587243}
	n := Normalize(v, 1)
	assert.Equal(t, -1.0, n[1])
	assert.InDelta(t, 0.5, n[0], 1e-4)
	assert.InDelta(t, 3.14587243/2.37415904, n[2], 1e-12)
}
