package adf

import (
	"math"
	"math/rand"
	"testing"

	"github.com/TruWeaveTrader/cointeg/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// walks returns x1 = cumsum(s1)+s2, x2 = 0.5·cumsum(s1)+s3 and x3 = s3
func walks(n int, seed int64) (x1, x2, x3 []float64) {
	rng := rand.New(rand.NewSource(seed))
	x1 = make([]float64, n)
	x2 = make([]float64, n)
	x3 = make([]float64, n)
	var walk float64
	for i := 0; i < n; i++ {
		s1, s2, s3 := rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
		walk += s1
		x1[i] = walk + s2
		x2[i] = 0.5*walk + s3
		x3[i] = s3
	}
	return x1, x2, x3
}

func diff(x []float64) []float64 {
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}

func scale(x []float64, k float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = k * v
	}
	return out
}

func TestRandomWalksAreNotStationary(t *testing.T) {
	x1, x2, _ := walks(10000, 20151001)

	for name, series := range map[string][]float64{"x1": x1, "x2": x2} {
		got, err := IsNotStationary(series, models.Significance95, DefaultConfig())
		require.NoError(t, err, name)
		assert.True(t, got, name)
	}
}

func TestNoiseIsStationary(t *testing.T) {
	x1, _, x3 := walks(10000, 20151001)

	got, err := IsNotStationary(scale(x3, 100), models.Significance95, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, got)

	got, err = IsNotStationary(diff(x1), models.Significance95, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, got)

	res, err := Test(scale(x3, 100), DefaultConfig())
	require.NoError(t, err)
	assert.Less(t, res.Statistic, -20.0)
	assert.LessOrEqual(t, res.UsedLag, 6)
	assert.Equal(t, 10000-1-res.UsedLag, res.Nobs)
}

func TestPolarity(t *testing.T) {
	res := &Result{Statistic: -1.0, CriticalValues: [3]float64{-1.6, -1.9, -2.6}}
	assert.True(t, res.NotStationary(models.Significance95))

	res.Statistic = -1.9
	assert.True(t, res.NotStationary(models.Significance95), "equality keeps the null")

	res.Statistic = -2.0
	assert.False(t, res.NotStationary(models.Significance95))
	assert.True(t, res.NotStationary(models.Significance99))
	assert.False(t, res.NotStationary(models.Significance90))
}

func TestNoLagSearchUsesMaxLag(t *testing.T) {
	x1, _, _ := walks(500, 11)
	cfg := Config{MaxLag: 4, Regression: RegressionConstant, Autolag: CriterionNone}

	res, err := Test(x1, cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, res.UsedLag)
	assert.Equal(t, 500-1-4, res.Nobs)
	assert.Equal(t, 0.0, res.ICBest)
	assert.Equal(t, criticalValues(RegressionConstant, 495), res.CriticalValues)
}

func TestLagCriteria(t *testing.T) {
	// AR(2) in differences: the t-stat criterion should keep the second lag
	rng := rand.New(rand.NewSource(5))
	n := 3000
	d := make([]float64, n)
	for i := 2; i < n; i++ {
		d[i] = 0.5*d[i-1] - 0.3*d[i-2] + rng.NormFloat64()
	}
	x := make([]float64, n)
	for i := 1; i < n; i++ {
		x[i] = x[i-1] + d[i]
	}

	for _, crit := range []Criterion{CriterionAIC, CriterionBIC, CriterionTStat} {
		res, err := Test(x, Config{MaxLag: 6, Regression: RegressionConstant, Autolag: crit})
		require.NoError(t, err, crit)
		assert.GreaterOrEqual(t, res.UsedLag, 2, crit)
		assert.False(t, math.IsNaN(res.Statistic), crit)
	}
}

func TestCriticalValues(t *testing.T) {
	big := criticalValues(RegressionConstant, 1<<30)
	assert.InDelta(t, -2.56677, big[0], 1e-6)
	assert.InDelta(t, -2.86154, big[1], 1e-6)
	assert.InDelta(t, -3.43035, big[2], 1e-6)

	cv := criticalValues(RegressionConstant, 100)
	assert.InDelta(t, -2.86154-2.8903/100-4.234/1e4-40.040/1e6, cv[1], 1e-12)

	none := criticalValues(RegressionNone, 1000)
	assert.InDelta(t, -1.941, none[1], 1e-3)
	// the tiers get stricter
	for _, reg := range []Regression{RegressionNone, RegressionConstant, RegressionTrend, RegressionQuadratic} {
		cv := criticalValues(reg, 250)
		assert.Greater(t, cv[0], cv[1], reg)
		assert.Greater(t, cv[1], cv[2], reg)
	}
}

func TestValidation(t *testing.T) {
	x1, _, _ := walks(20, 3)

	_, err := Test(x1, Config{MaxLag: 10, Regression: RegressionNone, Autolag: CriterionAIC})
	assert.ErrorIs(t, err, ErrSeriesTooShort)

	_, err = Test(x1, Config{MaxLag: 2, Regression: "x", Autolag: CriterionAIC})
	assert.ErrorIs(t, err, ErrInvalidRegression)

	_, err = Test(x1, Config{MaxLag: 2, Regression: RegressionNone, Autolag: "hqic"})
	assert.ErrorIs(t, err, ErrInvalidCriterion)

	_, err = Test(make([]float64, 50), DefaultConfig())
	assert.ErrorIs(t, err, ErrConstantSeries)

	x1[3] = math.NaN()
	_, err = Test(x1, Config{MaxLag: 1, Regression: RegressionNone, Autolag: CriterionAIC})
	assert.ErrorIs(t, err, ErrNonFinite)

	_, err = IsNotStationary(x1, models.Significance(9), DefaultConfig())
	assert.ErrorIs(t, err, models.ErrInvalidSignificance)
}

func TestParse(t *testing.T) {
	r, err := ParseRegression("nc")
	require.NoError(t, err)
	assert.Equal(t, RegressionNone, r)

	r, err = ParseRegression("CT")
	require.NoError(t, err)
	assert.Equal(t, RegressionTrend, r)

	_, err = ParseRegression("cttt")
	assert.ErrorIs(t, err, ErrInvalidRegression)

	c, err := ParseCriterion("aic")
	require.NoError(t, err)
	assert.Equal(t, CriterionAIC, c)

	c, err = ParseCriterion("")
	require.NoError(t, err)
	assert.Equal(t, CriterionNone, c)
}
