// Package adf implements the augmented Dickey-Fuller unit root test with
// MacKinnon critical values and information-criterion lag selection.
package adf

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/TruWeaveTrader/cointeg/internal/models"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrSeriesTooShort    = errors.New("series too short for the requested lag order")
	ErrInvalidRegression = errors.New("regression must be one of n, c, ct, ctt")
	ErrInvalidCriterion  = errors.New("autolag must be one of AIC, BIC, t-stat, none")
	ErrSingularDesign    = errors.New("singular ADF regression design")
	ErrNonFinite         = errors.New("series contains missing or non-finite values")
	ErrConstantSeries    = errors.New("series is constant")
)

// Regression selects the deterministic terms added to the test regression
type Regression string

const (
	RegressionNone      Regression = "n"
	RegressionConstant  Regression = "c"
	RegressionTrend     Regression = "ct"
	RegressionQuadratic Regression = "ctt"
)

// ParseRegression accepts n (or its older alias nc), c, ct and ctt
func ParseRegression(s string) (Regression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "nc":
		return RegressionNone, nil
	case "c":
		return RegressionConstant, nil
	case "ct":
		return RegressionTrend, nil
	case "ctt":
		return RegressionQuadratic, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRegression, s)
}

// trendTerms is the number of deterministic columns
func (r Regression) trendTerms() int {
	switch r {
	case RegressionConstant:
		return 1
	case RegressionTrend:
		return 2
	case RegressionQuadratic:
		return 3
	}
	return 0
}

func (r Regression) valid() bool {
	_, ok := tau2010[r]
	return ok
}

// Criterion selects how the number of lagged differences is chosen
type Criterion string

const (
	CriterionAIC   Criterion = "AIC"
	CriterionBIC   Criterion = "BIC"
	CriterionTStat Criterion = "t-stat"
	CriterionNone  Criterion = "none"
)

// ParseCriterion is case-insensitive; an empty string means no lag search
func ParseCriterion(s string) (Criterion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aic":
		return CriterionAIC, nil
	case "bic":
		return CriterionBIC, nil
	case "t-stat", "tstat":
		return CriterionTStat, nil
	case "", "none":
		return CriterionNone, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCriterion, s)
}

// Config controls the test regression
type Config struct {
	MaxLag     int        `json:"max_lag" mapstructure:"max_lag"`
	Regression Regression `json:"regression" mapstructure:"regression"`
	Autolag    Criterion  `json:"autolag" mapstructure:"autolag"`
}

// DefaultConfig uses six lags at most, no deterministic terms and AIC selection
func DefaultConfig() Config {
	return Config{MaxLag: 6, Regression: RegressionNone, Autolag: CriterionAIC}
}

// Validate rejects unknown regressions and criteria and negative lags
func (c Config) Validate() error {
	if c.MaxLag < 0 {
		return fmt.Errorf("%w: max lag %d", ErrSeriesTooShort, c.MaxLag)
	}
	if !c.Regression.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRegression, c.Regression)
	}
	switch c.Autolag {
	case CriterionAIC, CriterionBIC, CriterionTStat, CriterionNone:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidCriterion, c.Autolag)
}

// Result of one ADF test. CriticalValues are indexed by significance tier.
// ICBest is zero when no lag search was run.
type Result struct {
	Statistic      float64    `json:"statistic"`
	UsedLag        int        `json:"used_lag"`
	Nobs           int        `json:"nobs"`
	CriticalValues [3]float64 `json:"critical_values"`
	ICBest         float64    `json:"ic_best"`
	Regression     Regression `json:"regression"`
	Autolag        Criterion  `json:"autolag"`
}

// CriticalValue returns the critical value for a tier
func (r *Result) CriticalValue(sig models.Significance) float64 {
	return r.CriticalValues[sig.Column()]
}

// NotStationary reports whether the unit-root null survives at tier sig,
// i.e. the statistic is not below the critical value.
func (r *Result) NotStationary(sig models.Significance) bool {
	return r.Statistic >= r.CriticalValue(sig)
}

// IsNotStationary runs Test and returns true when the series is classified as
// non-stationary at the given tier.
func IsNotStationary(series []float64, sig models.Significance, cfg Config) (bool, error) {
	if !sig.Valid() {
		return false, models.ErrInvalidSignificance
	}
	res, err := Test(series, cfg)
	if err != nil {
		return false, err
	}
	return res.NotStationary(sig), nil
}

// tStatStop is the two-sided 10% normal quantile used by the t-stat criterion
const tStatStop = 1.6448536269514722

// Test runs the augmented Dickey-Fuller regression
//
//	Δx(t) = [trend] + γ·x(t-1) + Σ β_j·Δx(t-j) + e(t)
//
// and returns the t-value of γ. With a lag criterion every lag order up to
// cfg.MaxLag is fitted on a common sample, the best is refitted on the
// longest sample it allows.
func Test(series []float64, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := len(series)
	ntrend := cfg.Regression.trendTerms()
	if n < 4 || cfg.MaxLag > n/2-ntrend-1 {
		return nil, fmt.Errorf("%w: %d observations, max lag %d with %d trend terms", ErrSeriesTooShort, n, cfg.MaxLag, ntrend)
	}
	constant := true
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: index %d", ErrNonFinite, i)
		}
		if v != series[0] {
			constant = false
		}
	}
	if constant {
		return nil, ErrConstantSeries
	}

	d := make([]float64, n-1)
	for i := 1; i < n; i++ {
		d[i-1] = series[i] - series[i-1]
	}

	res := &Result{Regression: cfg.Regression, Autolag: cfg.Autolag}
	usedLag := cfg.MaxLag
	if cfg.Autolag != CriterionNone {
		best, ic, err := selectLag(series, d, cfg)
		if err != nil {
			return nil, err
		}
		usedLag = best
		res.ICBest = ic
	}

	nobs := n - 1 - usedLag
	y, x := design(series, d, usedLag, nobs, ntrend)
	f, err := ols(y, x)
	if err != nil {
		return nil, err
	}

	res.Statistic = f.tvalues[ntrend]
	res.UsedLag = usedLag
	res.Nobs = nobs
	res.CriticalValues = criticalValues(cfg.Regression, nobs)
	return res, nil
}

// selectLag fits every lag order 0..MaxLag on the sample left by MaxLag
func selectLag(x, d []float64, cfg Config) (int, float64, error) {
	ntrend := cfg.Regression.trendTerms()
	nobs := len(d) - cfg.MaxLag
	y, full := design(x, d, cfg.MaxLag, nobs, ntrend)

	fits := make([]fit, cfg.MaxLag+1)
	for lag := 0; lag <= cfg.MaxLag; lag++ {
		cols := ntrend + 1 + lag
		f, err := ols(y, mat.DenseCopyOf(full.Slice(0, nobs, 0, cols)))
		if err != nil {
			return 0, 0, err
		}
		fits[lag] = f
	}

	switch cfg.Autolag {
	case CriterionAIC, CriterionBIC:
		best, ic := 0, math.Inf(1)
		for lag, f := range fits {
			v := f.aic()
			if cfg.Autolag == CriterionBIC {
				v = f.bic()
			}
			if v < ic {
				best, ic = lag, v
			}
		}
		return best, ic, nil
	default:
		// largest lag whose last coefficient is significant
		var ic float64
		for lag := cfg.MaxLag; lag >= 0; lag-- {
			f := fits[lag]
			ic = math.Abs(f.tvalues[len(f.tvalues)-1])
			if ic >= tStatStop {
				return lag, ic, nil
			}
		}
		return 0, ic, nil
	}
}

// design builds the last nobs rows of the test regression with the given
// number of lagged differences. Columns are the deterministic terms, the
// lagged level, then Δx(t-1)..Δx(t-lags).
func design(x, d []float64, lags, nobs, ntrend int) ([]float64, *mat.Dense) {
	y := make([]float64, nobs)
	out := mat.NewDense(nobs, ntrend+1+lags, nil)
	start := len(d) - nobs
	for r := 0; r < nobs; r++ {
		t := start + r
		y[r] = d[t]
		tt := float64(r + 1)
		for c := 0; c < ntrend; c++ {
			out.Set(r, c, math.Pow(tt, float64(c)))
		}
		out.Set(r, ntrend, x[t])
		for j := 1; j <= lags; j++ {
			out.Set(r, ntrend+j, d[t-j])
		}
	}
	return y, out
}
