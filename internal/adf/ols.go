package adf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

type fit struct {
	params  []float64
	tvalues []float64
	ssr     float64
	nobs    int
}

func (f fit) k() int {
	return len(f.params)
}

// aic and bic follow the Gaussian log-likelihood of an OLS fit
func (f fit) aic() float64 {
	return -2*f.llf() + 2*float64(f.k())
}

func (f fit) bic() float64 {
	return -2*f.llf() + math.Log(float64(f.nobs))*float64(f.k())
}

func (f fit) llf() float64 {
	n := float64(f.nobs)
	return -n / 2 * (math.Log(2*math.Pi) + math.Log(f.ssr/n) + 1)
}

// ols fits y on the columns of x by the normal equations
func ols(y []float64, x *mat.Dense) (fit, error) {
	n, k := x.Dims()
	if n <= k {
		return fit{}, fmt.Errorf("%w: %d observations for %d regressors", ErrSingularDesign, n, k)
	}

	var xtx, inv mat.Dense
	xtx.Mul(x.T(), x)
	if err := inv.Inverse(&xtx); err != nil {
		return fit{}, fmt.Errorf("%w: %v", ErrSingularDesign, err)
	}

	yv := mat.NewVecDense(n, y)
	var xty, beta, fitted, resid mat.VecDense
	xty.MulVec(x.T(), yv)
	beta.MulVec(&inv, &xty)
	fitted.MulVec(x, &beta)
	resid.SubVec(yv, &fitted)

	ssr := mat.Dot(&resid, &resid)
	sigma2 := ssr / float64(n-k)

	f := fit{
		params:  make([]float64, k),
		tvalues: make([]float64, k),
		ssr:     ssr,
		nobs:    n,
	}
	for i := 0; i < k; i++ {
		f.params[i] = beta.AtVec(i)
		f.tvalues[i] = f.params[i] / math.Sqrt(sigma2*inv.At(i, i))
	}
	return f, nil
}
