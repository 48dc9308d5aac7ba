package johansen

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// demean removes the column mean from every column
func demean(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			sum += x.At(i, j)
		}
		mean := sum / float64(r)
		for i := 0; i < r; i++ {
			out.Set(i, j, x.At(i, j)-mean)
		}
	}
	return out
}

// diff returns first differences along rows
func diff(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r-1, c, nil)
	for i := 1; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i-1, j, x.At(i, j)-x.At(i-1, j))
		}
	}
	return out
}

// lagMatrix builds [x(t-1) | x(t-2) | ... | x(t-lags)] with zero padding
// for the first rows, which callers trim away.
func lagMatrix(x mat.Matrix, lags int) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c*lags, nil)
	for l := 1; l <= lags; l++ {
		for i := l; i < r; i++ {
			for j := 0; j < c; j++ {
				out.Set(i, (l-1)*c+j, x.At(i-l, j))
			}
		}
	}
	return out
}

// rowRange copies rows [from, to)
func rowRange(x mat.Matrix, from, to int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(to-from, c, nil)
	for i := from; i < to; i++ {
		for j := 0; j < c; j++ {
			out.Set(i-from, j, x.At(i, j))
		}
	}
	return out
}

// residuals regresses y on x through the pseudo-inverse and returns y - x·pinv(x)·y.
// A design with no more rows than columns, or with deficient column rank, is
// reported as ErrInsufficientData rather than producing degenerate residuals.
func residuals(y, x *mat.Dense) (*mat.Dense, error) {
	n, k := x.Dims()
	if k == 0 {
		return y, nil
	}
	if n <= k {
		return nil, fmt.Errorf("%w: %d samples for %d regressors", ErrInsufficientData, n, k)
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: singular value decomposition failed", ErrInsufficientData)
	}
	values := svd.Values(nil)
	tol := values[0] * float64(n) * eps
	rank := 0
	for _, s := range values {
		if s > tol {
			rank++
		}
	}
	if rank < k {
		return nil, fmt.Errorf("%w: design matrix rank %d < %d", ErrInsufficientData, rank, k)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// pinv(x)·y = V·diag(1/s)·Uᵀ·y
	var uty mat.Dense
	uty.Mul(u.T(), y)
	_, cols := uty.Dims()
	for i := 0; i < k; i++ {
		for j := 0; j < cols; j++ {
			uty.Set(i, j, uty.At(i, j)/values[i])
		}
	}
	var beta, fitted, res mat.Dense
	beta.Mul(&v, &uty)
	fitted.Mul(x, &beta)
	res.Sub(y, &fitted)
	return &res, nil
}

// moment returns aᵀb / t
func moment(a, b mat.Matrix, t int) *mat.Dense {
	var out mat.Dense
	out.Mul(a.T(), b)
	out.Scale(1/float64(t), &out)
	return &out
}

// eigenReal decomposes a and returns the real parts of its eigenvalues and
// right eigenvectors. The Johansen product matrix is similar to a symmetric
// matrix so imaginary parts are rounding noise.
func eigenReal(a mat.Matrix) ([]float64, *mat.Dense, error) {
	var eig mat.Eigen
	if ok := eig.Factorize(a, mat.EigenRight); !ok {
		return nil, nil, fmt.Errorf("%w: eigen decomposition did not converge", ErrInsufficientData)
	}
	cvals := eig.Values(nil)
	var cvecs mat.CDense
	eig.VectorsTo(&cvecs)

	n := len(cvals)
	values := make([]float64, n)
	vectors := mat.NewDense(n, n, nil)
	for j, cv := range cvals {
		values[j] = real(cv)
		for i := 0; i < n; i++ {
			vectors.Set(i, j, real(cvecs.At(i, j)))
		}
	}
	return values, vectors, nil
}

// normalize rescales the eigenvectors so that vᵀ·skk·v = I using the
// Cholesky factor L of vᵀ·skk·v: v' = v·L⁻¹.
func normalize(v, skk mat.Matrix) (*mat.Dense, error) {
	var tmp, g mat.Dense
	tmp.Mul(skk, v)
	g.Mul(v.T(), &tmp)

	n, _ := g.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (g.At(i, j)+g.At(j, i))/2)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, fmt.Errorf("%w: eigenvector moment matrix is not positive definite", ErrInsufficientData)
	}
	var l, linv mat.TriDense
	chol.LTo(&l)
	if err := linv.InverseTri(&l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}

	var out mat.Dense
	out.Mul(v, &linv)
	return &out, nil
}

const eps = 2.220446049250313e-16

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
