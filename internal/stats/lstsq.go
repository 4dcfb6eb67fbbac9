/*
PURPOSE:
  Least-squares solver shared by the coefficient fitter, the partial
  correlation residualizer and the cache hierarchy solver.

REQUIREMENTS:
  User-specified:
  - Always return a solution, even for rank-deficient systems, and report the rank.

  Implementation-discovered:
  - Minimum-norm solution through a thin SVD, singular values below
    eps*max(m,n)*s[0] are treated as zero (same cut as LAPACK gelsd with rcond=-1).

ARCHITECTURE INTEGRATION:
  - Called by: internal/analysis, internal/cache
  - Depends on: gonum.org/v1/gonum/mat

ERROR HANDLING:
  - ErrInsufficientData for empty systems, ErrSingularSystem if the SVD does not converge.
  - Rank deficiency is NOT an error here; callers decide.

USAGE:
  sol, err := stats.LeastSquares(a, b)
  if sol.Rank < sol.Vars { ... }
*/

package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/daryltucker/perf-modeler/internal/model"
)

// Solution is the result of a least-squares solve.
type Solution struct {
	Coef     []float64
	Rank     int
	Vars     int
	Fitted   []float64
	Residual float64 // sum of squared residuals
	RSquared float64
}

// FullRank reports whether the design matrix had full column rank.
func (s *Solution) FullRank() bool { return s.Rank >= s.Vars }

// LeastSquares solves min ||a·x - b||₂ and returns the minimum-norm x.
func LeastSquares(a mat.Matrix, b []float64) (*Solution, error) {
	if d, ok := a.(*mat.Dense); a == nil || (ok && d == nil) {
		return nil, fmt.Errorf("empty system: %w", model.ErrInsufficientData)
	}
	m, n := a.Dims()
	if m == 0 || n == 0 {
		return nil, fmt.Errorf("empty %dx%d system: %w", m, n, model.ErrInsufficientData)
	}
	if len(b) != m {
		return nil, fmt.Errorf("rhs length %d does not match %d rows", len(b), m)
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, fmt.Errorf("svd did not converge: %w", model.ErrSingularSystem)
	}
	values := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	rank := 0
	if len(values) > 0 {
		tol := float64(max(m, n)) * eps * values[0]
		for _, s := range values {
			if s > tol {
				rank++
			}
		}
	}

	coef := make([]float64, n)
	rhs := mat.NewVecDense(m, b)
	for i := 0; i < rank; i++ {
		w := mat.Dot(u.ColView(i), rhs) / values[i]
		for j := 0; j < n; j++ {
			coef[j] += w * v.At(j, i)
		}
	}

	fitted := make([]float64, m)
	for i := 0; i < m; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			sum += a.At(i, j) * coef[j]
		}
		fitted[i] = sum
	}

	resid := make([]float64, m)
	floats.SubTo(resid, b, fitted)

	return &Solution{
		Coef:     coef,
		Rank:     rank,
		Vars:     n,
		Fitted:   fitted,
		Residual: floats.Dot(resid, resid),
		RSquared: RSquared(b, fitted),
	}, nil
}

var eps = math.Nextafter(1, 2) - 1

// RSquared is 1 - SS_res/SS_tot, or 0 when the target has no variance.
func RSquared(y, fitted []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	mean := floats.Sum(y) / float64(len(y))
	var ssRes, ssTot float64
	for i := range y {
		d := y[i] - fitted[i]
		ssRes += d * d
		t := y[i] - mean
		ssTot += t * t
	}
	if ssTot <= 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// DesignMatrix builds a dense matrix from row slices.
func DesignMatrix(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for _, r := range rows {
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), cols, data)
}
