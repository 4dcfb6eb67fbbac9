/*
PURPOSE:
  Univariate and partial correlation tests plus Benjamini-Hochberg control,
  the statistics behind parameter significance.

REQUIREMENTS:
  User-specified:
  - Pearson r with a two-sided Student-t p-value on n-2 degrees of freedom.
  - Partial correlation of x and y given controls: residualize both on
    [1, controls] by least squares and correlate the residuals.
  - dof = n - k - 2; the statistic is undefined when dof <= 0 or either
    residual has standard deviation <= 1e-8.
  - BH step-up at alpha; the largest passing rank and everything below it pass.

  Implementation-discovered:
  - A flat response gives r = 0, p = 1 rather than NaN.
  - |r| = 1 is kept finite by a tiny epsilon in the t transform.

ARCHITECTURE INTEGRATION:
  - Called by: internal/analysis (significance tester)
  - Uses: gonum stat, stat/distuv, floats; lstsq.go for residuals

ERROR HANDLING:
  - ErrInsufficientData for too few samples or a constant predictor.
  - ErrUndefinedStatistic for non-positive dof or zero-variance residuals.

RELATED FILES:
  - internal/stats/lstsq.go
*/

package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/daryltucker/perf-modeler/internal/model"
)

// zeroStd is the absolute tolerance below which a residual is considered constant.
const zeroStd = 1e-8

// Linear is a univariate ordinary least squares fit y = Slope·x + Intercept.
type Linear struct {
	Slope     float64
	Intercept float64
	R         float64
	P         float64
	N         int
}

// LinearFit fits y on x and reports the Pearson r with its two-sided p-value (n-2 dof).
func LinearFit(x, y []float64) (Linear, error) {
	n := len(x)
	if n != len(y) {
		return Linear{}, fmt.Errorf("length mismatch %d != %d", n, len(y))
	}
	if n < 2 {
		return Linear{}, fmt.Errorf("%d samples: %w", n, model.ErrInsufficientData)
	}
	if stat.StdDev(x, nil) == 0 {
		return Linear{}, fmt.Errorf("constant predictor: %w", model.ErrInsufficientData)
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	fit := Linear{Slope: slope, Intercept: intercept, N: n, P: math.NaN()}

	if stat.StdDev(y, nil) == 0 {
		// scipy reports r=0, p=1 for a flat response.
		fit.R, fit.P = 0, 1
		return fit, nil
	}
	fit.R = stat.Correlation(x, y, nil)
	if n > 2 {
		fit.P = PearsonPValue(fit.R, float64(n-2))
	} else {
		fit.P = 1
	}
	return fit, nil
}

// PearsonPValue converts a correlation coefficient into a two-sided p-value.
func PearsonPValue(r, dof float64) float64 {
	const tiny = 1e-20
	r = math.Max(-1, math.Min(1, r))
	t := r * math.Sqrt(dof/((1-r+tiny)*(1+r+tiny)))
	return TwoSidedP(t, dof)
}

// TwoSidedP returns P(|T| >= |t|) for a Student t with dof degrees of freedom.
func TwoSidedP(t, dof float64) float64 {
	if math.IsNaN(t) || dof <= 0 {
		return math.NaN()
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}
	p := 2 * dist.Survival(math.Abs(t))
	return math.Min(1, math.Max(0, p))
}

// Partial is the outcome of a partial correlation test.
type Partial struct {
	R   float64
	P   float64
	DOF int
}

// PartialCorrelation computes r(x, y | controls) by residualizing x and y on
// [1, controls] and correlating the residuals. controls holds one slice per
// control variable, each of len(x). With no controls it is the plain Pearson test.
func PartialCorrelation(x, y []float64, controls [][]float64) (Partial, error) {
	n := len(x)
	if n != len(y) {
		return Partial{}, fmt.Errorf("length mismatch %d != %d", n, len(y))
	}
	if n == 0 {
		return Partial{}, fmt.Errorf("no samples: %w", model.ErrUndefinedStatistic)
	}
	if len(controls) == 0 {
		dof := n - 2
		if dof <= 0 {
			return Partial{DOF: dof}, fmt.Errorf("dof=%d: %w", dof, model.ErrUndefinedStatistic)
		}
		if stat.StdDev(x, nil) <= zeroStd || stat.StdDev(y, nil) <= zeroStd {
			return Partial{DOF: dof}, fmt.Errorf("zero variance: %w", model.ErrUndefinedStatistic)
		}
		r := stat.Correlation(x, y, nil)
		return Partial{R: r, P: PearsonPValue(r, float64(dof)), DOF: dof}, nil
	}

	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, 1+len(controls))
		row[0] = 1
		for j, c := range controls {
			if len(c) != n {
				return Partial{}, fmt.Errorf("control %d has %d samples, want %d", j, len(c), n)
			}
			row[1+j] = c[i]
		}
		rows[i] = row
	}
	design := DesignMatrix(rows)

	rx, err := residuals(design, x)
	if err != nil {
		return Partial{}, err
	}
	ry, err := residuals(design, y)
	if err != nil {
		return Partial{}, err
	}
	if stat.StdDev(rx, nil) <= zeroStd || stat.StdDev(ry, nil) <= zeroStd {
		return Partial{}, fmt.Errorf("zero-variance residuals: %w", model.ErrUndefinedStatistic)
	}

	r := stat.Correlation(rx, ry, nil)
	dof := n - len(controls) - 2
	if dof <= 0 || math.IsNaN(r) {
		return Partial{R: r, DOF: dof}, fmt.Errorf("dof=%d: %w", dof, model.ErrUndefinedStatistic)
	}

	t := r * math.Sqrt(float64(dof)/(1-r*r+1e-12))
	return Partial{R: r, P: TwoSidedP(t, float64(dof)), DOF: dof}, nil
}

func residuals(design *mat.Dense, y []float64) ([]float64, error) {
	sol, err := LeastSquares(design, y)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(y))
	floats.SubTo(out, y, sol.Fitted)
	return out, nil
}

// BenjaminiHochberg marks the discoveries among pValues at false discovery rate alpha.
// NaN p-values are never discoveries.
func BenjaminiHochberg(pValues []float64, alpha float64) []bool {
	m := len(pValues)
	keep := make([]bool, m)
	if m == 0 {
		return keep
	}

	ranked := make([]float64, 0, m)
	for _, p := range pValues {
		if !math.IsNaN(p) {
			ranked = append(ranked, p)
		}
	}
	sort.Float64s(ranked)

	cutoff := math.Inf(-1)
	for k := len(ranked); k >= 1; k-- {
		if ranked[k-1] <= alpha*float64(k)/float64(m) {
			cutoff = ranked[k-1]
			break
		}
	}
	for i, p := range pValues {
		keep[i] = !math.IsNaN(p) && p <= cutoff
	}
	return keep
}
