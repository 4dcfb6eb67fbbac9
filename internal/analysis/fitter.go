/*
PURPOSE:
  Coefficient Fitter. Turns the significant parameters of a series into
  latency = base + Σ coef·param.

REQUIREMENTS:
  - Raw predictors, intercept is the base latency.
  - Singular systems fall back to univariate slopes and the mean, marked degraded.
*/

package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/daryltucker/perf-modeler/internal/model"
	"github.com/daryltucker/perf-modeler/internal/stats"
)

// Fit is the outcome of fitting one series.
type Fit struct {
	Model model.LatencyModel
	// Err is set when the multivariate solve failed and the fallback was used.
	Err error
}

// MeanLatency is the naive base latency of a series.
func MeanLatency(records []model.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	y := make([]float64, len(records))
	for i, r := range records {
		y[i] = r.LatencyPerOperation
	}
	return stat.Mean(y, nil)
}

// FitCoefficients fits latency = base + Σ coef·param over the significant
// parameters, with raw (uncentered) predictors so the intercept is the latency
// at zero. With no significant parameter the base is the mean latency.
// A singular system falls back to the univariate slopes and the mean, and the
// returned model is marked Degraded.
func FitCoefficients(records []model.Record, sig Significance) Fit {
	mean := MeanLatency(records)
	names := sig.SignificantNames()
	if len(names) == 0 {
		return Fit{Model: model.LatencyModel{BaseLatency: round4(mean)}}
	}

	sol, err := solveMultivariate(records, names)
	if err == nil {
		params := make(map[string]float64, len(names))
		for i, name := range names {
			params[name] = round4(sol.Coef[i+1])
		}
		return Fit{Model: model.LatencyModel{BaseLatency: round4(sol.Coef[0]), Parameters: params}}
	}

	params := make(map[string]float64, len(names))
	for _, name := range names {
		if p, ok := sig.Lookup(name); ok {
			params[name] = round4(p.Slope)
		}
	}
	return Fit{
		Model: model.LatencyModel{BaseLatency: round4(mean), Parameters: params, Degraded: true},
		Err:   err,
	}
}

func solveMultivariate(records []model.Record, names []string) (*stats.Solution, error) {
	var rows [][]float64
	var y []float64
next:
	for _, r := range records {
		row := make([]float64, 1+len(names))
		row[0] = 1
		for i, name := range names {
			v, ok := r.Param(name)
			if !ok {
				continue next
			}
			row[i+1] = v
		}
		rows = append(rows, row)
		y = append(y, r.LatencyPerOperation)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows carry all of %v: %w", names, model.ErrInsufficientData)
	}

	sol, err := stats.LeastSquares(stats.DesignMatrix(rows), y)
	if err != nil {
		return nil, err
	}
	if !sol.FullRank() {
		return nil, fmt.Errorf("rank %d < %d columns: %w", sol.Rank, sol.Vars, model.ErrSingularSystem)
	}
	return sol, nil
}
