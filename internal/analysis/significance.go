/*
PURPOSE:
  Significance Tester. Decides which numerical parameters of a (function, case)
  measurably move latency.

REQUIREMENTS:
  User-specified:
  - Univariate slope/intercept per candidate with >= min_unique_values distinct values.
  - Partial correlation controlling for the other candidates, BH-FDR cut at alpha.
  - With fewer than two candidates, plain Pearson significance (p < alpha).

  Implementation-discovered:
  - Partial correlation uses only rows carrying every candidate.
  - An undefined partial statistic counts as p = 1 for the FDR step.

ARCHITECTURE INTEGRATION:
  - Called by: analysis.BuildFunctionMaps
  - Uses: internal/stats

ERROR HANDLING:
  - Per-parameter failures become "no verdict" (significant=false), never errors.

RELATED FILES:
  - internal/analysis/fitter.go - consumes the significant set.
*/

package analysis

import (
	"errors"
	"math"

	"github.com/daryltucker/perf-modeler/internal/model"
	"github.com/daryltucker/perf-modeler/internal/stats"
)

// SignificanceOptions tunes the tester.
type SignificanceOptions struct {
	Alpha           float64
	MinUniqueValues int
	UseFDR          bool
}

// DefaultSignificanceOptions matches the reference analysis: alpha 0.05, 3 distinct values, FDR on.
func DefaultSignificanceOptions() SignificanceOptions {
	return SignificanceOptions{Alpha: 0.05, MinUniqueValues: 3, UseFDR: true}
}

// ParameterResult is the verdict for one candidate parameter.
type ParameterResult struct {
	Name        string
	Slope       float64
	Intercept   float64
	N           int
	Partial     float64 // NaN when undefined
	PValue      float64 // NaN when undefined
	Significant bool
}

// Stats converts the result into its report form.
func (p ParameterResult) Stats() model.ParameterStats {
	return model.ParameterStats{
		Coefficient:        round4(p.Slope),
		Intercept:          round4(p.Intercept),
		NSamples:           p.N,
		PartialCorrelation: optional(p.Partial),
		PartialPValue:      optional(p.PValue),
		Significant:        p.Significant,
	}
}

// Significance is the tester output for one series.
type Significance struct {
	// Params are ordered as the numerical keys passed in.
	Params []ParameterResult
	// Undefined lists candidates whose partial statistic could not be computed.
	Undefined []string
}

// SignificantNames returns the names flagged significant, in order.
func (s Significance) SignificantNames() []string {
	var out []string
	for _, p := range s.Params {
		if p.Significant {
			out = append(out, p.Name)
		}
	}
	return out
}

// Lookup returns the result for name.
func (s Significance) Lookup(name string) (ParameterResult, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterResult{}, false
}

// TestSignificance runs the two-stage test over records for the given numerical keys.
func TestSignificance(records []model.Record, numerical []string, opts SignificanceOptions) Significance {
	var out Significance

	// 1) Univariate slopes for candidates with enough variation.
	var candidates []string
	for _, key := range numerical {
		x, y := column(records, key)
		if len(x) < 2 || distinct(x) < opts.MinUniqueValues {
			continue
		}
		fit, err := stats.LinearFit(x, y)
		if err != nil {
			continue
		}
		out.Params = append(out.Params, ParameterResult{
			Name:      key,
			Slope:     fit.Slope,
			Intercept: fit.Intercept,
			N:         fit.N,
			Partial:   math.NaN(),
			PValue:    math.NaN(),
		})
		candidates = append(candidates, key)
	}

	// 2a) Partial correlation is not defined for a single candidate.
	if len(candidates) < 2 {
		for i := range out.Params {
			p := &out.Params[i]
			x, y := column(records, p.Name)
			fit, err := stats.LinearFit(x, y)
			if err != nil || math.IsNaN(fit.P) {
				out.Undefined = append(out.Undefined, p.Name)
				continue
			}
			p.Partial, p.PValue = fit.R, fit.P
			p.Significant = fit.P < opts.Alpha
		}
		return out
	}

	// 2b) Partial correlation of each candidate controlling for the others.
	xs, y := matrix(records, candidates)
	pValues := make([]float64, len(candidates))
	for i := range candidates {
		pValues[i] = 1
		if len(y) == 0 {
			out.Undefined = append(out.Undefined, candidates[i])
			continue
		}
		controls := make([][]float64, 0, len(candidates)-1)
		for j := range candidates {
			if j != i {
				controls = append(controls, xs[j])
			}
		}
		part, err := stats.PartialCorrelation(xs[i], y, controls)
		if err != nil {
			if errors.Is(err, model.ErrUndefinedStatistic) || errors.Is(err, model.ErrInsufficientData) {
				out.Undefined = append(out.Undefined, candidates[i])
			}
			continue
		}
		out.Params[i].Partial = part.R
		out.Params[i].PValue = part.P
		if !math.IsNaN(part.P) {
			pValues[i] = part.P
		}
	}

	// 3) Significance flags.
	if opts.UseFDR {
		keep := stats.BenjaminiHochberg(pValues, opts.Alpha)
		for i := range out.Params {
			out.Params[i].Significant = keep[i]
		}
	} else {
		for i := range out.Params {
			out.Params[i].Significant = pValues[i] < opts.Alpha
		}
	}
	return out
}

// column returns (param, latency) pairs for records carrying a numeric key.
func column(records []model.Record, key string) ([]float64, []float64) {
	x := make([]float64, 0, len(records))
	y := make([]float64, 0, len(records))
	for _, r := range records {
		v, ok := r.Param(key)
		if !ok {
			continue
		}
		x = append(x, v)
		y = append(y, r.LatencyPerOperation)
	}
	return x, y
}

// matrix returns one column per key plus latency, over records carrying every key.
func matrix(records []model.Record, keys []string) ([][]float64, []float64) {
	cols := make([][]float64, len(keys))
	var y []float64
rows:
	for _, r := range records {
		row := make([]float64, len(keys))
		for i, k := range keys {
			v, ok := r.Param(k)
			if !ok {
				continue rows
			}
			row[i] = v
		}
		for i := range keys {
			cols[i] = append(cols[i], row[i])
		}
		y = append(y, r.LatencyPerOperation)
	}
	return cols, y
}

func distinct(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func optional(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
