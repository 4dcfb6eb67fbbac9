/*
PURPOSE:
  Runs significance testing and fitting over every (function, case) group
  and assembles the latency map and correlation report.

REQUIREMENTS:
  Implementation-discovered:
  - A case with a single record still gets a mean-only model.
  - The polling analysis reuses this path with its own base key and a
    mean fallback for non-positive bases.

ERROR HANDLING:
  - Nothing here returns an error; problems become report warnings.
*/

package analysis

import (
	"fmt"
	"math"

	"github.com/daryltucker/perf-modeler/internal/model"
	"github.com/daryltucker/perf-modeler/internal/normalize"
	"github.com/daryltucker/perf-modeler/internal/output"
)

// PollBaseKey is the base latency key of polling maps.
const PollBaseKey = "base_poll_cycles_per_iteration"

// FunctionOptions configures BuildFunctionMaps.
type FunctionOptions struct {
	Significance SignificanceOptions
	// BaseKey renames base_latency_cycles in the emitted models.
	BaseKey string
	// MeanForNonPositiveBase replaces a fitted base that is ~0 or negative by the case mean.
	MeanForNonPositiveBase bool
}

// FunctionMaps is the function-latency path output.
type FunctionMaps struct {
	Latency      model.FunctionLatencyMap
	Correlations model.CorrelationReport
}

// BuildFunctionMaps runs significance testing and coefficient fitting for every
// (function, case) of g. Per-case problems are recorded in report and never abort.
func BuildFunctionMaps(g *normalize.GroupedRecords, opts FunctionOptions, report *model.BatchReport) FunctionMaps {
	out := FunctionMaps{
		Latency:      make(model.FunctionLatencyMap),
		Correlations: make(model.CorrelationReport),
	}

	for _, fg := range g.Functions {
		var (
			latency = model.Cased[model.LatencyModel]{}
			corr    = model.Cased[map[string]model.ParameterStats]{}
		)
		if fg.HasCases {
			latency.Cases = make(map[string]model.LatencyModel)
			corr.Cases = make(map[string]map[string]model.ParameterStats)
		}
		emitted, correlated := false, false

		for _, cg := range fg.Cases {
			scope := Scope(fg.Function, cg.Case.Name())
			if len(cg.Records) == 0 {
				continue
			}

			var sig Significance
			if len(cg.Records) < 2 {
				report.Warn(model.StageSignificance, scope,
					fmt.Sprintf("%d record(s), significance skipped: %v", len(cg.Records), model.ErrInsufficientData))
			} else {
				sig = TestSignificance(cg.Records, g.Kinds.Numerical, opts.Significance)
				for _, name := range sig.Undefined {
					report.Warn(model.StageSignificance, scope,
						fmt.Sprintf("partial correlation undefined for %s, treated as not significant", name))
				}
				if len(sig.Params) > 0 {
					table := make(map[string]model.ParameterStats, len(sig.Params))
					for _, p := range sig.Params {
						table[p.Name] = p.Stats()
					}
					if fg.HasCases {
						corr.Cases[cg.Case.Name()] = table
					} else {
						corr.Flat = table
					}
					correlated = true
				}
			}

			fit := FitCoefficients(cg.Records, sig)
			if fit.Err != nil {
				output.Logger.Warn("Multivariate fit failed, using univariate coefficients (degraded)",
					"scope", scope, "error", fit.Err)
				report.Warn(model.StageFit, scope, "degraded fit: "+fit.Err.Error())
			}

			m := fit.Model
			m.BaseKey = opts.BaseKey
			if opts.MeanForNonPositiveBase && (math.Abs(m.BaseLatency) < 1e-6 || m.BaseLatency < 0) {
				m.BaseLatency = round4(MeanLatency(cg.Records))
			}

			if fg.HasCases {
				latency.Cases[cg.Case.Name()] = m
			} else {
				latency.Flat = m
			}
			emitted = true
			report.Succeed(scope)
		}

		if emitted {
			out.Latency[fg.Function] = latency
		}
		if correlated {
			out.Correlations[fg.Function] = corr
		}
	}
	return out
}

// Scope names a (function, case) pair in logs and reports.
func Scope(function, caseName string) string {
	if caseName == "" {
		return function
	}
	return function + " [" + caseName + "]"
}
