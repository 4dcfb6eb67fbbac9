/*
PURPOSE:
  Sanity checks on solved latencies. Findings are warnings only; results are
  always emitted.

REQUIREMENTS:
  User-specified:
  - Negative level latency, non-memory level above 50 cycles, memory above 1000 cycles.
  - Fit quality bands: R² > 0.95 excellent, > 0.8 good, otherwise poor.
  - Negative function base latencies.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine after each solve/fit.
  - Writes to: output.Logger and model.BatchReport.
*/

package diagnostics

import (
	"fmt"
	"sort"

	"github.com/daryltucker/perf-modeler/internal/model"
	"github.com/daryltucker/perf-modeler/internal/output"
)

// Quality is the fit quality band of an R² value.
type Quality string

const (
	Excellent Quality = "excellent"
	Good      Quality = "good"
	Poor      Quality = "poor"
)

// FitQuality classifies r2.
func FitQuality(r2 float64) Quality {
	switch {
	case r2 > 0.95:
		return Excellent
	case r2 > 0.8:
		return Good
	default:
		return Poor
	}
}

// Thresholds bound plausible latencies, in cycles.
type Thresholds struct {
	MaxCacheLatency  float64 `yaml:"max_cache_latency"`
	MaxMemoryLatency float64 `yaml:"max_memory_latency"`
}

// DefaultThresholds returns 50 cycles for cache levels and 1000 for memory.
func DefaultThresholds() Thresholds {
	return Thresholds{MaxCacheLatency: 50, MaxMemoryLatency: 1000}
}

// CheckLatencies returns one message per implausible level latency.
func CheckLatencies(res model.OperationResult, th Thresholds) []string {
	var out []string
	for i, level := range res.Levels {
		lat := res.Latencies[i]
		switch {
		case lat < 0:
			out = append(out, fmt.Sprintf("%s latency is negative (%.2f cycles)", level, lat))
		case level == "Memory" && lat > th.MaxMemoryLatency:
			out = append(out, fmt.Sprintf("%s latency is unusually high (%.2f > %.0f cycles)", level, lat, th.MaxMemoryLatency))
		case level != "Memory" && lat > th.MaxCacheLatency:
			out = append(out, fmt.Sprintf("%s latency is unusually high (%.2f > %.0f cycles)", level, lat, th.MaxCacheLatency))
		}
	}
	return out
}

// Validator logs findings and records them in a batch report.
type Validator struct {
	Thresholds Thresholds
	Report     *model.BatchReport
}

// CheckOperation validates one solved operation and returns its fit quality.
func (v *Validator) CheckOperation(res model.OperationResult) Quality {
	q := FitQuality(res.RSquared)
	if q == Poor {
		v.warn(model.StageValidate, res.Operation, fmt.Sprintf("poor fit quality (R²=%.4f)", res.RSquared))
	}
	for _, msg := range CheckLatencies(res, v.Thresholds) {
		v.warn(model.StageValidate, res.Operation, msg)
	}
	return q
}

// CheckFunctions flags negative base latencies in a function map.
func (v *Validator) CheckFunctions(m model.FunctionLatencyMap) {
	fns := make([]string, 0, len(m))
	for fn := range m {
		fns = append(fns, fn)
	}
	sort.Strings(fns)

	for _, fn := range fns {
		entry := m[fn]
		if !entry.HasCases() {
			v.checkModel(fn, entry.Flat)
			continue
		}
		names := make([]string, 0, len(entry.Cases))
		for name := range entry.Cases {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v.checkModel(fn+" ["+name+"]", entry.Cases[name])
		}
	}
}

func (v *Validator) checkModel(scope string, lm model.LatencyModel) {
	if lm.BaseLatency < 0 {
		v.warn(model.StageValidate, scope, fmt.Sprintf("negative base latency (%.4f cycles)", lm.BaseLatency))
	}
}

func (v *Validator) warn(stage, scope, msg string) {
	output.Logger.Warn(msg, "scope", scope)
	if v.Report != nil {
		v.Report.Warn(stage, scope, msg)
	}
}
