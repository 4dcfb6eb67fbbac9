/*
PURPOSE:
  Record Normalizer. Turns ingested measurement records into latency-bearing
  records and partitions them into the groups every downstream stage works on.

REQUIREMENTS:
  User-specified:
  - Classify parameters as categorical (any string value) or numerical.
  - Subtract per-prefix baseline overhead, clamped at zero.
  - Partition records by function and categorical case.

  Implementation-discovered:
  - Latency per operation divides by a packet/operation count when the
    metadata carries one, else by iterations.
  - Row filters drop measurements that are known to be invalid
    (rx_burst runs that received nothing under traffic).

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Produces: GroupedRecords for internal/analysis

ERROR HANDLING:
  - Partition returns *model.NoGroupsError when nothing survives.

IMPLEMENTATION RULES:
  - Never mutate the input slice; return new records.
  - Records missing a parameter are excluded, never zero-filled.

RELATED FILES:
  - internal/normalize/memory.go - cache path grouping.
*/

package normalize

import (
	"math"
	"sort"

	"github.com/daryltucker/perf-modeler/internal/model"
)

// Options controls normalization.
type Options struct {
	// BaselineFunction identifies rows that measure harness overhead ("empty").
	BaselineFunction string
	// OperationCountKeys are tried in order; the first positive value divides net cycles.
	OperationCountKeys []string
	// ExcludeParams are never treated as analysis parameters.
	ExcludeParams []string
	Filters       []Filter
}

// Filter drops rows of Function whose RequirePositive parameter is <= 0,
// unless the row's condition is listed in ExemptConditions.
type Filter struct {
	Function         string   `yaml:"function"`
	RequirePositive  string   `yaml:"require_positive"`
	ExemptConditions []string `yaml:"exempt_conditions"`
}

// ParameterKinds lists parameter keys by kind, sorted.
type ParameterKinds struct {
	Categorical []string
	Numerical   []string
}

// Classify scans all records: a key is categorical if any value is text and
// numerical if any value is a non-NaN number. A key may appear in both lists.
func Classify(records []model.Record, exclude []string) ParameterKinds {
	skip := make(map[string]struct{}, len(exclude))
	for _, k := range exclude {
		skip[k] = struct{}{}
	}
	cat := make(map[string]struct{})
	num := make(map[string]struct{})
	for _, r := range records {
		for k, v := range r.Parameters {
			if _, ok := skip[k]; ok {
				continue
			}
			switch {
			case v.IsText():
				cat[k] = struct{}{}
			case v.IsNumber():
				num[k] = struct{}{}
			}
		}
	}
	return ParameterKinds{Categorical: sortedKeys(cat), Numerical: sortedKeys(num)}
}

// ApplyFilters returns the records that pass every filter and the number dropped.
func ApplyFilters(records []model.Record, filters []Filter) ([]model.Record, int) {
	if len(filters) == 0 {
		return records, 0
	}
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if keep(r, filters) {
			out = append(out, r)
		}
	}
	return out, len(records) - len(out)
}

func keep(r model.Record, filters []Filter) bool {
	for _, f := range filters {
		if f.Function != r.Function {
			continue
		}
		if contains(f.ExemptConditions, r.Condition) {
			continue
		}
		v, _ := r.Param(f.RequirePositive)
		if v <= 0 {
			return false
		}
	}
	return true
}

// Overheads returns the per-prefix baseline cost per iteration, averaged over
// all baseline rows sharing a prefix.
func Overheads(records []model.Record, baseline string) map[string]float64 {
	sum := make(map[string]float64)
	count := make(map[string]int)
	for _, r := range records {
		if r.Function != baseline || r.Iterations <= 0 {
			continue
		}
		sum[r.Prefix] += r.TotalCycles / float64(r.Iterations)
		count[r.Prefix]++
	}
	out := make(map[string]float64, len(sum))
	for p, s := range sum {
		out[p] = s / float64(count[p])
	}
	return out
}

// AdjustedCycles removes the baseline overhead from raw cycles, never going below zero.
func AdjustedCycles(raw float64, iterations int64, overhead float64) float64 {
	return math.Max(0, raw-overhead*float64(iterations))
}

// Normalize filters records, subtracts baseline overhead and derives the
// per-iteration and per-operation latencies.
func Normalize(records []model.Record, opts Options) ([]model.Record, int) {
	filtered, dropped := ApplyFilters(records, opts.Filters)
	overheads := Overheads(filtered, opts.BaselineFunction)

	out := make([]model.Record, 0, len(filtered))
	for _, r := range filtered {
		if r.Iterations <= 0 {
			dropped++
			continue
		}
		n := r
		n.NetCycles = r.TotalCycles
		if r.Function != opts.BaselineFunction {
			if oh, ok := overheads[r.Prefix]; ok {
				n.NetCycles = AdjustedCycles(r.TotalCycles, r.Iterations, oh)
			}
		}
		n.Latency = n.NetCycles / float64(r.Iterations)
		n.LatencyPerOperation = n.Latency
		for _, key := range opts.OperationCountKeys {
			if c, ok := r.Param(key); ok {
				if c > 0 {
					n.LatencyPerOperation = n.NetCycles / c
				}
				break
			}
		}
		out = append(out, n)
	}
	return out, dropped
}

// Polling rebuilds records around a polling counter: the latency becomes
// max(0, poll - overhead*iterations)/iterations. Rows without the key are dropped.
func Polling(records []model.Record, pollKey, baseline string) []model.Record {
	overheads := Overheads(records, baseline)
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		poll, ok := r.Param(pollKey)
		if !ok || r.Iterations <= 0 {
			continue
		}
		n := r
		n.NetCycles = poll
		if oh, ok := overheads[r.Prefix]; ok {
			n.NetCycles = AdjustedCycles(poll, r.Iterations, oh)
		}
		n.Latency = n.NetCycles / float64(r.Iterations)
		n.LatencyPerOperation = n.Latency
		out = append(out, n)
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
