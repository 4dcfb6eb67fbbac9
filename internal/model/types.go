/*
PURPOSE:
  Defines the core data structures used throughout Perf Modeler.
  These models represent measurement records and the latency models derived from them.

REQUIREMENTS:
  User-specified:
  - Records carry identity, iterations, cycle counts and a loose parameter map.
  - Outputs are a function latency map, a correlation report and cache tables.

  Implementation-discovered:
  - Metadata blobs are untyped; values must be tagged Number or Text (see parameter.go).
  - Functions with categorical cases serialize as nested maps, others flat (see Cased).

ARCHITECTURE INTEGRATION:
  - Used by: internal/normalize, internal/analysis, internal/cache, internal/output
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs). Sentinel errors live in errors.go.

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Records are immutable once normalized; stages return new values.

USAGE:
  rec := model.Record{Function: "rte_memcpy", Iterations: 1000, TotalCycles: 52000}

SELF-HEALING INSTRUCTIONS:
  - If new output fields are needed, add them here and update the CSV/JSON writers.

RELATED FILES:
  - internal/output/csv.go
  - internal/output/json.go

MAINTENANCE:
  - Update when the input CSV schema or output artifacts change.
*/

package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// Record is one measurement row after ingestion.
type Record struct {
	Function   string `json:"function"`
	Condition  string `json:"condition,omitempty"`
	Prefix     string `json:"prefix,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
	Iterations int64  `json:"iterations"`
	// TotalCycles is the raw cycle count for the whole run.
	TotalCycles float64    `json:"total_cycles"`
	Parameters  Parameters `json:"parameters,omitempty"`

	// Derived by the normalizer.
	NetCycles           float64 `json:"net_cycles"`
	Latency             float64 `json:"latency_cycles"`
	LatencyPerOperation float64 `json:"latency_per_operation"`
}

// Param returns the numeric value of a parameter, if present and numeric.
func (r Record) Param(key string) (float64, bool) {
	v, ok := r.Parameters[key]
	if !ok {
		return 0, false
	}
	return v.Float()
}

// CasePair is one categorical key/value of a Case.
type CasePair struct {
	Key   string
	Value string
}

// Case is a canonical combination of categorical parameters, sorted by key.
// The zero Case (no pairs) stands for "no categorical parameters".
type Case struct {
	Pairs []CasePair
}

// NewCase builds a canonical Case from a key/value map.
func NewCase(values map[string]string) Case {
	pairs := make([]CasePair, 0, len(values))
	for k, v := range values {
		pairs = append(pairs, CasePair{Key: k, Value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return Case{Pairs: pairs}
}

// Name renders the case as "k1=v1, k2=v2". The empty case renders as "".
func (c Case) Name() string {
	parts := make([]string, len(c.Pairs))
	for i, p := range c.Pairs {
		parts[i] = p.Key + "=" + p.Value
	}
	return strings.Join(parts, ", ")
}

// LatencyModel is the fitted model for one function or (function, case).
type LatencyModel struct {
	BaseLatency float64            `json:"base_latency_cycles"`
	Parameters  map[string]float64 `json:"parameters,omitempty"`

	// BaseKey overrides the JSON key of the base latency (polling maps use
	// "base_poll_cycles_per_iteration").
	BaseKey string `json:"-"`
	// Degraded marks a fallback fit built from univariate slopes.
	Degraded bool `json:"-"`
}

// DefaultBaseKey is the JSON key of LatencyModel.BaseLatency.
const DefaultBaseKey = "base_latency_cycles"

// MarshalJSON writes the base latency under BaseKey followed by the parameters.
func (m LatencyModel) MarshalJSON() ([]byte, error) {
	key := m.BaseKey
	if key == "" {
		key = DefaultBaseKey
	}
	out := map[string]interface{}{key: m.BaseLatency}
	if len(m.Parameters) > 0 {
		out["parameters"] = m.Parameters
	}
	return json.Marshal(out)
}

// ParameterStats is one parameter entry of the correlation report.
type ParameterStats struct {
	Coefficient        float64  `json:"coefficient"`
	Intercept          float64  `json:"intercept"`
	NSamples           int      `json:"n_samples"`
	PartialCorrelation *float64 `json:"partial_correlation"`
	PartialPValue      *float64 `json:"partial_p_value"`
	Significant        bool     `json:"significant"`
}

// Cased holds either a flat value (function without categorical cases) or
// one value per case name.
type Cased[T any] struct {
	Flat  T
	Cases map[string]T
}

// HasCases reports whether the entry is split by categorical case.
func (c Cased[T]) HasCases() bool { return c.Cases != nil }

// MarshalJSON emits the case map when present, the flat value otherwise.
func (c Cased[T]) MarshalJSON() ([]byte, error) {
	if c.HasCases() {
		return json.Marshal(c.Cases)
	}
	return json.Marshal(c.Flat)
}

// FunctionLatencyMap maps a function name to its latency model(s).
type FunctionLatencyMap map[string]Cased[LatencyModel]

// CorrelationReport maps function -> (case ->) parameter -> stats.
type CorrelationReport map[string]Cased[map[string]ParameterStats]

// CacheLatencyRow is one row of the cache latency table.
type CacheLatencyRow struct {
	Operation     string
	CacheLevel    string
	LatencyCycles float64
	RSquared      float64
	EquationsUsed int
	Rank          int
}

// BaseLatencyRow is one row of the series base-latency table.
type BaseLatencyRow struct {
	Operation         string
	Series            string
	BaseLatencyCycles float64
}

// OperationResult is the solved cache hierarchy of one operation.
type OperationResult struct {
	Operation     string    `json:"operation"`
	Levels        []string  `json:"cache_levels"`
	Latencies     []float64 `json:"latencies"`
	Series        []string  `json:"series_analyzed"`
	BaseLatencies []float64 `json:"base_latencies"`
	RSquared      float64   `json:"r_squared"`
	EquationsUsed int       `json:"equations_used"`
	Rank          int       `json:"rank"`
	Variables     int       `json:"variables"`
	Residual      float64   `json:"residual"`
}

// LatencyRows flattens the level latencies into table rows.
func (o OperationResult) LatencyRows() []CacheLatencyRow {
	rows := make([]CacheLatencyRow, len(o.Levels))
	for i, level := range o.Levels {
		rows[i] = CacheLatencyRow{
			Operation:     o.Operation,
			CacheLevel:    level,
			LatencyCycles: o.Latencies[i],
			RSquared:      o.RSquared,
			EquationsUsed: o.EquationsUsed,
			Rank:          o.Rank,
		}
	}
	return rows
}

// BaseRows flattens the series base latencies into table rows.
func (o OperationResult) BaseRows() []BaseLatencyRow {
	rows := make([]BaseLatencyRow, len(o.BaseLatencies))
	for i, b := range o.BaseLatencies {
		rows[i] = BaseLatencyRow{Operation: o.Operation, Series: o.Series[i], BaseLatencyCycles: b}
	}
	return rows
}
