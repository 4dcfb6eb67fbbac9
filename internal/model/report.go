package model

import "sort"

// Stage names used in BatchReport entries.
const (
	StageNormalize    = "normalize"
	StageSignificance = "significance"
	StageFit          = "fit"
	StageScale        = "scale"
	StageSolve        = "solve"
	StageValidate     = "validate"
)

// Warning is a non-fatal finding attached to a group or operation.
type Warning struct {
	Stage   string `json:"stage"`
	Scope   string `json:"scope"`
	Message string `json:"message"`
}

// Failure records a group or operation that produced no result.
type Failure struct {
	Stage string `json:"stage"`
	Scope string `json:"scope"`
	Error string `json:"error"`
}

// BatchReport aggregates per-group outcomes of one pipeline run, so callers
// can tell "3 of 5 operations solved" apart from a total failure.
type BatchReport struct {
	Pipeline    string    `json:"pipeline"`
	Fingerprint string    `json:"input_fingerprint,omitempty"`
	Records     int       `json:"records"`
	Succeeded   []string  `json:"succeeded"`
	Failures    []Failure `json:"failures"`
	Warnings    []Warning `json:"warnings"`
}

// NewBatchReport returns an empty report for the named pipeline.
func NewBatchReport(pipeline string) *BatchReport {
	return &BatchReport{
		Pipeline:  pipeline,
		Succeeded: []string{},
		Failures:  []Failure{},
		Warnings:  []Warning{},
	}
}

// Succeed records a successful scope.
func (b *BatchReport) Succeed(scope string) {
	b.Succeeded = append(b.Succeeded, scope)
}

// Fail records a failed scope.
func (b *BatchReport) Fail(stage, scope string, err error) {
	b.Failures = append(b.Failures, Failure{Stage: stage, Scope: scope, Error: err.Error()})
}

// Warn records a warning.
func (b *BatchReport) Warn(stage, scope, message string) {
	b.Warnings = append(b.Warnings, Warning{Stage: stage, Scope: scope, Message: message})
}

// OK reports whether at least one scope succeeded.
func (b *BatchReport) OK() bool { return len(b.Succeeded) > 0 }

// Sort orders all entries so repeated runs serialize identically.
func (b *BatchReport) Sort() {
	sort.Strings(b.Succeeded)
	sort.SliceStable(b.Failures, func(i, j int) bool {
		if b.Failures[i].Scope != b.Failures[j].Scope {
			return b.Failures[i].Scope < b.Failures[j].Scope
		}
		return b.Failures[i].Stage < b.Failures[j].Stage
	})
	sort.SliceStable(b.Warnings, func(i, j int) bool {
		if b.Warnings[i].Scope != b.Warnings[j].Scope {
			return b.Warnings[i].Scope < b.Warnings[j].Scope
		}
		return b.Warnings[i].Stage < b.Warnings[j].Stage
	})
}
