package model

import (
	"errors"
	"fmt"
)

// Analysis failure classes. Callers wrap them with context and test with errors.Is.
var (
	// ErrInsufficientData: too few samples or distinct values to regress.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrSingularSystem: least squares is rank deficient or degenerate.
	ErrSingularSystem = errors.New("singular system")
	// ErrUndefinedStatistic: zero-variance residuals or non-positive degrees of freedom.
	ErrUndefinedStatistic = errors.New("undefined statistic")
	// ErrNoAnalyzableGroups: nothing survived normalization. Fatal for the run.
	ErrNoAnalyzableGroups = errors.New("no analyzable groups")
)

// NoGroupsError is returned when a pipeline has nothing to analyze.
type NoGroupsError struct {
	Pipeline string
	Records  int
}

func (e *NoGroupsError) Error() string {
	return fmt.Sprintf("%s: %v (%d records loaded)", e.Pipeline, ErrNoAnalyzableGroups, e.Records)
}

// Unwrap lets errors.Is match ErrNoAnalyzableGroups.
func (e *NoGroupsError) Unwrap() error { return ErrNoAnalyzableGroups }
