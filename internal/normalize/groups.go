/*
PURPOSE:
  Partitions normalized records into functions and canonical categorical cases.

REQUIREMENTS:
  User-specified:
  - A function without categorical keys is a single flat group.
  - Records missing a parameter never borrow another case's rows.

  Implementation-discovered:
  - Case membership is exact: a record belongs to the case built from its
    own categorical values, so a record without any of them forms the
    empty case instead of matching everything.

RELATED FILES:
  - internal/normalize/normalize.go - key classification.
*/

package normalize

import (
	"sort"

	"github.com/daryltucker/perf-modeler/internal/model"
)

// CaseGroup holds the records of one categorical case of a function.
type CaseGroup struct {
	Case    model.Case
	Records []model.Record
}

// FunctionGroup holds all records of one function, split into cases.
type FunctionGroup struct {
	Function string
	Records  []model.Record
	// HasCases is false when the function has no categorical parameters; Cases
	// then holds a single group with the empty case.
	HasCases bool
	Cases    []CaseGroup
}

// GroupedRecords is the owned result of partitioning one batch.
type GroupedRecords struct {
	Kinds     ParameterKinds
	Functions []FunctionGroup
	Records   int
}

// Partition groups records by function, then by canonical categorical case.
// Numerical keys are classified over the whole batch, categorical keys per function.
func Partition(records []model.Record, exclude []string, pipeline string) (*GroupedRecords, error) {
	byFunc := make(map[string][]model.Record)
	for _, r := range records {
		byFunc[r.Function] = append(byFunc[r.Function], r)
	}
	names := make([]string, 0, len(byFunc))
	for name := range byFunc {
		names = append(names, name)
	}
	sort.Strings(names)

	grouped := &GroupedRecords{
		Kinds:   Classify(records, exclude),
		Records: len(records),
	}
	for _, name := range names {
		recs := byFunc[name]
		fg := FunctionGroup{Function: name, Records: recs}

		categorical := Classify(recs, exclude).Categorical
		cases := Cases(recs, categorical)
		if len(cases) == 0 {
			fg.Cases = []CaseGroup{{Records: recs}}
		} else {
			fg.HasCases = true
			for _, c := range cases {
				fg.Cases = append(fg.Cases, CaseGroup{Case: c, Records: FilterCase(recs, c, categorical)})
			}
		}
		grouped.Functions = append(grouped.Functions, fg)
	}

	if len(grouped.Functions) == 0 {
		return nil, &model.NoGroupsError{Pipeline: pipeline, Records: len(records)}
	}
	return grouped, nil
}

// Cases returns the distinct combinations of categorical values observed in
// records, ordered by case name. Records without parameters contribute nothing.
// It returns nil when there are no categorical keys.
func Cases(records []model.Record, categorical []string) []model.Case {
	if len(categorical) == 0 {
		return nil
	}
	seen := make(map[string]model.Case)
	for _, r := range records {
		if len(r.Parameters) == 0 {
			continue
		}
		c := caseOf(r, categorical)
		seen[c.Name()] = c
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]model.Case, len(names))
	for i, n := range names {
		out[i] = seen[n]
	}
	return out
}

// FilterCase returns the records whose categorical combination is exactly c.
// With categorical keys present, the empty case holds only the records that
// carry none of them.
func FilterCase(records []model.Record, c model.Case, categorical []string) []model.Record {
	if len(categorical) == 0 {
		return records
	}
	name := c.Name()
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if len(r.Parameters) == 0 {
			continue
		}
		if caseOf(r, categorical).Name() == name {
			out = append(out, r)
		}
	}
	return out
}

func caseOf(r model.Record, categorical []string) model.Case {
	combo := make(map[string]string)
	for _, key := range categorical {
		if v, ok := r.Parameters[key]; ok && v.IsText() {
			combo[key] = v.Text()
		}
	}
	return model.NewCase(combo)
}
