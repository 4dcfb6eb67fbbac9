/*
PURPOSE:
  Dry run of both pipelines for the list-groups command: load and group,
  never fit or write.
*/

package engine

import (
	"errors"
	"fmt"
	"io"

	"github.com/daryltucker/perf-modeler/internal/config"
	"github.com/daryltucker/perf-modeler/internal/normalize"
)

// ListGroups prints the normalized function groups and memory series that the
// analysis pipelines would see, without fitting anything. Missing inputs for
// one path are reported and do not hide the other.
func ListGroups(cfg *config.Config, w io.Writer) error {
	e := New(cfg, w)
	var found bool

	recs, _, err := e.loadFunctionRecords()
	switch {
	case errors.Is(err, ErrNoInputs):
		fmt.Fprintf(w, "Function groups: %v\n", err)
	case err != nil:
		return err
	default:
		opts := e.normalizeOptions()
		normalized, dropped := normalize.Normalize(recs, opts)
		g, err := normalize.Partition(normalized, opts.ExcludeParams, PipelineFunctions)
		if err != nil {
			fmt.Fprintf(w, "Function groups: %v\n", err)
			break
		}
		found = true
		fmt.Fprintf(w, "Function groups (%d records, %d dropped)\n", len(recs), dropped)
		fmt.Fprintf(w, "  numerical parameters:   %v\n", g.Kinds.Numerical)
		fmt.Fprintf(w, "  categorical parameters: %v\n", g.Kinds.Categorical)
		for _, fg := range g.Functions {
			fmt.Fprintf(w, "  %s (%d records)\n", fg.Function, len(fg.Records))
			if !fg.HasCases {
				continue
			}
			for _, cg := range fg.Cases {
				fmt.Fprintf(w, "    [%s] %d records\n", cg.Case.Name(), len(cg.Records))
			}
		}
	}

	g, _, err := e.loadMemoryGrouping()
	switch {
	case errors.Is(err, ErrNoInputs):
		fmt.Fprintf(w, "Memory series: %v\n", err)
	case g == nil && err != nil:
		return err
	default:
		if err != nil {
			fmt.Fprintf(w, "Memory series: %v\n", err)
		} else {
			found = true
		}
		fmt.Fprintf(w, "Memory series (%d records, %d accepted)\n", g.Records, g.Accepted)
		for _, op := range g.Operations() {
			fmt.Fprintf(w, "  %s\n", op)
			for _, s := range g.SeriesFor(op) {
				fmt.Fprintf(w, "    %s: %d points, %d instruction counts\n", s.Key, len(s.Points), s.DistinctCounts())
			}
		}
	}

	if !found {
		return fmt.Errorf("nothing to analyze in %s", cfg.Inputs.Dir)
	}
	return nil
}
