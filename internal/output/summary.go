/*
PURPOSE:
  Human-readable summaries printed after each pipeline.

IMPLEMENTATION RULES:
  - Color only marks fit quality and warnings; respects color.NoColor.
*/

package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/daryltucker/perf-modeler/internal/model"
)

var (
	heading = color.New(color.Bold).SprintFunc()
	good    = color.New(color.FgGreen).SprintFunc()
	fair    = color.New(color.FgYellow).SprintFunc()
	bad     = color.New(color.FgRed).SprintFunc()
)

// qualityColor picks the highlight of a fit quality band name.
func qualityColor(quality string) func(a ...interface{}) string {
	switch quality {
	case "excellent":
		return good
	case "good":
		return fair
	default:
		return bad
	}
}

// PrintFunctionSummary prints one line per function (and case) of m.
func PrintFunctionSummary(w io.Writer, title string, m model.FunctionLatencyMap) {
	fmt.Fprintf(w, "\n%s (%d functions)\n", heading(title), len(m))

	fns := make([]string, 0, len(m))
	for fn := range m {
		fns = append(fns, fn)
	}
	sort.Strings(fns)

	for _, fn := range fns {
		entry := m[fn]
		if !entry.HasCases() {
			fmt.Fprintf(w, "  %s: %s\n", fn, describeModel(entry.Flat))
			continue
		}
		fmt.Fprintf(w, "  %s:\n", fn)
		names := make([]string, 0, len(entry.Cases))
		for name := range entry.Cases {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			label := name
			if label == "" {
				label = "(no case)"
			}
			fmt.Fprintf(w, "    [%s] %s\n", label, describeModel(entry.Cases[name]))
		}
	}
}

func describeModel(lm model.LatencyModel) string {
	var b strings.Builder
	fmt.Fprintf(&b, "base=%.2f cycles", lm.BaseLatency)
	if len(lm.Parameters) > 0 {
		keys := make([]string, 0, len(lm.Parameters))
		for k := range lm.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, ", %s=%+.4f", k, lm.Parameters[k])
		}
	}
	if lm.Degraded {
		b.WriteString(" " + fair("(degraded)"))
	}
	return b.String()
}

// PrintOperationSummary prints the solved hierarchy of one operation.
func PrintOperationSummary(w io.Writer, res model.OperationResult, quality string, warnings []string) {
	fmt.Fprintf(w, "\n%s\n", heading("Operation: "+res.Operation))
	fmt.Fprintf(w, "  Equations: %d, variables: %d, rank: %d\n", res.EquationsUsed, res.Variables, res.Rank)
	fmt.Fprintf(w, "  R²: %.4f (%s)\n", res.RSquared, qualityColor(quality)(quality))
	for i, level := range res.Levels {
		fmt.Fprintf(w, "  %-8s %10.2f cycles\n", level, res.Latencies[i])
	}
	for i, s := range res.Series {
		if i < len(res.BaseLatencies) {
			fmt.Fprintf(w, "  base %-24s %10.2f cycles\n", s, res.BaseLatencies[i])
		}
	}
	for _, msg := range warnings {
		fmt.Fprintf(w, "  %s %s\n", bad("warning:"), msg)
	}
}

// PrintBatchReport prints the outcome counts of a pipeline run.
func PrintBatchReport(w io.Writer, r *model.BatchReport) {
	status := good("ok")
	if len(r.Failures) > 0 {
		status = fair("partial")
	}
	if !r.OK() {
		status = bad("failed")
	}
	fmt.Fprintf(w, "\n%s: %s (%d succeeded, %d failed, %d warnings, %d records)\n",
		heading(r.Pipeline), status, len(r.Succeeded), len(r.Failures), len(r.Warnings), r.Records)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  %s %s [%s]: %s\n", bad("failed"), f.Scope, f.Stage, f.Error)
	}
}
