/*
PURPOSE:
  High-level runner that orchestrates the analysis pipelines.
  Function path: load -> normalize -> partition -> significance/fit -> validate -> write.
  Cache path: load -> group series -> scale -> solve per operation -> validate -> write.

REQUIREMENTS:
  User-specified:
  - Produce the function latency map, correlation report and cache latency tables.
  - Outputs are overwritten wholesale; identical inputs give identical files.

  Implementation-discovered:
  - Needs to report progress to CLI.
  - Polling analysis reuses the function path with a different dependent variable.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/ingest, internal/normalize, internal/analysis, internal/cache,
    internal/diagnostics, internal/output

ERROR HANDLING:
  - Logs per-group/per-operation errors but continues (resilience).
  - Missing inputs and "no analyzable groups" abort the pipeline.

USAGE:
  engine.Run(cfg, os.Stdout, engine.PipelineFunctions, engine.PipelineMemory)

RELATED FILES:
  - internal/engine/inspect.go
*/

package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/daryltucker/perf-modeler/internal/analysis"
	"github.com/daryltucker/perf-modeler/internal/cache"
	"github.com/daryltucker/perf-modeler/internal/config"
	"github.com/daryltucker/perf-modeler/internal/diagnostics"
	"github.com/daryltucker/perf-modeler/internal/ingest"
	"github.com/daryltucker/perf-modeler/internal/model"
	"github.com/daryltucker/perf-modeler/internal/normalize"
	"github.com/daryltucker/perf-modeler/internal/output"
)

// Pipeline names.
const (
	PipelineFunctions = "functions"
	PipelinePolling   = "polling"
	PipelineMemory    = "memory"
)

// ErrNoInputs is returned when no input file matches the configured pattern.
var ErrNoInputs = errors.New("no input files found")

// Engine runs pipelines for one configuration.
type Engine struct {
	cfg *config.Config
	// out receives the human-readable summaries.
	out io.Writer
}

// New creates an Engine. A nil out discards summaries.
func New(cfg *config.Config, out io.Writer) *Engine {
	if out == nil {
		out = io.Discard
	}
	return &Engine{cfg: cfg, out: out}
}

// Run executes the named pipelines in order and writes the batch report.
// A failing pipeline does not stop the others; the first fatal error is returned.
func Run(cfg *config.Config, out io.Writer, pipelines ...string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e := New(cfg, out)

	// Ensure output directory exists
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}

	var (
		reports  []*model.BatchReport
		firstErr error
	)
	for _, p := range pipelines {
		var (
			rs  []*model.BatchReport
			err error
		)
		switch p {
		case PipelineFunctions:
			rs, err = e.Functions()
		case PipelineMemory:
			var r *model.BatchReport
			r, err = e.Memory()
			if r != nil {
				rs = []*model.BatchReport{r}
			}
		default:
			err = fmt.Errorf("unknown pipeline %q", p)
		}
		if err != nil {
			output.Logger.Error("Pipeline failed", "pipeline", p, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		reports = append(reports, rs...)
	}

	for _, r := range reports {
		r.Sort()
		output.PrintBatchReport(e.out, r)
	}
	reportPath := filepath.Join(cfg.OutputDir, cfg.Outputs.BatchReport)
	if err := output.WriteJSONFile(reportPath, reports); err != nil {
		return fmt.Errorf("failed to write batch report %s: %w", reportPath, err)
	}
	output.Logger.Info("Wrote batch report", "path", reportPath)
	return firstErr
}

// find returns the input files matching pattern.
func (e *Engine) find(pattern string) ([]string, error) {
	paths, err := ingest.Find(e.cfg.Inputs.Dir, pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w matching %s", ErrNoInputs, filepath.Join(e.cfg.Inputs.Dir, pattern))
	}
	return paths, nil
}

func (e *Engine) normalizeOptions() normalize.Options {
	a := e.cfg.Analysis
	return normalize.Options{
		BaselineFunction:   a.BaselineFunction,
		OperationCountKeys: a.OperationCountKeys,
		ExcludeParams:      e.excluded(),
		Filters:            a.Filters,
	}
}

// excluded is the configured exclusion list plus the polling key.
func (e *Engine) excluded() []string {
	out := append([]string(nil), e.cfg.Analysis.ExcludeParams...)
	if k := e.cfg.Analysis.PollingKey; k != "" {
		out = append(out, k)
	}
	return out
}

func (e *Engine) significance() analysis.SignificanceOptions {
	return analysis.SignificanceOptions{
		Alpha:           e.cfg.Analysis.Alpha,
		MinUniqueValues: e.cfg.Analysis.MinUniqueValues,
		UseFDR:          e.cfg.Analysis.UseFDR,
	}
}

func (e *Engine) path(name string) string {
	return filepath.Join(e.cfg.OutputDir, name)
}

// loadFunctionRecords loads every function result file.
func (e *Engine) loadFunctionRecords() ([]model.Record, string, error) {
	paths, err := e.find(e.cfg.Inputs.FunctionPattern)
	if err != nil {
		return nil, "", err
	}
	fp, err := ingest.Fingerprint(paths)
	if err != nil {
		return nil, "", err
	}
	output.Logger.Info("Found function result files", "count", len(paths))
	recs, err := ingest.LoadAll(paths, ingest.LoadFunctionCSV)
	if err != nil {
		return nil, "", err
	}
	return recs, fp, nil
}

// Functions runs the function-latency path, followed by the polling analysis
// when enabled. It returns one report per analysis run.
func (e *Engine) Functions() ([]*model.BatchReport, error) {
	report := model.NewBatchReport(PipelineFunctions)

	recs, fp, err := e.loadFunctionRecords()
	if err != nil {
		return []*model.BatchReport{report}, err
	}
	report.Fingerprint = fp
	report.Records = len(recs)

	opts := e.normalizeOptions()
	normalized, dropped := normalize.Normalize(recs, opts)
	if dropped > 0 {
		output.Logger.Info("Dropped invalid records", "count", dropped)
		report.Warn(model.StageNormalize, "*", fmt.Sprintf("%d record(s) dropped by filters or non-positive iterations", dropped))
	}

	g, err := normalize.Partition(normalized, opts.ExcludeParams, PipelineFunctions)
	if err != nil {
		return []*model.BatchReport{report}, err
	}
	output.Logger.Info("Analyzing functions", "functions", len(g.Functions), "records", g.Records)

	maps := analysis.BuildFunctionMaps(g, analysis.FunctionOptions{Significance: e.significance()}, report)
	v := &diagnostics.Validator{Thresholds: e.cfg.Cache.Thresholds, Report: report}
	v.CheckFunctions(maps.Latency)

	if err := e.writeFunctionMaps(maps, e.cfg.Outputs.FunctionLatencyMap, e.cfg.Outputs.Correlations); err != nil {
		return []*model.BatchReport{report}, err
	}
	output.PrintFunctionSummary(e.out, "Function latency map", maps.Latency)

	reports := []*model.BatchReport{report}
	if !e.cfg.Analysis.Polling {
		return reports, nil
	}

	polling := model.NewBatchReport(PipelinePolling)
	polling.Fingerprint = fp
	reports = append(reports, polling)

	filtered, _ := normalize.ApplyFilters(recs, opts.Filters)
	polled := normalize.Polling(filtered, e.cfg.Analysis.PollingKey, opts.BaselineFunction)
	polling.Records = len(polled)

	pg, err := normalize.Partition(polled, opts.ExcludeParams, PipelinePolling)
	if err != nil {
		// Polling counters are optional.
		output.Logger.Info("No polling data, skipping polling analysis", "key", e.cfg.Analysis.PollingKey)
		polling.Warn(model.StageNormalize, "*", err.Error())
		return reports, nil
	}

	pmaps := analysis.BuildFunctionMaps(pg, analysis.FunctionOptions{
		Significance:           e.significance(),
		BaseKey:                analysis.PollBaseKey,
		MeanForNonPositiveBase: true,
	}, polling)
	if err := e.writeFunctionMaps(pmaps, e.cfg.Outputs.PollingLatencyMap, e.cfg.Outputs.PollingCorrelations); err != nil {
		return reports, err
	}
	output.PrintFunctionSummary(e.out, "Polling latency map", pmaps.Latency)
	return reports, nil
}

func (e *Engine) writeFunctionMaps(maps analysis.FunctionMaps, latencyFile, corrFile string) error {
	if err := output.WriteJSONFile(e.path(latencyFile), maps.Latency); err != nil {
		return fmt.Errorf("failed to write %s: %w", latencyFile, err)
	}
	if err := output.WriteJSONFile(e.path(corrFile), maps.Correlations); err != nil {
		return fmt.Errorf("failed to write %s: %w", corrFile, err)
	}
	output.Logger.Info("Wrote function maps", "latency", e.path(latencyFile), "correlations", e.path(corrFile))
	return nil
}

// memoryPaths selects the memory result files: the latest one, or all of them.
func (e *Engine) memoryPaths() ([]string, string, error) {
	paths, err := e.find(e.cfg.Inputs.MemoryPattern)
	if err != nil {
		return nil, "", err
	}
	if !e.cfg.Inputs.AllMemoryFiles {
		paths = ingest.Latest(paths)
	}
	fp, err := ingest.Fingerprint(paths)
	if err != nil {
		return nil, "", err
	}
	return paths, fp, nil
}

// loadMemoryGrouping loads the selected memory files and groups them into series.
func (e *Engine) loadMemoryGrouping() (*normalize.MemoryGrouping, string, error) {
	paths, fp, err := e.memoryPaths()
	if err != nil {
		return nil, "", err
	}
	for _, p := range paths {
		output.Logger.Info("Loading memory results", "file", p)
	}
	recs, err := ingest.LoadAll(paths, ingest.LoadMemoryCSV)
	if err != nil {
		return nil, fp, err
	}
	g, err := normalize.GroupMemorySeries(recs, PipelineMemory)
	return g, fp, err
}

// Memory runs the cache-hierarchy path.
func (e *Engine) Memory() (*model.BatchReport, error) {
	report := model.NewBatchReport(PipelineMemory)

	g, fp, err := e.loadMemoryGrouping()
	report.Fingerprint = fp
	if g != nil {
		report.Records = g.Records
		for name, reason := range g.Skipped {
			output.Logger.Warn("Skipping benchmark", "name", name, "reason", reason)
			report.Warn(model.StageNormalize, name, reason.Error())
		}
	}
	if err != nil {
		return report, err
	}

	opts := cache.Options{SeriesBase: e.cfg.Cache.SeriesBase}
	v := &diagnostics.Validator{Thresholds: e.cfg.Cache.Thresholds, Report: report}

	var (
		latencyRows []model.CacheLatencyRow
		baseRows    []model.BaseLatencyRow
	)
	for _, op := range g.Operations() {
		var points []cache.ScaledPoint
		for _, s := range g.SeriesFor(op) {
			points = append(points, cache.ScaleSeries(s, e.cfg.Cache.DefaultIterations)...)
		}

		sol, err := cache.SolveOperation(op, points, opts)
		if err != nil {
			output.Logger.Error("Failed to solve operation", "operation", op, "error", err)
			report.Fail(model.StageSolve, op, err)
			continue
		}
		for _, w := range sol.Warnings {
			output.Logger.Warn(w, "operation", op)
			report.Warn(model.StageSolve, op, w)
		}

		quality := v.CheckOperation(sol.Result)
		output.Logger.Info("Solved operation",
			"operation", op,
			"equations", sol.Result.EquationsUsed,
			"rank", sol.Result.Rank,
			"r_squared", fmt.Sprintf("%.4f", sol.Result.RSquared),
		)
		output.PrintOperationSummary(e.out, sol.Result, string(quality), sol.Warnings)

		latencyRows = append(latencyRows, sol.Result.LatencyRows()...)
		baseRows = append(baseRows, sol.Result.BaseRows()...)
		report.Succeed(op)
	}

	if len(latencyRows) == 0 {
		return report, fmt.Errorf("%s: no operation could be solved: %w", PipelineMemory, model.ErrNoAnalyzableGroups)
	}

	latPath := e.path(e.cfg.Outputs.CacheLatencies)
	if err := output.WriteCacheLatencies(latPath, latencyRows); err != nil {
		return report, fmt.Errorf("failed to write %s: %w", latPath, err)
	}
	if opts.SeriesBase {
		basePath := e.path(e.cfg.Outputs.BaseLatencies)
		if err := output.WriteBaseLatencies(basePath, baseRows); err != nil {
			return report, fmt.Errorf("failed to write %s: %w", basePath, err)
		}
	}
	output.Logger.Info("Wrote cache latency tables", "path", latPath, "operations", len(report.Succeeded))
	return report, nil
}
