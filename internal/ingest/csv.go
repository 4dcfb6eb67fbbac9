/*
PURPOSE:
  Loads benchmark result CSVs into records: api-perf files for the function
  path, memory benchmark files for the cache path.

REQUIREMENTS:
  User-specified:
  - Function files: function, prefix, iterations, total_cycles, metadata.
  - Memory files: benchmark, iterations, cycles and any number of counters.
  - "N/A" and empty counter cells are absent, never zero.

  Implementation-discovered:
  - Metadata is a stringified map that may use single quotes.
  - Cycle counts must be finite and non-negative; anything else would poison
    every mean and solve downstream.

ERROR HANDLING:
  - Bad rows are logged and skipped; only unreadable files or a missing
    required column return an error.

RELATED FILES:
  - internal/ingest/open.go - decompression and file discovery.
*/

package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/daryltucker/perf-modeler/internal/model"
	"github.com/daryltucker/perf-modeler/internal/output"
)

// FunctionFilePrefix is the file name prefix of api-perf result files; the
// remainder up to ".csv" is the run condition.
const FunctionFilePrefix = "api_perf_results_"

// ConditionFromFile derives the run condition from a result file name.
func ConditionFromFile(path string) string {
	name := StripCompression(filepath.Base(path))
	name = strings.TrimSuffix(name, ".csv")
	return strings.TrimPrefix(name, FunctionFilePrefix)
}

// ParseMetadata decodes a stringified metadata map. Single quotes are
// accepted in place of double quotes. Values that are not scalars are
// dropped.
func ParseMetadata(raw string) (model.Parameters, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "{}" {
		return model.Parameters{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(strings.ReplaceAll(raw, "'", `"`)))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return model.Parameters{}, fmt.Errorf("metadata %q: %w", raw, err)
	}

	params := make(model.Parameters, len(m))
	for k, v := range m {
		pv, err := model.FromAny(v)
		if err != nil {
			continue
		}
		params[k] = pv
	}
	return params, nil
}

// header maps column names to indexes.
type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	cols, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header")
		}
		return nil, err
	}
	h := make(header, len(cols))
	for i, c := range cols {
		h[strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))] = i
	}
	return h, nil
}

func (h header) require(names ...string) error {
	for _, n := range names {
		if _, ok := h[n]; !ok {
			return fmt.Errorf("missing column %q", n)
		}
	}
	return nil
}

func (h header) get(row []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseCount accepts integer or float notation ("1000", "1000.0", "1e6").
func parseCount(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := parseFinite(s)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// parseFinite parses a float and rejects NaN and ±Inf, which strconv accepts.
func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return f, nil
}

// parseCycles parses a cycle count: finite and >= 0.
func parseCycles(s string) (float64, error) {
	f, err := parseFinite(s)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, fmt.Errorf("negative cycle count %q", s)
	}
	return f, nil
}

// LoadFunctionCSV reads one api-perf result file. Rows with unparsable
// counts are skipped and logged; unparsable metadata becomes empty.
func LoadFunctionCSV(path string) ([]model.Record, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readFunctionCSV(rc, path)
}

func readFunctionCSV(r io.Reader, path string) ([]model.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := h.require("function", "iterations", "total_cycles"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	condition := ConditionFromFile(path)
	source := filepath.Base(path)

	var out []model.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		iters, err := parseCount(h.get(row, "iterations"))
		if err != nil {
			output.Logger.Warn("Skipping row with bad iterations", "file", source, "line", line, "error", err)
			continue
		}
		cycles, err := parseCycles(h.get(row, "total_cycles"))
		if err != nil {
			output.Logger.Warn("Skipping row with bad total_cycles", "file", source, "line", line, "error", err)
			continue
		}
		params, err := ParseMetadata(h.get(row, "metadata"))
		if err != nil {
			output.Logger.Debug("Unparsable metadata, treated as empty", "file", source, "line", line, "error", err)
		}

		out = append(out, model.Record{
			Function:    h.get(row, "function"),
			Condition:   condition,
			Prefix:      h.get(row, "prefix"),
			SourceFile:  source,
			Iterations:  iters,
			TotalCycles: cycles,
			Parameters:  params,
		})
	}
	return out, nil
}

// memory result columns that are not counters.
var memoryIdentity = map[string]bool{"benchmark": true, "group": true, "iterations": true, "cycles": true}

// LoadMemoryCSV reads one memory benchmark result file. Every column other
// than benchmark, iterations and cycles is a counter; "N/A" and empty cells
// are absent.
func LoadMemoryCSV(path string) ([]model.Record, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readMemoryCSV(rc, path)
}

func readMemoryCSV(r io.Reader, path string) ([]model.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := h.require("benchmark", "cycles"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	source := filepath.Base(path)

	var out []model.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		cycles, err := parseCycles(h.get(row, "cycles"))
		if err != nil {
			output.Logger.Warn("Skipping row with bad cycles", "file", source, "line", line, "error", err)
			continue
		}
		var iters int64
		if s := h.get(row, "iterations"); s != "" {
			if iters, err = parseCount(s); err != nil {
				output.Logger.Warn("Bad iterations, using default", "file", source, "line", line, "error", err)
				iters = 0
			}
		}

		params, err := memoryCounters(h, row)
		if err != nil {
			output.Logger.Warn("Skipping row with bad counter", "file", source, "line", line, "error", err)
			continue
		}

		out = append(out, model.Record{
			Function:    h.get(row, "benchmark"),
			SourceFile:  source,
			Iterations:  iters,
			TotalCycles: cycles,
			Parameters:  params,
		})
	}
	return out, nil
}

// memoryCounters collects the counter cells of a memory row. Unparsable text
// is ignored; a non-finite number rejects the whole row.
func memoryCounters(h header, row []string) (model.Parameters, error) {
	params := make(model.Parameters)
	for name, i := range h {
		if memoryIdentity[name] || i >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[i])
		if cell == "" || strings.EqualFold(cell, "N/A") {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s: non-finite value %q", name, cell)
		}
		params[name] = model.Number(v)
	}
	return params, nil
}

// LoadAll loads every path with load and concatenates the records in path order.
func LoadAll(paths []string, load func(string) ([]model.Record, error)) ([]model.Record, error) {
	var out []model.Record
	for _, p := range paths {
		recs, err := load(p)
		if err != nil {
			return nil, err
		}
		output.Logger.Info("Loaded input", "file", filepath.Base(p), "records", len(recs))
		out = append(out, recs...)
	}
	return out, nil
}

