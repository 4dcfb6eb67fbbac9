/*
PURPOSE:
  Writes the cache latency tables to CSV.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - memory_latency_analysis.csv: operation, cache_level, latency_cycles, r_squared, equations_used, rank.
  - ..._base_latencies.csv: operation, series, base_latency_cycles.
  - Overwrite existing files.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: model.CacheLatencyRow, model.BaseLatencyRow

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write.

USAGE:
  err := output.WriteCacheLatencies("memory_latency_analysis.csv", rows)
*/

package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/daryltucker/perf-modeler/internal/model"
)

// CacheLatencyHeader is the header of the cache latency table.
var CacheLatencyHeader = []string{"operation", "cache_level", "latency_cycles", "r_squared", "equations_used", "rank"}

// BaseLatencyHeader is the header of the series base-latency table.
var BaseLatencyHeader = []string{"operation", "series", "base_latency_cycles"}

// CSVWriter handles writing rows to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter and writes header.
// It overwrites the file if it exists.
func NewCSVWriter(path string, header []string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
	}, nil
}

// Write writes a single record. It is thread-safe.
func (cw *CSVWriter) Write(record []string) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return err
	}
	return cw.file.Close()
}

// WriteCacheLatencies writes the cache latency table.
func WriteCacheLatencies(path string, rows []model.CacheLatencyRow) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = []string{
			r.Operation,
			r.CacheLevel,
			fmt.Sprintf("%.4f", r.LatencyCycles),
			fmt.Sprintf("%.4f", r.RSquared),
			strconv.Itoa(r.EquationsUsed),
			strconv.Itoa(r.Rank),
		}
	}
	return writeTable(path, CacheLatencyHeader, records)
}

// WriteBaseLatencies writes the series base-latency table.
func WriteBaseLatencies(path string, rows []model.BaseLatencyRow) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = []string{r.Operation, r.Series, fmt.Sprintf("%.4f", r.BaseLatencyCycles)}
	}
	return writeTable(path, BaseLatencyHeader, records)
}

func writeTable(path string, header []string, records [][]string) error {
	w, err := NewCSVWriter(path, header)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}
