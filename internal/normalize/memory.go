/*
PURPOSE:
  Parses memory benchmark names and groups their records into series that
  differ only by instruction count.

REQUIREMENTS:
  - Name grammar: bench_memory_{op}-{size}[-S{stride}][-{count}], count defaults to 1.
  - A series needs at least two distinct instruction counts.
*/

package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/daryltucker/perf-modeler/internal/model"
)

// MemoryBenchmarkPrefix marks cache-hierarchy benchmarks.
const MemoryBenchmarkPrefix = "bench_memory_"

// MemoryBenchmark is the identity parsed from a benchmark name of the form
// bench_memory_{op}-{size}[-S{stride}][-{count}].
type MemoryBenchmark struct {
	Name             string
	Operation        string
	BufferSize       string
	Stride           int
	HasStride        bool
	InstructionCount int
}

// SeriesKey identifies the series the benchmark belongs to: operation, buffer
// size and stride. Instruction count varies within a series.
func (b MemoryBenchmark) SeriesKey() string {
	if b.HasStride {
		return fmt.Sprintf("%s-%s-S%d", b.Operation, b.BufferSize, b.Stride)
	}
	return b.Operation + "-" + b.BufferSize
}

// ParseMemoryBenchmark parses a memory benchmark name.
func ParseMemoryBenchmark(name string) (MemoryBenchmark, error) {
	idx := strings.Index(name, MemoryBenchmarkPrefix)
	if idx < 0 {
		return MemoryBenchmark{}, fmt.Errorf("%q is not a memory benchmark", name)
	}
	parts := strings.Split(name[idx+len(MemoryBenchmarkPrefix):], "-")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return MemoryBenchmark{}, fmt.Errorf("could not parse benchmark name format: %q", name)
	}

	b := MemoryBenchmark{
		Name:             name,
		Operation:        parts[0],
		BufferSize:       parts[1],
		InstructionCount: 1,
	}

	strideIdx := -1
	for i := 2; i < len(parts); i++ {
		if strings.HasPrefix(parts[i], "S") {
			strideIdx = i
			break
		}
	}

	if strideIdx >= 0 {
		stride, err := strconv.Atoi(parts[strideIdx][1:])
		if err != nil {
			return MemoryBenchmark{}, fmt.Errorf("could not parse stride from %q: %w", name, err)
		}
		b.Stride, b.HasStride = stride, true

		rest := make([]string, 0, len(parts)-1)
		rest = append(rest, parts[:strideIdx]...)
		rest = append(rest, parts[strideIdx+1:]...)
		if len(rest) > 2 {
			if n, err := strconv.Atoi(rest[len(rest)-1]); err == nil {
				b.InstructionCount = n
			}
		}
		return b, nil
	}

	if len(parts) >= 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return MemoryBenchmark{}, fmt.Errorf("could not parse instruction count from %q: %w", name, err)
		}
		b.InstructionCount = n
	}
	return b, nil
}

// SeriesPoint is one measurement of a series.
type SeriesPoint struct {
	Benchmark MemoryBenchmark
	Record    model.Record
}

// Series is a group of memory benchmarks differing only by instruction count.
type Series struct {
	Key       string
	Operation string
	Points    []SeriesPoint
}

// DistinctCounts returns the number of distinct instruction counts in the series.
func (s Series) DistinctCounts() int {
	seen := make(map[int]struct{}, len(s.Points))
	for _, p := range s.Points {
		seen[p.Benchmark.InstructionCount] = struct{}{}
	}
	return len(seen)
}

// MemoryGrouping is the result of grouping memory benchmark records.
type MemoryGrouping struct {
	Series   []Series
	Skipped  map[string]error // benchmark or series name -> reason
	Records  int
	Accepted int
}

// GroupMemorySeries parses benchmark names and groups records into series,
// sorted by key with points sorted by instruction count. Series with fewer than
// two distinct instruction counts are dropped with ErrInsufficientData.
func GroupMemorySeries(records []model.Record, pipeline string) (*MemoryGrouping, error) {
	g := &MemoryGrouping{Skipped: make(map[string]error), Records: len(records)}
	bySeries := make(map[string]*Series)
	for _, r := range records {
		b, err := ParseMemoryBenchmark(r.Function)
		if err != nil {
			g.Skipped[r.Function] = err
			continue
		}
		key := b.SeriesKey()
		s, ok := bySeries[key]
		if !ok {
			s = &Series{Key: key, Operation: b.Operation}
			bySeries[key] = s
		}
		s.Points = append(s.Points, SeriesPoint{Benchmark: b, Record: r})
	}

	keys := make([]string, 0, len(bySeries))
	for k := range bySeries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		s := bySeries[k]
		if n := s.DistinctCounts(); n < 2 {
			g.Skipped[k] = fmt.Errorf("series %s has %d distinct instruction count(s): %w", k, n, model.ErrInsufficientData)
			continue
		}
		sort.SliceStable(s.Points, func(i, j int) bool {
			return s.Points[i].Benchmark.InstructionCount < s.Points[j].Benchmark.InstructionCount
		})
		g.Series = append(g.Series, *s)
		g.Accepted += len(s.Points)
	}

	if len(g.Series) == 0 {
		return g, &model.NoGroupsError{Pipeline: pipeline, Records: len(records)}
	}
	return g, nil
}

// Operations returns the distinct operations of the grouping in sorted order.
func (g *MemoryGrouping) Operations() []string {
	seen := make(map[string]struct{})
	for _, s := range g.Series {
		seen[s.Operation] = struct{}{}
	}
	return sortedKeys(seen)
}

// SeriesFor returns the series of one operation, in key order.
func (g *MemoryGrouping) SeriesFor(op string) []Series {
	var out []Series
	for _, s := range g.Series {
		if s.Operation == op {
			out = append(out, s)
		}
	}
	return out
}
