/*
PURPOSE:
  Hierarchy Solver. Recovers one latency per cache level (and optionally one
  base latency per series) from the scaled hits of every point of an operation.

REQUIREMENTS:
  User-specified:
  - Levels are the union over all points, contiguous from L0 or L1, always
    followed by Memory; fewer than two levels falls back to {L1, Memory}.
  - One row per point: per-level hits, then a one-hot series indicator when
    series bases are enabled. Target is cycles per iteration.
  - Stacked least squares across all series; report rank, R², equations.
  - rank < variables is a warning, never a failure.

  Implementation-discovered:
  - Series are sorted so the variable order, and the output, is stable.
  - The indicator is stored as a per-row series index and only expanded
    into columns when the matrix is built.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (memory pipeline)
  - Uses: internal/stats.LeastSquares, gonum mat

ERROR HANDLING:
  - ErrInsufficientData when an operation has no points.
  - Solver warnings are returned with the result for the caller to log.

RELATED FILES:
  - internal/cache/scaler.go - produces the points.
  - internal/diagnostics/validate.go - sanity checks on the result.
*/

package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/daryltucker/perf-modeler/internal/model"
	"github.com/daryltucker/perf-modeler/internal/stats"
)

// MemoryLevel names the final level of every hierarchy.
const MemoryLevel = "Memory"

// Options configures SolveOperation.
type Options struct {
	// SeriesBase adds one fixed-overhead variable per series.
	SeriesBase bool
}

// System is the stacked linear system of one operation. Level columns are
// stored densely; the series indicator is kept as an index per row and only
// expanded by Matrix.
type System struct {
	Levels    []string
	Series    []string
	Hits      [][]float64 // row -> per-level hits
	SeriesIdx []int       // row -> index into Series
	Target    []float64
	// SeriesBase reports whether the one-hot series columns are part of the system.
	SeriesBase bool
}

// Variables is the number of unknowns.
func (s *System) Variables() int {
	if s.SeriesBase {
		return len(s.Levels) + len(s.Series)
	}
	return len(s.Levels)
}

// Matrix materializes the design matrix.
func (s *System) Matrix() *mat.Dense {
	rows, cols := len(s.Target), s.Variables()
	if rows == 0 || cols == 0 {
		return nil
	}
	a := mat.NewDense(rows, cols, nil)
	for i, hits := range s.Hits {
		for j, h := range hits {
			a.Set(i, j, h)
		}
		if s.SeriesBase {
			a.Set(i, len(s.Levels)+s.SeriesIdx[i], 1)
		}
	}
	return a
}

// DetectLevels returns the cache level names present in points, contiguous
// from L0 or L1, followed by Memory. With no cache level detected the
// hierarchy is {L1, Memory}.
func DetectLevels(points []ScaledPoint) []string {
	present := make(map[int]bool)
	for _, p := range points {
		for lvl := range p.Hits {
			present[lvl] = true
		}
	}
	var levels []string
	for i := 0; i < MaxLevels; i++ {
		if present[i] {
			levels = append(levels, "L"+strconv.Itoa(i))
		} else if i > 0 {
			break
		}
	}
	if len(levels) == 0 {
		return []string{"L1", MemoryLevel}
	}
	return append(levels, MemoryLevel)
}

// levelIndex maps "L3" to 3. Memory and unknown names return -1.
func levelIndex(name string) int {
	if !strings.HasPrefix(name, "L") {
		return -1
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil {
		return -1
	}
	return n
}

// BuildSystem stacks the points of one operation into a System.
func BuildSystem(points []ScaledPoint, opts Options) *System {
	sys := &System{Levels: DetectLevels(points), SeriesBase: opts.SeriesBase}

	seriesIdx := make(map[string]int)
	for _, p := range points {
		if _, ok := seriesIdx[p.Series]; !ok {
			seriesIdx[p.Series] = 0
			sys.Series = append(sys.Series, p.Series)
		}
	}
	sort.Strings(sys.Series)
	for i, s := range sys.Series {
		seriesIdx[s] = i
	}

	for _, p := range points {
		row := make([]float64, len(sys.Levels))
		for j, name := range sys.Levels {
			if name == MemoryLevel {
				row[j] = p.MemoryHits
				continue
			}
			row[j] = p.Hits[levelIndex(name)]
		}
		sys.Hits = append(sys.Hits, row)
		sys.SeriesIdx = append(sys.SeriesIdx, seriesIdx[p.Series])
		sys.Target = append(sys.Target, p.Cycles)
	}
	return sys
}

// Solution is the solved hierarchy plus non-fatal findings.
type Solution struct {
	Result   model.OperationResult
	Warnings []string
}

// SolveOperation solves cycles = Σ hits_level·latency_level (+ series base)
// across all points of one operation. A rank-deficient system is solved with
// the minimum-norm solution and reported as a warning.
func SolveOperation(op string, points []ScaledPoint, opts Options) (*Solution, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("operation %s: no data points: %w", op, model.ErrInsufficientData)
	}
	sys := BuildSystem(points, opts)

	sol, err := stats.LeastSquares(sys.Matrix(), sys.Target)
	if err != nil {
		return nil, fmt.Errorf("operation %s: %w", op, err)
	}

	nLevels := len(sys.Levels)
	res := model.OperationResult{
		Operation:     op,
		Levels:        sys.Levels,
		Latencies:     append([]float64(nil), sol.Coef[:nLevels]...),
		Series:        sys.Series,
		RSquared:      sol.RSquared,
		EquationsUsed: len(sys.Target),
		Rank:          sol.Rank,
		Variables:     sys.Variables(),
		Residual:      sol.Residual,
	}
	if sys.SeriesBase {
		res.BaseLatencies = append([]float64(nil), sol.Coef[nLevels:]...)
	} else {
		res.Series = nil
	}

	out := &Solution{Result: res}
	if !sol.FullRank() {
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"system is rank deficient (rank %d < %d variables): %v", sol.Rank, sol.Vars, model.ErrSingularSystem))
	}
	return out, nil
}
