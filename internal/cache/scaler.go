/*
PURPOSE:
  Cache-Hit Scaler. Converts raw hit/miss/access counters of one benchmark run
  into exclusive per-level hit counts (L0/L1..Ln, then memory), per iteration.

REQUIREMENTS:
  User-specified:
  - Cascade: level i's misses are level i+1's accesses.
  - Ratio from {hits,accesses}, {misses,accesses} or {hits,misses}, clamped to [0,1].
  - Remaining accesses after the last level are memory hits.
  - Normalize everything by iterations.

  Implementation-discovered:
  - perf exposes L1 as l1_loads / l1_load_misses; they alias l1_accesses / l1_misses.
  - A zero denominator yields a zero hit ratio instead of a division error.

ARCHITECTURE INTEGRATION:
  - Called by: cache.SolveOperation via engine
  - Feeds: solver.go

ERROR HANDLING:
  - None; missing counters end the cascade early.
*/

package cache

import (
	"fmt"
	"math"

	"github.com/daryltucker/perf-modeler/internal/model"
	"github.com/daryltucker/perf-modeler/internal/normalize"
)

// MaxLevels bounds the cache levels scanned (l0..l9).
const MaxLevels = 10

// counter aliases applied when the canonical key is absent.
var aliases = map[string]string{
	"l1_accesses": "l1_loads",
	"l1_misses":   "l1_load_misses",
}

// ScaledPoint is one data point after the hit cascade, per iteration.
type ScaledPoint struct {
	Series           string
	InstructionCount int
	Iterations       int64
	// Hits maps cache level index to exclusive hits per iteration.
	Hits map[int]float64
	// Ratios maps cache level index to the clamped hit ratio used.
	Ratios     map[int]float64
	MemoryHits float64
	Cycles     float64
}

// Levels returns the detected level indices in cascade order.
func (p ScaledPoint) Levels() []int {
	var out []int
	for i := 0; i < MaxLevels; i++ {
		if _, ok := p.Hits[i]; ok {
			out = append(out, i)
		}
	}
	return out
}

// TotalHits is Σ level hits + memory hits, per iteration.
func (p ScaledPoint) TotalHits() float64 {
	sum := p.MemoryHits
	for _, h := range p.Hits {
		sum += h
	}
	return sum
}

// Counters is a read view over the numeric counters of a record.
type Counters model.Parameters

func (c Counters) param(key string) (float64, bool) {
	v, ok := c[key]
	if !ok {
		return 0, false
	}
	return v.Float()
}

func (c Counters) get(key string) (float64, bool) {
	if v, ok := c.param(key); ok {
		return v, true
	}
	if alias, ok := aliases[key]; ok {
		return c.param(alias)
	}
	return 0, false
}

func (c Counters) has(key string) bool {
	_, ok := c.get(key)
	return ok
}

// hitRatio derives the hit ratio of level i from whichever counter pair is available.
func (c Counters) hitRatio(level int) (float64, bool) {
	hits, hasHits := c.get(fmt.Sprintf("l%d_hits", level))
	misses, hasMisses := c.get(fmt.Sprintf("l%d_misses", level))
	accesses, hasAccesses := c.get(fmt.Sprintf("l%d_accesses", level))

	var ratio float64
	switch {
	case hasHits && hasAccesses:
		ratio = safeDiv(hits, accesses)
	case hasMisses && hasAccesses:
		if accesses == 0 {
			ratio = 0
		} else {
			ratio = 1 - misses/accesses
		}
	case hasHits && hasMisses:
		ratio = safeDiv(hits, hits+misses)
	default:
		return 0, false
	}
	if math.IsNaN(ratio) {
		return 0, true
	}
	return math.Max(0, math.Min(ratio, 1)), true
}

// Scale runs the hit cascade for one data point. The access stream entering
// the hierarchy is instructionCount × iterations.
func Scale(series string, counters Counters, cycles float64, instructionCount int, iterations int64) ScaledPoint {
	p := ScaledPoint{
		Series:           series,
		InstructionCount: instructionCount,
		Iterations:       iterations,
		Hits:             make(map[int]float64),
		Ratios:           make(map[int]float64),
	}
	if iterations <= 0 {
		return p
	}
	iters := float64(iterations)
	remaining := float64(instructionCount) * iters

	start := 1
	if counters.has("l0_hits") || counters.has("l0_misses") {
		start = 0
	}
	for level := start; level < MaxLevels; level++ {
		ratio, ok := counters.hitRatio(level)
		if !ok {
			break
		}
		hits := remaining * ratio
		remaining -= hits
		p.Hits[level] = hits / iters
		p.Ratios[level] = ratio
	}

	p.MemoryHits = remaining / iters
	p.Cycles = cycles / iters
	return p
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// ScaleSeries scales every point of a memory series. Records without a
// positive iteration count use defaultIterations.
func ScaleSeries(s normalize.Series, defaultIterations int64) []ScaledPoint {
	out := make([]ScaledPoint, 0, len(s.Points))
	for _, pt := range s.Points {
		iters := pt.Record.Iterations
		if iters <= 0 {
			iters = defaultIterations
		}
		out = append(out, Scale(s.Key, Counters(pt.Record.Parameters), pt.Record.TotalCycles, pt.Benchmark.InstructionCount, iters))
	}
	return out
}
