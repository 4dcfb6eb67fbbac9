package cache

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/perf-modeler/internal/model"
	"github.com/daryltucker/perf-modeler/internal/normalize"
)

func counters(kv map[string]float64) Counters {
	c := make(Counters, len(kv))
	for k, v := range kv {
		c[k] = model.Number(v)
	}
	return c
}

func TestScaleConservesAccesses(t *testing.T) {
	tests := []struct {
		name     string
		counters map[string]float64
		count    int
		levels   []int
	}{
		{
			name:     "l1 aliases and l2/l3 accesses",
			counters: map[string]float64{"l1_loads": 8000, "l1_load_misses": 2000, "l2_accesses": 2000, "l2_hits": 1500, "l3_accesses": 500, "l3_misses": 100},
			count:    8,
			levels:   []int{1, 2, 3},
		},
		{
			name:     "l0 hits and misses",
			counters: map[string]float64{"l0_hits": 30, "l0_misses": 70, "l1_hits": 10, "l1_misses": 60},
			count:    4,
			levels:   []int{0, 1},
		},
		{
			name:     "no counters",
			counters: map[string]float64{},
			count:    16,
		},
		{
			name:     "zero denominator",
			counters: map[string]float64{"l1_accesses": 0, "l1_hits": 0},
			count:    2,
			levels:   []int{1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Scale("s", counters(tt.counters), 5000, tt.count, 1000)
			assert.Equal(t, tt.levels, p.Levels())
			assert.InDelta(t, float64(tt.count), p.TotalHits(), 1e-9)
			assert.InDelta(t, 5.0, p.Cycles, 1e-12)
		})
	}
}

func TestScaleCascade(t *testing.T) {
	p := Scale("s", counters(map[string]float64{
		"l1_accesses": 100, "l1_hits": 75, // 0.75
		"l2_hits": 1, "l2_misses": 3, // 0.25
	}), 0, 1, 10)

	assert.InDelta(t, 0.75, p.Hits[1], 1e-12)
	assert.InDelta(t, 0.0625, p.Hits[2], 1e-12)
	assert.InDelta(t, 0.1875, p.MemoryHits, 1e-12)
}

func TestScaleClampsRatio(t *testing.T) {
	p := Scale("s", counters(map[string]float64{"l1_accesses": 10, "l1_hits": 50}), 0, 1, 1)
	assert.Equal(t, 1.0, p.Ratios[1])
	assert.Equal(t, 0.0, p.MemoryHits)

	p = Scale("s", counters(map[string]float64{"l1_accesses": 10, "l1_misses": 50}), 0, 1, 1)
	assert.Equal(t, 0.0, p.Ratios[1])
	assert.Equal(t, 1.0, p.MemoryHits)
}

func TestCountersLookup(t *testing.T) {
	c := counters(map[string]float64{"l1_accesses": 10, "l1_loads": 99, "l1_load_misses": 4})
	c["l2_hits"] = model.Text("n/a")

	v, ok := c.get("l1_accesses")
	require.True(t, ok)
	assert.Equal(t, 10.0, v) // canonical key wins over its alias

	v, ok = c.get("l1_misses")
	require.True(t, ok)
	assert.Equal(t, 4.0, v)

	assert.False(t, c.has("l2_hits"))
	assert.False(t, c.has("l3_misses"))
}

func TestScaleNonFiniteRatio(t *testing.T) {
	p := Scale("s", counters(map[string]float64{"l1_accesses": math.Inf(1), "l1_hits": math.Inf(1)}), 0, 2, 1)
	assert.Equal(t, 0.0, p.Ratios[1])
	assert.Equal(t, 2.0, p.MemoryHits)
}

// point builds a scaled point with fixed L1/memory hit counts.
func point(series string, l1, mem, cycles float64) ScaledPoint {
	return ScaledPoint{Series: series, Hits: map[int]float64{1: l1}, MemoryHits: mem, Cycles: cycles}
}

func TestSolveTwoLevelRecovery(t *testing.T) {
	var pts []ScaledPoint
	for _, hm := range [][2]float64{{10, 1}, {20, 1}, {10, 3}, {40, 2}, {5, 7}} {
		pts = append(pts, point("copy-4K", hm[0], hm[1], hm[0]*1+hm[1]*100))
	}

	sol, err := SolveOperation("copy", pts, Options{})
	require.NoError(t, err)
	res := sol.Result

	assert.Equal(t, []string{"L1", MemoryLevel}, res.Levels)
	assert.InDelta(t, 1.0, res.Latencies[0], 1e-9)
	assert.InDelta(t, 100.0, res.Latencies[1], 1e-9)
	assert.InDelta(t, 1.0, res.RSquared, 1e-9)
	assert.Equal(t, 2, res.Rank)
	assert.Equal(t, 5, res.EquationsUsed)
	assert.Empty(t, res.BaseLatencies)
	assert.Empty(t, sol.Warnings)
}

func TestSolveSeriesBases(t *testing.T) {
	bases := map[string]float64{"load-4K": 3, "load-64K": 11}
	var pts []ScaledPoint
	for series, base := range bases {
		for _, hm := range [][2]float64{{4, 0.5}, {8, 1}, {16, 0.25}, {2, 2}} {
			pts = append(pts, point(series, hm[0], hm[1], base+hm[0]*2+hm[1]*150))
		}
	}

	sol, err := SolveOperation("load", pts, Options{SeriesBase: true})
	require.NoError(t, err)
	res := sol.Result

	require.Equal(t, []string{"load-4K", "load-64K"}, res.Series)
	assert.InDelta(t, 2.0, res.Latencies[0], 1e-6)
	assert.InDelta(t, 150.0, res.Latencies[1], 1e-6)
	assert.InDelta(t, 3.0, res.BaseLatencies[0], 1e-6)
	assert.InDelta(t, 11.0, res.BaseLatencies[1], 1e-6)
	assert.Equal(t, 4, res.Variables)
	assert.Len(t, res.BaseRows(), 2)
	assert.Len(t, res.LatencyRows(), 2)
}

func TestSolveRankDeficientWarns(t *testing.T) {
	// L1 hits are always twice the memory hits: the columns are collinear.
	pts := []ScaledPoint{
		point("a", 2, 1, 10),
		point("a", 4, 2, 20),
		point("a", 6, 3, 30),
	}
	sol, err := SolveOperation("op", pts, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, sol.Result.Rank)
	require.Len(t, sol.Warnings, 1)
	assert.Contains(t, sol.Warnings[0], "rank deficient")
}

func TestSolveNoPoints(t *testing.T) {
	_, err := SolveOperation("op", nil, Options{})
	assert.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestDetectLevels(t *testing.T) {
	assert.Equal(t, []string{"L1", MemoryLevel}, DetectLevels([]ScaledPoint{{Hits: map[int]float64{}}}))
	assert.Equal(t, []string{"L0", "L1", MemoryLevel},
		DetectLevels([]ScaledPoint{{Hits: map[int]float64{0: 1}}, {Hits: map[int]float64{1: 1}}}))
	assert.Equal(t, []string{"L1", "L2", MemoryLevel},
		DetectLevels([]ScaledPoint{{Hits: map[int]float64{1: 1, 2: 1, 4: 1}}}))
}

func TestSolveSynthesizedHierarchy(t *testing.T) {
	pts := []ScaledPoint{
		{Series: "s", Hits: map[int]float64{}, MemoryHits: 1, Cycles: 90},
		{Series: "s", Hits: map[int]float64{}, MemoryHits: 2, Cycles: 180},
	}
	sol, err := SolveOperation("op", pts, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"L1", MemoryLevel}, sol.Result.Levels)
	assert.InDelta(t, 90.0, sol.Result.Latencies[1], 1e-9)
	assert.Len(t, sol.Warnings, 1)
}

func TestScaleSeriesDefaultIterations(t *testing.T) {
	s := normalize.Series{Key: "copy-4K", Operation: "copy", Points: []normalize.SeriesPoint{
		{
			Benchmark: normalize.MemoryBenchmark{InstructionCount: 2},
			Record:    model.Record{TotalCycles: 400, Parameters: model.Parameters{"l1_accesses": model.Number(200), "l1_hits": model.Number(100)}},
		},
	}}
	pts := ScaleSeries(s, 100)
	require.Len(t, pts, 1)
	assert.Equal(t, int64(100), pts[0].Iterations)
	assert.InDelta(t, 4.0, pts[0].Cycles, 1e-12)
	assert.InDelta(t, 1.0, pts[0].Hits[1], 1e-12)
	assert.InDelta(t, 1.0, pts[0].MemoryHits, 1e-12)
}
