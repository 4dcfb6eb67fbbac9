package normalize

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/perf-modeler/internal/model"
)

func rec(fn, prefix string, iters int64, cycles float64, params model.Parameters) model.Record {
	return model.Record{Function: fn, Prefix: prefix, Iterations: iters, TotalCycles: cycles, Parameters: params}
}

func TestClassify(t *testing.T) {
	records := []model.Record{
		rec("f", "", 10, 100, model.Parameters{"burst": model.Number(32), "mode": model.Text("fast")}),
		rec("f", "", 10, 100, model.Parameters{"burst": model.Number(math.NaN()), "size": model.Number(64)}),
		rec("f", "", 10, 100, model.Parameters{"total_poll_cycles": model.Number(5)}),
	}

	kinds := Classify(records, []string{"total_poll_cycles"})
	assert.Equal(t, []string{"mode"}, kinds.Categorical)
	assert.Equal(t, []string{"burst", "size"}, kinds.Numerical)
}

func TestNormalizeSubtractsOverheadAndClamps(t *testing.T) {
	records := []model.Record{
		rec("empty", "dpdk", 100, 1000, nil),        // 10 cycles/iter overhead
		rec("empty", "dpdk", 200, 2400, nil),        // 12 cycles/iter -> mean 11
		rec("fast", "dpdk", 100, 500, nil),          // below overhead
		rec("slow", "dpdk", 100, 5100, nil),         // 5100 - 1100
		rec("slow", "crypto", 100, 5100, nil),       // no baseline for prefix
	}

	out, dropped := Normalize(records, Options{BaselineFunction: "empty"})
	require.Len(t, out, 5)
	assert.Equal(t, 0, dropped)

	assert.Equal(t, 1000.0, out[0].NetCycles, "baseline rows keep raw cycles")
	assert.Equal(t, 0.0, out[2].NetCycles)
	assert.Equal(t, 4000.0, out[3].NetCycles)
	assert.Equal(t, 40.0, out[3].Latency)
	assert.Equal(t, 5100.0, out[4].NetCycles)

	for _, r := range out {
		assert.GreaterOrEqual(t, r.NetCycles, 0.0)
	}
	// Inputs untouched.
	assert.Equal(t, 0.0, records[3].NetCycles)
}

func TestAdjustedCyclesNeverNegative(t *testing.T) {
	for _, raw := range []float64{0, 1, 50, 999, 1000, 1001, 1e9} {
		got := AdjustedCycles(raw, 100, 10)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.Equal(t, math.Max(0, raw-1000), got)
	}
}

func TestNormalizeOperationCount(t *testing.T) {
	records := []model.Record{
		rec("rx", "", 10, 1000, model.Parameters{"total_packets_received": model.Number(50)}),
		rec("rx", "", 10, 1000, model.Parameters{"total_packets_received": model.Number(0), "total_packets_sent": model.Number(20)}),
		rec("tx", "", 10, 1000, model.Parameters{"total_packets_sent": model.Number(20)}),
		rec("zero", "", 0, 1000, nil),
	}
	out, dropped := Normalize(records, Options{OperationCountKeys: []string{"total_packets_received", "total_packets_sent"}})
	require.Len(t, out, 3)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 20.0, out[0].LatencyPerOperation)
	assert.Equal(t, 100.0, out[1].LatencyPerOperation, "first present key wins even when zero")
	assert.Equal(t, 50.0, out[2].LatencyPerOperation)
}

func TestApplyFilters(t *testing.T) {
	filters := []Filter{{Function: "rte_eth_rx_burst", RequirePositive: "total_packets_received", ExemptConditions: []string{"0"}}}
	records := []model.Record{
		{Function: "rte_eth_rx_burst", Condition: "10G", Parameters: model.Parameters{"total_packets_received": model.Number(0)}},
		{Function: "rte_eth_rx_burst", Condition: "10G", Parameters: model.Parameters{"total_packets_received": model.Number(4)}},
		{Function: "rte_eth_rx_burst", Condition: "0", Parameters: model.Parameters{"total_packets_received": model.Number(0)}},
		{Function: "rte_memcpy", Condition: "10G"},
	}
	out, dropped := ApplyFilters(records, filters)
	assert.Equal(t, 1, dropped)
	require.Len(t, out, 3)
	assert.Equal(t, "0", out[1].Condition)
}

func TestPolling(t *testing.T) {
	records := []model.Record{
		rec("empty", "p", 10, 100, nil),
		rec("deq", "p", 10, 1000, model.Parameters{"total_poll_cycles": model.Number(600)}),
		rec("deq", "p", 10, 1000, model.Parameters{"total_poll_cycles": model.Number(50)}),
		rec("deq", "p", 10, 1000, nil),
	}
	out := Polling(records, "total_poll_cycles", "empty")
	require.Len(t, out, 2)
	assert.Equal(t, 50.0, out[0].LatencyPerOperation)
	assert.Equal(t, 0.0, out[1].LatencyPerOperation)
}

func TestPartitionCases(t *testing.T) {
	records := []model.Record{
		rec("enc", "", 1, 1, model.Parameters{"algo": model.Text("aes"), "len": model.Number(64)}),
		rec("enc", "", 1, 1, model.Parameters{"algo": model.Text("aes"), "len": model.Number(128)}),
		rec("enc", "", 1, 1, model.Parameters{"algo": model.Text("chacha"), "len": model.Number(64)}),
		rec("cksum", "", 1, 1, model.Parameters{"len": model.Number(64)}),
	}

	g, err := Partition(records, nil, "functions")
	require.NoError(t, err)
	require.Len(t, g.Functions, 2)

	cksum := g.Functions[0]
	assert.Equal(t, "cksum", cksum.Function)
	assert.False(t, cksum.HasCases)
	require.Len(t, cksum.Cases, 1)
	assert.Len(t, cksum.Cases[0].Records, 1)

	enc := g.Functions[1]
	assert.True(t, enc.HasCases)
	require.Len(t, enc.Cases, 2)
	assert.Equal(t, "algo=aes", enc.Cases[0].Case.Name())
	assert.Len(t, enc.Cases[0].Records, 2)
	assert.Equal(t, "algo=chacha", enc.Cases[1].Case.Name())

	assert.Equal(t, []string{"len"}, g.Kinds.Numerical)
}

func TestPartitionCasesAreExact(t *testing.T) {
	records := []model.Record{
		rec("rx", "", 1, 1, model.Parameters{"mode": model.Text("poll"), "burst": model.Number(8)}),
		rec("rx", "", 1, 1, model.Parameters{"mode": model.Text("poll"), "queue": model.Text("q1"), "burst": model.Number(16)}),
		rec("rx", "", 1, 1, model.Parameters{"burst": model.Number(32)}),
		rec("rx", "", 1, 1, nil),
	}

	g, err := Partition(records, nil, "functions")
	require.NoError(t, err)
	rx := g.Functions[0]
	require.True(t, rx.HasCases)

	byName := make(map[string][]model.Record)
	for _, cg := range rx.Cases {
		byName[cg.Case.Name()] = cg.Records
	}
	require.Len(t, byName, 3)

	// the record missing every categorical key stays in its own case
	require.Len(t, byName[""], 1)
	b, _ := byName[""][0].Param("burst")
	assert.Equal(t, 32.0, b)

	require.Len(t, byName["mode=poll"], 1)
	b, _ = byName["mode=poll"][0].Param("burst")
	assert.Equal(t, 8.0, b)
	assert.Len(t, byName["mode=poll, queue=q1"], 1)
}

func TestCaseNameIsOrderIndependent(t *testing.T) {
	a := model.NewCase(map[string]string{"b": "2", "a": "1"})
	b := model.NewCase(map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, "a=1, b=2", a.Name())
	assert.Equal(t, a.Name(), b.Name())
}

func TestPartitionNoGroups(t *testing.T) {
	_, err := Partition(nil, nil, "functions")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNoAnalyzableGroups))

	var ng *model.NoGroupsError
	require.ErrorAs(t, err, &ng)
	assert.Equal(t, "functions", ng.Pipeline)
}

func TestParseMemoryBenchmark(t *testing.T) {
	tests := []struct {
		name   string
		want   MemoryBenchmark
		series string
		err    bool
	}{
		{name: "bench_memory_load-1MB-S128-4", want: MemoryBenchmark{Operation: "load", BufferSize: "1MB", Stride: 128, HasStride: true, InstructionCount: 4}, series: "load-1MB-S128"},
		{name: "bench_memory_load-1MB-S128", want: MemoryBenchmark{Operation: "load", BufferSize: "1MB", Stride: 128, HasStride: true, InstructionCount: 1}, series: "load-1MB-S128"},
		{name: "bench_memory_store-32KB-2", want: MemoryBenchmark{Operation: "store", BufferSize: "32KB", InstructionCount: 2}, series: "store-32KB"},
		{name: "bench_memory_atomic_add-4KB", want: MemoryBenchmark{Operation: "atomic_add", BufferSize: "4KB", InstructionCount: 1}, series: "atomic_add-4KB"},
		{name: "bench_memory_load-1MB-Sxx-4", err: true},
		{name: "bench_memory_load-1MB-four", err: true},
		{name: "bench_memory_load", err: true},
		{name: "rte_memcpy", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMemoryBenchmark(tt.name)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.want.Name = tt.name
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.series, got.SeriesKey())
		})
	}
}

func TestGroupMemorySeries(t *testing.T) {
	records := []model.Record{
		{Function: "bench_memory_load-1MB-4"},
		{Function: "bench_memory_load-1MB-1"},
		{Function: "bench_memory_load-1MB-2"},
		{Function: "bench_memory_load-32KB-1"},
		{Function: "bench_memory_load-32KB-1"},
		{Function: "bench_memory_store-1MB-1"},
		{Function: "bench_memory_store-1MB-8"},
		{Function: "garbage"},
	}

	g, err := GroupMemorySeries(records, "memory")
	require.NoError(t, err)
	require.Len(t, g.Series, 2)
	assert.Equal(t, "load-1MB", g.Series[0].Key)
	assert.Equal(t, 1, g.Series[0].Points[0].Benchmark.InstructionCount)
	assert.Equal(t, 4, g.Series[0].Points[2].Benchmark.InstructionCount)
	assert.Equal(t, []string{"load", "store"}, g.Operations())
	assert.Len(t, g.SeriesFor("store"), 1)

	assert.ErrorIs(t, g.Skipped["load-32KB"], model.ErrInsufficientData)
	assert.Contains(t, g.Skipped, "garbage")
	assert.Equal(t, 5, g.Accepted)
}

func TestGroupMemorySeriesNoGroups(t *testing.T) {
	_, err := GroupMemorySeries([]model.Record{{Function: "bench_memory_load-1MB-1"}}, "memory")
	assert.ErrorIs(t, err, model.ErrNoAnalyzableGroups)
}
