package ingest

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/perf-modeler/internal/model"
)

const functionCSV = `function,prefix,iterations,total_cycles,metadata
empty,dpdk,1000,5000,{}
rte_eth_rx_burst,dpdk,1000,45000,"{'total_packets_received': 320, 'burst_size': 32, 'mode': 'poll'}"
rte_memcpy,dpdk,bad,100,{}
rte_memcpy,dpdk,2000,90000,not-a-map
`

const memoryCSV = `benchmark,iterations,cycles,l1_loads,l1_load_misses,l2_accesses,l2_hits,l3_accesses
bench_memory_load-4KB-2,100,2500,200,20,20,N/A,
bench_memory_load-4KB-4,100,5200,400,40,40,30,10
`

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestParseMetadata(t *testing.T) {
	params, err := ParseMetadata(`{'burst_size': 32, 'mode': 'poll', 'nested': {'a': 1}, 'enabled': true}`)
	require.NoError(t, err)

	v, ok := params["burst_size"].Float()
	assert.True(t, ok)
	assert.Equal(t, 32.0, v)
	assert.True(t, params["mode"].IsText())
	assert.Equal(t, "poll", params["mode"].Text())
	assert.NotContains(t, params, "nested")
	enabled, _ := params["enabled"].Float()
	assert.Equal(t, 1.0, enabled)

	params, err = ParseMetadata("{}")
	require.NoError(t, err)
	assert.Empty(t, params)

	params, err = ParseMetadata("garbage")
	assert.Error(t, err)
	assert.Empty(t, params)
}

func TestConditionFromFile(t *testing.T) {
	assert.Equal(t, "4q", ConditionFromFile("/data/api_perf_results_4q.csv"))
	assert.Equal(t, "0", ConditionFromFile("api_perf_results_0.csv.zst"))
}

func TestLoadFunctionCSV(t *testing.T) {
	path := writeFile(t, t.TempDir(), "api_perf_results_2q.csv", []byte(functionCSV))

	recs, err := LoadFunctionCSV(path)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	rx := recs[1]
	assert.Equal(t, "rte_eth_rx_burst", rx.Function)
	assert.Equal(t, "2q", rx.Condition)
	assert.Equal(t, "dpdk", rx.Prefix)
	assert.Equal(t, int64(1000), rx.Iterations)
	assert.Equal(t, 45000.0, rx.TotalCycles)
	pkts, ok := rx.Param("total_packets_received")
	assert.True(t, ok)
	assert.Equal(t, 320.0, pkts)

	assert.Equal(t, "rte_memcpy", recs[2].Function)
	assert.Empty(t, recs[2].Parameters)
}

func TestLoadFunctionCSVMissingColumn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "api_perf_results_x.csv", []byte("function,prefix\nfoo,bar\n"))
	_, err := LoadFunctionCSV(path)
	assert.ErrorContains(t, err, "iterations")
}

func TestLoadMemoryCSV(t *testing.T) {
	path := writeFile(t, t.TempDir(), "memory_benchmark_results_1.csv", []byte(memoryCSV))

	recs, err := LoadMemoryCSV(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "bench_memory_load-4KB-2", first.Function)
	assert.Equal(t, int64(100), first.Iterations)
	assert.Equal(t, 2500.0, first.TotalCycles)
	assert.Equal(t, []string{"l1_load_misses", "l1_loads", "l2_accesses"}, first.Parameters.Keys())
	assert.Len(t, recs[1].Parameters, 5)
}

func TestLoadSkipsNonFiniteAndNegativeCycles(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		load func(string) ([]model.Record, error)
		file string
		data string
		want []string
	}{
		{
			name: "function total_cycles",
			load: LoadFunctionCSV,
			file: "api_perf_results_0.csv",
			data: "function,prefix,iterations,total_cycles,metadata\n" +
				"good,p,100,500,{}\n" +
				"nan,p,100,NaN,{}\n" +
				"inf,p,100,+Inf,{}\n" +
				"neg,p,100,-5,{}\n" +
				"nan_iters,p,NaN,500,{}\n",
			want: []string{"good"},
		},
		{
			name: "memory cycles and counters",
			load: LoadMemoryCSV,
			file: "memory_benchmark_results_1.csv",
			data: "benchmark,iterations,cycles,l1_loads\n" +
				"bench_memory_load-4KB-1,10,100,10\n" +
				"bench_memory_load-4KB-2,10,NaN,20\n" +
				"bench_memory_load-4KB-4,10,-Inf,40\n" +
				"bench_memory_load-4KB-8,10,-1,80\n" +
				"bench_memory_load-4KB-16,10,1600,Inf\n",
			want: []string{"bench_memory_load-4KB-1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := tt.load(writeFile(t, dir, tt.file, []byte(tt.data)))
			require.NoError(t, err)
			var got []string
			for _, r := range recs {
				got = append(got, r.Function)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func compressed(t *testing.T, ext string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch ext {
	case ".gz":
		w = gzip.NewWriter(&buf)
	case ".zst":
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	case ".lz4":
		w = lz4.NewWriter(&buf)
	}
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestOpenCompressed(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range CompressedExtensions {
		t.Run(ext, func(t *testing.T) {
			path := writeFile(t, dir, "memory_benchmark_results_1.csv"+ext, compressed(t, ext, []byte(memoryCSV)))
			recs, err := LoadMemoryCSV(path)
			require.NoError(t, err)
			assert.Len(t, recs, 2)
		})
	}
}

func TestFindAndLatest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "memory_benchmark_results_20240101.csv", []byte(memoryCSV))
	writeFile(t, dir, "memory_benchmark_results_20240301.csv.gz", compressed(t, ".gz", []byte(memoryCSV)))
	writeFile(t, dir, "other.csv", []byte("x"))

	paths, err := Find(dir, "memory_benchmark_results_*.csv")
	require.NoError(t, err)
	require.Len(t, paths, 2)

	latest := Latest(paths)
	require.Len(t, latest, 1)
	assert.Equal(t, "memory_benchmark_results_20240301.csv.gz", filepath.Base(latest[0]))
	assert.Nil(t, Latest(nil))
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", []byte("1"))
	b := writeFile(t, dir, "b.csv", []byte("2"))

	f1, err := Fingerprint([]string{a, b})
	require.NoError(t, err)
	f2, err := Fingerprint([]string{b, a})
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
	assert.Len(t, f1, 16)

	writeFile(t, dir, "b.csv", []byte("3"))
	f3, err := Fingerprint([]string{a, b})
	require.NoError(t, err)
	assert.NotEqual(t, f1, f3)
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	p1 := writeFile(t, dir, "api_perf_results_a.csv", []byte(functionCSV))
	p2 := writeFile(t, dir, "api_perf_results_b.csv", []byte(functionCSV))

	recs, err := LoadAll([]string{p1, p2}, LoadFunctionCSV)
	require.NoError(t, err)
	require.Len(t, recs, 6)
	assert.Equal(t, "a", recs[0].Condition)
	assert.Equal(t, "b", recs[5].Condition)

	_, err = LoadAll([]string{filepath.Join(dir, "missing.csv")}, LoadFunctionCSV)
	assert.Error(t, err)
}
