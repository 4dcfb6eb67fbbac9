package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/perf-modeler/internal/assets"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		forceInit = false
		inputDirOverride, outputOverride = "", ""
		logLevelOverride = ""
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestConfigInit(t *testing.T) {
	testChdir(t, t.TempDir())

	_, err := execute(t, "config", "init", "--log-level", "error")
	require.NoError(t, err)
	data, err := os.ReadFile("perf_modeler.yaml")
	require.NoError(t, err)
	assert.Equal(t, assets.SampleConfig, data)

	_, err = execute(t, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "config", "init", "--force")
	assert.NoError(t, err)

	_, err = execute(t, "config", "init", "custom.yaml")
	require.NoError(t, err)
	assert.FileExists(t, "custom.yaml")
}

func TestAnalyzeMemory(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	csv := "benchmark,iterations,cycles,l1_loads,l1_load_misses\n" +
		"bench_memory_load-4KB-1,10,1090,10,1\n" +
		"bench_memory_load-4KB-2,10,2000,20,1\n" +
		"bench_memory_load-4KB-4,10,6000,40,5\n"
	require.NoError(t, os.WriteFile(filepath.Join(in, "memory_benchmark_results_1.csv"), []byte(csv), 0o644))

	stdout, err := execute(t, "analyze", "memory", "-i", in, "-o", out, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Operation: load")
	assert.FileExists(t, filepath.Join(out, "memory_latency_analysis.csv"))
	assert.FileExists(t, filepath.Join(out, "batch_report.json"))
}

func TestAnalyzeMissingInputs(t *testing.T) {
	_, err := execute(t, "analyze", "functions", "-i", t.TempDir(), "-o", t.TempDir(), "--log-level", "error")
	assert.ErrorContains(t, err, "no input files found")
}

func TestListGroupsCommand(t *testing.T) {
	in := t.TempDir()
	csv := "function,prefix,iterations,total_cycles,metadata\n" +
		"rte_memcpy,dpdk,10,100,\"{'size': 64}\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(in, "api_perf_results_0.csv"), []byte(csv), 0o644))

	stdout, err := execute(t, "list-groups", "-i", in, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, stdout, "rte_memcpy (1 records)")
}

// testChdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func testChdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
