/*
PURPOSE:
  Defines the configuration structure and loading logic for Perf Modeler.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Configure input discovery, output files, statistical thresholds and
    cache solver options.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Needs to support Environment variables overrides (PERF_MODELER_...).

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine
  - Dependencies: gopkg.in/yaml.v3 (standard for Go config)

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - A missing default config file is not an error; defaults are used.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults reproduce the reference analysis (alpha 0.05, FDR on, 3 distinct values).

USAGE:
  cfg, err := config.Load("perf_modeler.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct, DefaultConfig() and the
    sample in internal/assets.

RELATED FILES:
  - internal/cli/root.go
  - internal/assets/perf_modeler.yaml

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/daryltucker/perf-modeler/internal/diagnostics"
	"github.com/daryltucker/perf-modeler/internal/normalize"
	"github.com/daryltucker/perf-modeler/internal/output"
)

// DefaultFiles are searched, in order, when no --config is given.
var DefaultFiles = []string{"perf_modeler.yaml", "perf-modeler.yaml", ".perf_modeler.yaml"}

// Environment overrides.
const (
	EnvOutputDir = "PERF_MODELER_OUTPUT_DIR"
	EnvLogLevel  = "PERF_MODELER_LOG_LEVEL"
)

// Config represents the full configuration for Perf Modeler.
type Config struct {
	Inputs    Inputs   `yaml:"inputs"`
	OutputDir string   `yaml:"output_dir"`
	Outputs   Outputs  `yaml:"outputs"`
	Analysis  Analysis `yaml:"analysis"`
	Cache     Cache    `yaml:"cache"`
	Log       Log      `yaml:"log"`
}

// Inputs locates the benchmark result files.
type Inputs struct {
	Dir             string `yaml:"dir"`
	FunctionPattern string `yaml:"function_pattern"`
	MemoryPattern   string `yaml:"memory_pattern"`
	// AllMemoryFiles analyzes every memory result file instead of the latest one.
	AllMemoryFiles bool `yaml:"all_memory_files"`
}

// Outputs names the artifacts written under OutputDir.
type Outputs struct {
	FunctionLatencyMap  string `yaml:"function_latency_map"`
	Correlations        string `yaml:"correlations"`
	PollingLatencyMap   string `yaml:"polling_latency_map"`
	PollingCorrelations string `yaml:"polling_correlations"`
	CacheLatencies      string `yaml:"cache_latencies"`
	BaseLatencies       string `yaml:"base_latencies"`
	BatchReport         string `yaml:"batch_report"`
}

// Analysis tunes the function-latency path.
type Analysis struct {
	Alpha              float64            `yaml:"alpha"`
	MinUniqueValues    int                `yaml:"min_unique_values"`
	UseFDR             bool               `yaml:"use_fdr"`
	BaselineFunction   string             `yaml:"baseline_function"`
	OperationCountKeys []string           `yaml:"operation_count_keys"`
	ExcludeParams      []string           `yaml:"exclude_params"`
	Polling            bool               `yaml:"polling"`
	PollingKey         string             `yaml:"polling_key"`
	Filters            []normalize.Filter `yaml:"filters"`
}

// Cache tunes the cache-hierarchy path.
type Cache struct {
	// DefaultIterations applies to rows without an iterations column.
	DefaultIterations int64                  `yaml:"default_iterations"`
	SeriesBase        bool                   `yaml:"series_base"`
	Thresholds        diagnostics.Thresholds `yaml:"thresholds"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Inputs: Inputs{
			Dir:             ".",
			FunctionPattern: "api_perf_results_*.csv",
			MemoryPattern:   "memory_benchmark_results_*.csv",
		},
		OutputDir: "analysis-results",
		Outputs: Outputs{
			FunctionLatencyMap:  "function_latency_map.json",
			Correlations:        "correlations.json",
			PollingLatencyMap:   "polling_latency_map.json",
			PollingCorrelations: "polling_correlations.json",
			CacheLatencies:      "memory_latency_analysis.csv",
			BaseLatencies:       "memory_latency_analysis_base_latencies.csv",
			BatchReport:         "batch_report.json",
		},
		Analysis: Analysis{
			Alpha:              0.05,
			MinUniqueValues:    3,
			UseFDR:             true,
			BaselineFunction:   "empty",
			OperationCountKeys: []string{"total_packets_received", "total_packets_sent"},
			ExcludeParams:      []string{"total_poll_cycles"},
			Polling:            true,
			PollingKey:         "total_poll_cycles",
			Filters: []normalize.Filter{
				{Function: "rte_eth_rx_burst", RequirePositive: "total_packets_received", ExemptConditions: []string{"0"}},
			},
		},
		Cache: Cache{
			DefaultIterations: 100000000,
			SeriesBase:        true,
			Thresholds:        diagnostics.DefaultThresholds(),
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches DefaultFiles in order.
// If no file found, returns default config.
// Environment overrides are applied and the result validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		for _, name := range DefaultFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				break
			}
		}
	}

	if data != nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv applies PERF_MODELER_* overrides.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvOutputDir)); v != "" {
		c.OutputDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	var errs []error
	if c.Analysis.Alpha <= 0 || c.Analysis.Alpha >= 1 {
		errs = append(errs, fmt.Errorf("analysis.alpha must be in (0,1), got %v", c.Analysis.Alpha))
	}
	if c.Analysis.MinUniqueValues < 2 {
		errs = append(errs, fmt.Errorf("analysis.min_unique_values must be >= 2, got %d", c.Analysis.MinUniqueValues))
	}
	if c.Analysis.Polling && c.Analysis.PollingKey == "" {
		errs = append(errs, errors.New("analysis.polling_key is required when polling is enabled"))
	}
	if c.Cache.DefaultIterations <= 0 {
		errs = append(errs, fmt.Errorf("cache.default_iterations must be > 0, got %d", c.Cache.DefaultIterations))
	}
	if c.Cache.Thresholds.MaxCacheLatency <= 0 || c.Cache.Thresholds.MaxMemoryLatency <= 0 {
		errs = append(errs, errors.New("cache.thresholds must be > 0"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if c.Inputs.FunctionPattern == "" || c.Inputs.MemoryPattern == "" {
		errs = append(errs, errors.New("inputs.function_pattern and inputs.memory_pattern are required"))
	}
	if _, err := output.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
