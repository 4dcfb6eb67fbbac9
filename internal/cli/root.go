/*
PURPOSE:
  Defines the root Cobra command for the Perf Modeler CLI.
  Handles global flags and command initialization.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags like --config.

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - The logger can only be configured once the config file is known.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/perf-modeler/main.go
  - Calls: Child commands (analyze, list-groups, config)

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands, Root is usually empty or helps.

USAGE:
  Called by main.go.

SELF-HEALING INSTRUCTIONS:
  - If adding new global flags, add them to init() and loadConfig().

RELATED FILES:
  - cmd/perf-modeler/main.go
*/

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/daryltucker/perf-modeler/internal/config"
	"github.com/daryltucker/perf-modeler/internal/output"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile string

	logLevelOverride  string
	logFormatOverride string
	inputDirOverride  string

	rootCmd = &cobra.Command{
		Use:   "perf-modeler",
		Short: "Latency models from micro-benchmark cycle counts",
		Long: `Turns raw micro-benchmark measurements into latency models:
a per-function base latency with significant-parameter coefficients, and a
per-cache-level latency breakdown from hit/miss counters.
Use 'analyze --help' for the analysis pipelines.`,
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./perf_modeler.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormatOverride, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().StringVarP(&inputDirOverride, "input-dir", "i", "", "directory holding the benchmark result CSVs")
}

// loadConfig loads the config file, applies global flag overrides and
// configures the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevelOverride != "" {
		cfg.Log.Level = logLevelOverride
	}
	if logFormatOverride != "" {
		cfg.Log.Format = logFormatOverride
	}
	if inputDirOverride != "" {
		cfg.Inputs.Dir = inputDirOverride
	}

	runID, err := output.Configure(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	output.Logger.Debug("Configuration loaded", "run_id", runID, "input_dir", cfg.Inputs.Dir, "output_dir", cfg.OutputDir)
	return cfg, nil
}
