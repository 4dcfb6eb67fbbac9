/*
PURPOSE:
  Defines the 'analyze' subcommands.
  Runs the function-latency and/or cache-hierarchy pipelines.

REQUIREMENTS:
  User-specified:
  - Run the analyses.
  - Specific flags for overrides.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Run()
  - Uses: internal/config

ERROR HANDLING:
  - Returns error if config load fails or a pipeline fails.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Engine.Run.

USAGE:
  perf-modeler analyze all -i ./results -o ./analysis-results
*/

package cli

import (
	"github.com/spf13/cobra"

	"github.com/daryltucker/perf-modeler/internal/config"
	"github.com/daryltucker/perf-modeler/internal/engine"
)

var (
	outputOverride     string
	allMemoryFiles     bool
	noPolling          bool
	noSeriesBase       bool
	alphaOverride      float64
	disableFDROverride bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Build latency models from benchmark results",
	Long: `Runs the analysis pipelines over benchmark result CSVs.

  functions  api_perf_results_*.csv -> function_latency_map.json, correlations.json
             (plus polling_latency_map.json / polling_correlations.json)
  memory     memory_benchmark_results_*.csv -> memory_latency_analysis.csv,
             memory_latency_analysis_base_latencies.csv
  all        both of the above

Every run also writes batch_report.json with per-group successes, failures
and warnings. Outputs are overwritten.`,
	Example: `  # Run everything with defaults (uses perf_modeler.yaml if present)
  perf-modeler analyze all

  # Function latencies from another directory, stricter alpha, no FDR
  perf-modeler analyze functions -i ./results --alpha 0.01 --no-fdr

  # Cache latencies across every memory result file, without series bases
  perf-modeler analyze memory --all --no-series-base`,
}

func analyzeCommand(use, short string, pipelines ...string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. Load Config
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// 2. Overrides
			applyAnalyzeOverrides(cmd, cfg)

			// 3. Execution
			return engine.Run(cfg, cmd.OutOrStdout(), pipelines...)
		},
	}
}

func applyAnalyzeOverrides(cmd *cobra.Command, cfg *config.Config) {
	if outputOverride != "" {
		cfg.OutputDir = outputOverride
	}
	if allMemoryFiles {
		cfg.Inputs.AllMemoryFiles = true
	}
	if noPolling {
		cfg.Analysis.Polling = false
	}
	if noSeriesBase {
		cfg.Cache.SeriesBase = false
	}
	if cmd.Flags().Changed("alpha") {
		cfg.Analysis.Alpha = alphaOverride
	}
	if disableFDROverride {
		cfg.Analysis.UseFDR = false
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.AddCommand(
		analyzeCommand("functions", "Function latency map and parameter correlations", engine.PipelineFunctions),
		analyzeCommand("memory", "Per-cache-level latencies from hit/miss counters", engine.PipelineMemory),
		analyzeCommand("all", "Run the function and memory pipelines", engine.PipelineFunctions, engine.PipelineMemory),
	)

	analyzeCmd.PersistentFlags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for results (JSON/CSV)")
	analyzeCmd.PersistentFlags().BoolVar(&allMemoryFiles, "all", false, "Analyze every memory result file instead of the latest")
	analyzeCmd.PersistentFlags().BoolVar(&noPolling, "no-polling", false, "Skip the polling-cycle analysis")
	analyzeCmd.PersistentFlags().BoolVar(&noSeriesBase, "no-series-base", false, "Solve cache levels without per-series base latencies")
	analyzeCmd.PersistentFlags().Float64Var(&alphaOverride, "alpha", 0.05, "Significance level")
	analyzeCmd.PersistentFlags().BoolVar(&disableFDROverride, "no-fdr", false, "Use raw p < alpha instead of Benjamini-Hochberg")
}
