package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/daryltucker/perf-modeler/internal/assets"
	"github.com/daryltucker/perf-modeler/internal/config"
	"github.com/daryltucker/perf-modeler/internal/output"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the perf-modeler configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the annotated default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := config.DefaultFiles[0]
		if len(args) == 1 {
			target = args[0]
		}

		if _, err := os.Stat(target); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", target)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to check %s: %w", target, err)
		}

		if err := os.WriteFile(target, assets.SampleConfig, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
		output.Logger.Info("Wrote configuration", "path", target)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
