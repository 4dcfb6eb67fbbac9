/*
PURPOSE:
  Defines the 'list-groups' subcommand.
  Shows how records are grouped before any fitting.

REQUIREMENTS:
  Implementation-discovered:
  - Useful validation step before a full analysis: which functions, cases and
    memory series survive normalization.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.ListGroups()

USAGE:
  perf-modeler list-groups -i ./results
*/

package cli

import (
	"github.com/spf13/cobra"

	"github.com/daryltucker/perf-modeler/internal/engine"
)

var listGroupsCmd = &cobra.Command{
	Use:   "list-groups",
	Short: "List function groups, cases and memory series found in the inputs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return engine.ListGroups(cfg, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(listGroupsCmd)
}
