package commands

import (
	"github.com/BranchIntl/tubecheck/registry"
	"github.com/spf13/cobra"
)

func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the registered strategy kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range registry.Default.Names() {
				printLine(cmd.OutOrStdout(), "%s", name)
			}
			return nil
		},
	}
}
