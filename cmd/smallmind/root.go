package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the CLI's command tree, mirroring the teacher's
// own cobra.EnableCommandSorting-disabled, SilenceUsage/SilenceErrors
// root-command shape.
func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false

	root := &cobra.Command{
		Use:           "smallmind",
		Short:         "CPU-only inference runtime for decoder-only transformer checkpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newGenerateCmd(),
		newImportGGUFCmd(),
		newVerifyCmd(),
		newInspectCmd(),
	)

	return root
}
