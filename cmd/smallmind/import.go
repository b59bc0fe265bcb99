package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smallmind-run/smallmind/model"
)

func newImportGGUFCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-gguf <in.gguf> <out.smq>",
		Short: "Convert a GGUF checkpoint into a native SMQ container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := model.ConvertGGUFToSMQ(args[0], args[1]); err != nil {
				return fmt.Errorf("import-gguf: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[1])
			return nil
		},
	}
}
