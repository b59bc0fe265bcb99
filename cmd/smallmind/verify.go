package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smallmind-run/smallmind/fs/smq"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <model.smq>",
		Short: "Check an SMQ container's directory and data-blob integrity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := smq.Open(args[0])
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}
			defer f.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d tensors, sha256 %s)\n",
				args[0], f.Manifest.TensorCount, f.Manifest.SHA256Blob)
			return nil
		},
	}
}
