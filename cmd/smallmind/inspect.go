package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smallmind-run/smallmind/fs/smq"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <model.smq>",
		Short: "Print an SMQ container's manifest and tensor directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := smq.Open(args[0])
			if err != nil {
				return fmt.Errorf("inspect: %w", err)
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			dims := f.Manifest.ModelDims
			fmt.Fprintf(out, "model_name:     %s\n", f.Manifest.ModelName)
			fmt.Fprintf(out, "created_utc:    %s\n", f.Manifest.CreatedUTC)
			fmt.Fprintf(out, "quant_schemes:  %v\n", f.Manifest.QuantSchemes)
			fmt.Fprintf(out, "num_layers:     %d\n", dims.NumLayers)
			fmt.Fprintf(out, "hidden_dim:     %d\n", dims.HiddenDim)
			fmt.Fprintf(out, "vocab_size:     %d\n", dims.VocabSize)
			fmt.Fprintf(out, "context_length: %d\n", dims.ContextLength)
			fmt.Fprintf(out, "mlp_kind:       %s\n", dims.MLPKind)
			fmt.Fprintf(out, "position_embed: %s\n", dims.PositionEmbed)
			fmt.Fprintf(out, "tensor_count:   %d\n", f.Manifest.TensorCount)

			for _, e := range f.Directory {
				fmt.Fprintf(out, "  %-32s %-6s shape=%v block=%d bytes=%d\n", e.Name, e.Dtype, e.Shape, e.BlockSize, e.DataBytes)
			}

			return nil
		},
	}
}
