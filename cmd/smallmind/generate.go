package main

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/smallmind-run/smallmind/envconfig"
	"github.com/smallmind-run/smallmind/model"
	"github.com/smallmind-run/smallmind/sample"
	"github.com/smallmind-run/smallmind/session"
)

// freshSeed draws a new random seed for a session that didn't request
// a reproducible one (SMALLMIND_RNG_SEED unset and no --seed flag).
func freshSeed() int64 {
	var b [8]byte
	if _, err := cryptorand.Read(b[:]); err != nil {
		return 1
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

func newGenerateCmd() *cobra.Command {
	opts := sample.DefaultOptions()
	var tokenizerPath string

	cmd := &cobra.Command{
		Use:   "generate <model> <prompt>",
		Short: "Generate text from a loaded checkpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], args[1], opts, tokenizerPath)
		},
	}

	cmd.Flags().IntVar(&opts.MaxNewTokens, "max-tokens", opts.MaxNewTokens, "maximum number of new tokens to generate")
	cmd.Flags().Float32Var(&opts.Temperature, "temperature", opts.Temperature, "sampling temperature (0 = greedy)")
	cmd.Flags().Float32Var(&opts.TopP, "top-p", opts.TopP, "nucleus sampling threshold")
	cmd.Flags().IntVar(&opts.TopK, "top-k", opts.TopK, "top-k sampling cutoff (0 disables)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", opts.Seed, "RNG seed (0 derives one from SMALLMIND_RNG_SEED)")
	cmd.Flags().StringVar(&tokenizerPath, "tokenizer", "", "companion GGUF file to read a tokenizer from (required for SMQ models)")

	return cmd
}

func runGenerate(cmd *cobra.Command, modelPath, prompt string, opts sample.Options, tokenizerPath string) error {
	m, vocab, err := model.Load(modelPath)
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}

	if vocab == nil {
		if tokenizerPath == "" {
			return fmt.Errorf("%s carries no embedded vocabulary; pass --tokenizer for an SMQ model", modelPath)
		}
		vocab, err = model.LoadVocabulary(tokenizerPath)
		if err != nil {
			return fmt.Errorf("loading tokenizer: %w", err)
		}
	}

	if opts.Seed == 0 {
		opts.Seed = envconfig.RNGSeed()
	}
	if opts.Seed == -1 {
		opts.Seed = freshSeed()
	}

	sess := session.New(m, vocab, envconfig.ResolvedThreads())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			cancel()
		}
	}()

	text, reason, err := sess.Generate(ctx, prompt, opts, nil)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), text)
	fmt.Fprintln(cmd.ErrOrStderr(), "stop reason:", reason)
	return nil
}
