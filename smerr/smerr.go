// Package smerr defines the sentinel error kinds shared across the
// loader, kernel, engine, and session packages so callers can
// distinguish failure classes with errors.Is regardless of which
// layer raised them.
package smerr

import "errors"

var (
	// ErrInvalidModel covers malformed headers, bad magic/version, and
	// failed tensor-store invariants (non-finite scales, wrong byte counts).
	ErrInvalidModel = errors.New("smallmind: invalid model")

	// ErrUnsupportedArchitecture covers an unknown mlp_kind, head layout,
	// or architecture name declared in model metadata.
	ErrUnsupportedArchitecture = errors.New("smallmind: unsupported architecture")

	// ErrUnsupportedConversion covers GGUF k-quant formats the loader
	// cannot re-quantize into a supported tag.
	ErrUnsupportedConversion = errors.New("smallmind: unsupported conversion")

	// ErrIntegrity covers SHA-256 or manifest/tensor mismatches in SMQ files.
	ErrIntegrity = errors.New("smallmind: integrity check failed")

	// ErrShapeMismatch covers GEMM operand shape mismatches and
	// declared-config vs. tensor-shape mismatches at load time.
	ErrShapeMismatch = errors.New("smallmind: shape mismatch")

	// ErrUnsupportedKernel covers missing (activation-dtype, weight-tag) kernels.
	ErrUnsupportedKernel = errors.New("smallmind: unsupported kernel")

	// ErrContextOverflow covers startPos+T exceeding max_context.
	ErrContextOverflow = errors.New("smallmind: context overflow")

	// ErrModelNotLoaded covers session use before a model is attached.
	ErrModelNotLoaded = errors.New("smallmind: model not loaded")

	// ErrCancelled covers an explicit cancellation of generate_streaming.
	ErrCancelled = errors.New("smallmind: cancelled")

	// ErrTimeout covers the engine-wide per-request timeout firing.
	ErrTimeout = errors.New("smallmind: timeout")

	// ErrInternalKernel covers NaN/Inf appearing in logits, an
	// unrecoverable numerical failure.
	ErrInternalKernel = errors.New("smallmind: internal kernel error")

	// ErrValidation covers path/input guard failures (e.g. registry
	// manifest path traversal).
	ErrValidation = errors.New("smallmind: validation error")

	// ErrInvalidPattern covers a constraint regex that fails to compile.
	ErrInvalidPattern = errors.New("smallmind: invalid constraint pattern")
)
