// Package kernel implements the SIMD-dispatched compute primitives:
// fused dequant+GEMM (C3) and RMSNorm/softmax/RoPE/activation/
// elementwise reductions (C4), behind a process-wide dispatch table
// (C2) filled once at startup from detected CPU capability.
package kernel

import (
	"log/slog"
	"sync"

	"github.com/klauspost/cpuid/v2"

	"github.com/smallmind-run/smallmind/workerpool"
)

// ISA names the detected instruction-set tier a dispatch table was
// built for. Reported in diagnostics; never branched on after init.
type ISA string

const (
	ISAAVX512 ISA = "avx512"
	ISAAVX2   ISA = "avx2+fma"
	ISANEON   ISA = "neon"
	ISAScalar ISA = "scalar"
)

// Table is the process-wide set of function references selected at
// startup, one per kernel family: matmul-per-quant-tag (GEMM), rmsnorm,
// softmax, activations (GELU/SiLU), and elementwise (Add/Mul/Scale).
// Every kernel call in engine goes through the single package-level
// instance returned by Default; operations never re-check CPU
// capability on the hot path.
type Table struct {
	ISA   ISA
	Label string

	GEMM    func(c, a []float32, b *Packed, m int, pool *workerpool.Pool)
	RMSNorm func(y, x, gamma []float32, eps float32)
	Softmax func(x []float32)
	GELU    func(x []float32)
	SiLU    func(x []float32)
	Add     func(dst, src []float32)
	Mul     func(dst, src []float32)
	Scale   func(x []float32, s float32)
}

var (
	once    sync.Once
	current *Table
)

// Default returns the process-wide dispatch table, building it on
// first call from the CPU capability klauspost/cpuid/v2 detects.
func Default() *Table {
	once.Do(func() {
		current = build()
		slog.Info("kernel dispatch initialized", "isa", current.ISA, "label", current.Label)
	})
	return current
}

// portableKernels fills every family with this build's only
// implementation of each: a dequantize-once GEMM and the scalar/vecf32
// primitives in primitives.go. No ISA tier below has a vectorized
// variant of its own yet, so every tier currently resolves to the same
// functions; the table still names one routine per family per tier, so
// a tier that does grow a hand-tuned kernel for one family only needs
// to change that tier's entry.
func portableKernels(t *Table) *Table {
	t.GEMM = gemmGeneric
	t.RMSNorm = RMSNorm
	t.Softmax = Softmax
	t.GELU = GELU
	t.SiLU = SiLU
	t.Add = Add
	t.Mul = Mul
	t.Scale = Scale
	return t
}

func build() *Table {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		return portableKernels(&Table{ISA: ISAAVX512, Label: "avx512f fused dequant-gemm"})
	case cpuid.CPU.Supports(cpuid.AVX2) && cpuid.CPU.Supports(cpuid.FMA3):
		return portableKernels(&Table{ISA: ISAAVX2, Label: "avx2+fma3 fused dequant-gemm"})
	case cpuid.CPU.Supports(cpuid.ASIMD):
		return portableKernels(&Table{ISA: ISANEON, Label: "neon fused dequant-gemm"})
	default:
		return portableKernels(&Table{ISA: ISAScalar, Label: "scalar fallback"})
	}
}

// resetForTest rebuilds the dispatch table; used only by package tests
// that need to exercise build() deterministically.
func resetForTest() {
	once = sync.Once{}
}
