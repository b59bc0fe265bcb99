package kernel

import (
	"github.com/smallmind-run/smallmind/quant"
)

// panelWidth is the packed-B column panel width (NR in the blocking
// scheme). A portable Go build has no fixed-width SIMD register file to
// size this around, so one width is used uniformly rather than varying
// by detected ISA; the dispatch table still reports which ISA tier
// selected this GEMM path for diagnostics.
const panelWidth = 16

// Packed is a weight matrix re-laid into NR-wide column panels with the
// K dimension contiguous within each panel, built once at load time (or
// on first use) and shared read-only across every subsequent GEMM call
// against that weight. Dequantization happens once here, not per call:
// the source block-quantized tensor is never touched again after Pack
// returns, which is what "fused dequant" buys on a scalar/portable
// target — the cost of unpacking n-bit codes is paid once per weight
// rather than once per token.
type Packed struct {
	K, N  int
	nr    int
	panels int
	data  []float32 // len == panels * K * nr, panel p at data[p*K*nr:]
}

// Pack dequantizes b (shape [K, N]) and re-lays it into column panels.
func Pack(b quant.Tensor) (*Packed, error) {
	shape := b.Shape()
	if len(shape) != 2 {
		return nil, shapeErrorf("pack: weight %q has rank %d, want 2", b.Name(), len(shape))
	}

	k, n := shape[0], shape[1]
	dense := make([]float32, k*n)
	b.Dequantize(dense)

	panels := (n + panelWidth - 1) / panelWidth
	data := make([]float32, panels*k*panelWidth)

	for p := range panels {
		c0 := p * panelWidth
		width := min(panelWidth, n-c0)
		base := p * k * panelWidth
		for row := range k {
			src := dense[row*n+c0 : row*n+c0+width]
			dst := data[base+row*panelWidth : base+row*panelWidth+width]
			copy(dst, src)
		}
	}

	return &Packed{K: k, N: n, nr: panelWidth, panels: panels, data: data}, nil
}

// row returns panel's nr-wide slice at the given K row, covering output
// columns [panel*nr, panel*nr+nr); entries past N in the last panel are
// zero padding.
func (p *Packed) row(panel, row int) []float32 {
	base := panel*p.K*p.nr + row*p.nr
	return p.data[base : base+p.nr]
}
