package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/smallmind-run/smallmind/kernel"
	"github.com/smallmind-run/smallmind/kvcache"
	"github.com/smallmind-run/smallmind/smerr"
	"github.com/smallmind-run/smallmind/workerpool"
)

// Options controls one Forward call.
type Options struct {
	StartPos    int
	Pool        *workerpool.Pool // nil runs every kernel call serially
	OnlyLastRow bool             // decode steps only need the final row's logits
}

// Forward runs the pre-norm decoder stack over tokenIDs, writing K/V
// into cache at positions [opts.StartPos, opts.StartPos+T) for every
// layer, and returns logits: [T, VocabSize] normally, or [1,
// VocabSize] when opts.OnlyLastRow is set (the decode-step shortcut —
// only the last row's logits are sampled from). ctx is checked between
// layers — a coarse-grained cancellation point, not a mid-kernel one.
func Forward(ctx context.Context, m *Model, cache *kvcache.Cache, tokenIDs []int, opts Options) ([]float32, error) {
	cfg := m.Config
	t := len(tokenIDs)
	table := kernel.Default()

	if opts.StartPos+t > cfg.MaxContext {
		return nil, contextOverflowf("start %d + %d tokens exceeds max_context %d", opts.StartPos, t, cfg.MaxContext)
	}

	switch cfg.PositionEmbed {
	case PositionEmbedRoPE, PositionEmbedAdditiveAbsolute:
	default:
		return nil, unsupportedArchf("position_embed %q", cfg.PositionEmbed)
	}

	x := make([]float32, t*cfg.EmbedDim)
	for i, id := range tokenIDs {
		m.TokenEmbed.DequantizeRow(id, x[i*cfg.EmbedDim:(i+1)*cfg.EmbedDim])
	}

	if cfg.PositionEmbed == PositionEmbedAdditiveAbsolute {
		if m.AbsPosEmbed == nil {
			return nil, unsupportedArchf("model declares additive absolute position embedding but loader did not build one")
		}
		for i := range t {
			pos := opts.StartPos + i
			posRow := m.AbsPosEmbed[pos*cfg.EmbedDim : (pos+1)*cfg.EmbedDim]
			table.Add(x[i*cfg.EmbedDim:(i+1)*cfg.EmbedDim], posRow)
		}
	}

	for layer := range cfg.NumLayers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", smerr.ErrCancelled, err)
		}
		if err := forwardLayer(&m.Layers[layer], x, t, cfg, cache, layer, opts, m.RoPE, table); err != nil {
			return nil, err
		}
	}

	normed := make([]float32, t*cfg.EmbedDim)
	for i := range t {
		table.RMSNorm(normed[i*cfg.EmbedDim:(i+1)*cfg.EmbedDim], x[i*cfg.EmbedDim:(i+1)*cfg.EmbedDim], m.OutputNorm, cfg.NormEps)
	}

	rowsIn := normed
	rows := t
	if opts.OnlyLastRow {
		rowsIn = normed[(t-1)*cfg.EmbedDim:]
		rows = 1
	}

	logits := make([]float32, rows*cfg.VocabSize)
	table.GEMM(logits, rowsIn, m.Unembed, rows, opts.Pool)

	for _, v := range logits {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, internalKernelf("non-finite value in logits")
		}
	}

	return logits, nil
}

// forwardLayer runs one pre-norm decoder block in place on x:
// RMSNorm → Q/K/V projections → RoPE → KV-cache append → fused causal
// attention → output projection → residual → RMSNorm → MLP →
// residual. It is a free function rather than a method on a type
// hierarchy: every layer is driven the same way regardless of
// mlp_kind, so there is nothing for virtual dispatch to buy here.
func forwardLayer(w *LayerWeights, x []float32, t int, cfg Config, cache *kvcache.Cache, layer int, opts Options, rope *kernel.RoPETable, table *kernel.Table) error {
	d := cfg.EmbedDim

	h1 := make([]float32, t*d)
	for i := range t {
		table.RMSNorm(h1[i*d:(i+1)*d], x[i*d:(i+1)*d], w.AttnNorm, cfg.NormEps)
	}

	qDim := cfg.NumHeads * cfg.HeadDim
	kvDim := cfg.NumKVHeads * cfg.HeadDim

	q := make([]float32, t*qDim)
	k := make([]float32, t*kvDim)
	v := make([]float32, t*kvDim)
	table.GEMM(q, h1, w.Wq, t, opts.Pool)
	table.GEMM(k, h1, w.Wk, t, opts.Pool)
	table.GEMM(v, h1, w.Wv, t, opts.Pool)

	if cfg.PositionEmbed == PositionEmbedRoPE {
		for i := range t {
			pos := opts.StartPos + i
			for hh := range cfg.NumHeads {
				rope.Apply(q[i*qDim+hh*cfg.HeadDim:i*qDim+(hh+1)*cfg.HeadDim], pos)
			}
			for hh := range cfg.NumKVHeads {
				rope.Apply(k[i*kvDim+hh*cfg.HeadDim:i*kvDim+(hh+1)*cfg.HeadDim], pos)
			}
		}
	}

	if err := cache.Append(layer, opts.StartPos, k, v); err != nil {
		return err
	}

	l := opts.StartPos + t
	kView, vView, err := cache.View(layer, l)
	if err != nil {
		return err
	}

	attnOut := make([]float32, t*qDim)
	if err := flashAttention(q, t, kView, vView, l, cfg.NumHeads, cfg.NumKVHeads, cfg.HeadDim, opts.StartPos, attnOut, opts.Pool); err != nil {
		return err
	}

	o := make([]float32, t*d)
	table.GEMM(o, attnOut, w.Wo, t, opts.Pool)
	table.Add(x, o)

	h2 := make([]float32, t*d)
	for i := range t {
		table.RMSNorm(h2[i*d:(i+1)*d], x[i*d:(i+1)*d], w.MLPNorm, cfg.NormEps)
	}

	mlpOut := make([]float32, t*d)
	switch cfg.MLPKind {
	case MLPGeluFFN:
		hidden := make([]float32, t*cfg.MLPHidden)
		table.GEMM(hidden, h2, w.W1, t, opts.Pool)
		table.GELU(hidden)
		table.GEMM(mlpOut, hidden, w.W2, t, opts.Pool)
	case MLPSwiGLU:
		gate := make([]float32, t*cfg.MLPHidden)
		up := make([]float32, t*cfg.MLPHidden)
		table.GEMM(gate, h2, w.WGate, t, opts.Pool)
		table.GEMM(up, h2, w.WUp, t, opts.Pool)
		table.SiLU(gate)
		table.Mul(gate, up)
		table.GEMM(mlpOut, gate, w.WDown, t, opts.Pool)
	default:
		return unsupportedArchf("mlp_kind %q", cfg.MLPKind)
	}

	table.Add(x, mlpOut)
	return nil
}
