package engine

import (
	"github.com/smallmind-run/smallmind/kernel"
	"github.com/smallmind-run/smallmind/quant"
)

// LayerWeights is one decoder layer's weights, packed once at load
// time. It is a flat data record, not a type with behavior: the
// forward pass is the free function forwardLayer, so adding a layer
// kind never requires adding a method.
type LayerWeights struct {
	AttnNorm []float32 // gamma, len EmbedDim
	MLPNorm  []float32 // gamma, len EmbedDim

	Wq, Wk, Wv, Wo *kernel.Packed

	// gelu_ffn
	W1, W2 *kernel.Packed
	// swiglu
	WGate, WUp, WDown *kernel.Packed
}

// Model is the full set of weights for one loaded checkpoint, shared
// read-only across every session built on top of it.
type Model struct {
	Config Config

	TokenEmbed quant.Tensor // [vocab_size, embed_dim]

	// AbsPosEmbed is non-nil only when Config.PositionEmbed is
	// PositionEmbedAdditiveAbsolute: [max_context, embed_dim].
	AbsPosEmbed []float32

	Layers []LayerWeights

	OutputNorm []float32
	Unembed    *kernel.Packed // [embed_dim, vocab_size]

	RoPE *kernel.RoPETable // nil unless Config.PositionEmbed is RoPE
}
