package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallmind-run/smallmind/kernel"
	"github.com/smallmind-run/smallmind/kvcache"
	"github.com/smallmind-run/smallmind/quant"
	"github.com/smallmind-run/smallmind/smerr"
)

func packMatrix(t *testing.T, rows, cols int, fill func(i, j int) float32) *kernel.Packed {
	t.Helper()
	data := make([]float32, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data[i*cols+j] = fill(i, j)
		}
	}
	tensor, err := quant.NewDenseF32("w", []int{rows, cols}, data)
	require.NoError(t, err)
	packed, err := kernel.Pack(tensor)
	require.NoError(t, err)
	return packed
}

// geluAbsoluteModel builds a tiny 1-layer gelu_ffn model with additive
// absolute position embeddings, exercising the gelu_ffn and additive
// position branches of Forward rather than swiglu+RoPE.
func geluAbsoluteModel(t *testing.T) *Model {
	t.Helper()
	const embedDim, numHeads, headDim, vocabSize, mlpHidden, maxContext = 4, 2, 2, 3, 4, 8

	cfg := Config{
		VocabSize: vocabSize, MaxContext: maxContext, EmbedDim: embedDim,
		NumHeads: numHeads, NumKVHeads: numHeads, HeadDim: headDim,
		NumLayers: 1, MLPHidden: mlpHidden, NormEps: 1e-5,
		MLPKind: MLPGeluFFN, PositionEmbed: PositionEmbedAdditiveAbsolute,
	}

	identity := func(i, j int) float32 {
		if i == j {
			return 1
		}
		return 0
	}

	embed := make([]float32, vocabSize*embedDim)
	for i := range embed {
		embed[i] = float32(i) * 0.01
	}
	tokenEmbed, err := quant.NewDenseF32("tok", []int{vocabSize, embedDim}, embed)
	require.NoError(t, err)

	absPos := make([]float32, maxContext*embedDim)

	layer := LayerWeights{
		AttnNorm: []float32{1, 1, 1, 1},
		MLPNorm:  []float32{1, 1, 1, 1},
		Wq:       packMatrix(t, embedDim, embedDim, identity),
		Wk:       packMatrix(t, embedDim, embedDim, identity),
		Wv:       packMatrix(t, embedDim, embedDim, identity),
		Wo:       packMatrix(t, embedDim, embedDim, identity),
		W1:       packMatrix(t, embedDim, mlpHidden, func(i, j int) float32 { return 0.01 }),
		W2:       packMatrix(t, mlpHidden, embedDim, func(i, j int) float32 { return 0.01 }),
	}

	return &Model{
		Config:      cfg,
		TokenEmbed:  tokenEmbed,
		AbsPosEmbed: absPos,
		Layers:      []LayerWeights{layer},
		OutputNorm:  []float32{1, 1, 1, 1},
		Unembed:     packMatrix(t, embedDim, vocabSize, func(i, j int) float32 { return 0.02 }),
	}
}

func TestForwardGeluAdditivePositionDeterministic(t *testing.T) {
	m := geluAbsoluteModel(t)
	cache := kvcache.New(m.Config.NumLayers, m.Config.MaxContext, m.Config.NumKVHeads, m.Config.HeadDim)

	logits1, err := Forward(context.Background(), m, cache, []int{1, 2}, Options{})
	require.NoError(t, err)

	cache2 := kvcache.New(m.Config.NumLayers, m.Config.MaxContext, m.Config.NumKVHeads, m.Config.HeadDim)
	logits2, err := Forward(context.Background(), m, cache2, []int{1, 2}, Options{})
	require.NoError(t, err)

	require.Equal(t, logits1, logits2)
	require.Len(t, logits1, 2*m.Config.VocabSize)
}

func TestForwardOnlyLastRow(t *testing.T) {
	m := geluAbsoluteModel(t)
	cache := kvcache.New(m.Config.NumLayers, m.Config.MaxContext, m.Config.NumKVHeads, m.Config.HeadDim)

	logits, err := Forward(context.Background(), m, cache, []int{1, 2}, Options{OnlyLastRow: true})
	require.NoError(t, err)
	require.Len(t, logits, m.Config.VocabSize)
}

func TestForwardRejectsContextOverflow(t *testing.T) {
	m := geluAbsoluteModel(t)
	cache := kvcache.New(m.Config.NumLayers, m.Config.MaxContext, m.Config.NumKVHeads, m.Config.HeadDim)

	_, err := Forward(context.Background(), m, cache, make([]int, m.Config.MaxContext+1), Options{})
	require.Error(t, err)
}

func TestForwardRespectsCancellation(t *testing.T) {
	m := geluAbsoluteModel(t)
	cache := kvcache.New(m.Config.NumLayers, m.Config.MaxContext, m.Config.NumKVHeads, m.Config.HeadDim)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Forward(ctx, m, cache, []int{1}, Options{})
	require.ErrorIs(t, err, smerr.ErrCancelled)
}
