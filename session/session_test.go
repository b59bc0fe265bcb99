package session

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallmind-run/smallmind/engine"
	"github.com/smallmind-run/smallmind/kernel"
	"github.com/smallmind-run/smallmind/quant"
	"github.com/smallmind-run/smallmind/sample"
	"github.com/smallmind-run/smallmind/smerr"
	"github.com/smallmind-run/smallmind/tokenizer"
)

func packIdentity(t *testing.T, n int) *kernel.Packed {
	t.Helper()
	data := make([]float32, n*n)
	for i := 0; i < n; i++ {
		data[i*n+i] = 1
	}
	tensor, err := quant.NewDenseF32("w", []int{n, n}, data)
	require.NoError(t, err)
	packed, err := kernel.Pack(tensor)
	require.NoError(t, err)
	return packed
}

// zeroedOutputModel builds a tiny model whose final OutputNorm gamma
// is all zero, which forces every logits vector to be the zero vector
// regardless of the prompt or sampled history — making argmax (and
// therefore greedy decoding) land on token 0 every step, the simplest
// way to get a fully deterministic decode loop to drive the session
// tests without depending on the forward pass's numeric details.
func zeroedOutputModel(t *testing.T) *engine.Model {
	t.Helper()
	const embedDim, numHeads, headDim, vocabSize, mlpHidden, maxContext = 4, 2, 2, 4, 4, 16

	cfg := engine.Config{
		VocabSize: vocabSize, MaxContext: maxContext, EmbedDim: embedDim,
		NumHeads: numHeads, NumKVHeads: numHeads, HeadDim: headDim,
		NumLayers: 1, MLPHidden: mlpHidden, NormEps: 1e-5,
		MLPKind: engine.MLPGeluFFN, PositionEmbed: engine.PositionEmbedAdditiveAbsolute,
	}

	embed := make([]float32, vocabSize*embedDim)
	for i := range embed {
		embed[i] = float32(i) * 0.01
	}
	tokenEmbed, err := quant.NewDenseF32("tok", []int{vocabSize, embedDim}, embed)
	require.NoError(t, err)

	layer := engine.LayerWeights{
		AttnNorm: []float32{1, 1, 1, 1},
		MLPNorm:  []float32{1, 1, 1, 1},
		Wq:       packIdentity(t, embedDim),
		Wk:       packIdentity(t, embedDim),
		Wv:       packIdentity(t, embedDim),
		Wo:       packIdentity(t, embedDim),
		W1:       packIdentity(t, embedDim),
		W2:       packIdentity(t, embedDim),
	}

	return &engine.Model{
		Config:      cfg,
		TokenEmbed:  tokenEmbed,
		AbsPosEmbed: make([]float32, maxContext*embedDim),
		Layers:      []engine.LayerWeights{layer},
		OutputNorm:  []float32{0, 0, 0, 0},
		Unembed:     packIdentity(t, embedDim), // vocabSize == embedDim here
	}
}

func wordVocab(t *testing.T) *tokenizer.Vocabulary {
	t.Helper()
	v, err := tokenizer.New(tokenizer.Config{
		Tokens: []string{"<unk>", "a", "b", "c"},
	})
	require.NoError(t, err)
	return v
}

func TestGenerateStopsAtMaxTokens(t *testing.T) {
	m := zeroedOutputModel(t)
	vocab := wordVocab(t)
	sess := New(m, vocab, 1)

	opts := sample.DefaultOptions()
	opts.MaxNewTokens = 3

	text, reason, err := sess.Generate(context.Background(), "a", opts, nil)
	require.NoError(t, err)
	require.Equal(t, DoneReasonMaxTokens, reason)
	require.Equal(t, "<unk><unk><unk>", text)
}

func TestGenerateStopsOnStopToken(t *testing.T) {
	m := zeroedOutputModel(t)
	vocab := wordVocab(t)
	sess := New(m, vocab, 1)

	opts := sample.DefaultOptions()
	opts.MaxNewTokens = 10
	opts.StopTokenIDs = []int{0}

	text, reason, err := sess.Generate(context.Background(), "a", opts, nil)
	require.NoError(t, err)
	require.Equal(t, DoneReasonStopToken, reason)
	require.Equal(t, "<unk>", text)
}

func TestGenerateStopsOnStopString(t *testing.T) {
	m := zeroedOutputModel(t)
	vocab := wordVocab(t)
	sess := New(m, vocab, 1)

	opts := sample.DefaultOptions()
	opts.MaxNewTokens = 10
	opts.StopStrings = []string{"unk"}

	text, reason, err := sess.Generate(context.Background(), "a", opts, nil)
	require.NoError(t, err)
	require.Equal(t, DoneReasonStopString, reason)
	require.Equal(t, "<unk>", text)
}

func TestGenerateRespectsCancellation(t *testing.T) {
	m := zeroedOutputModel(t)
	vocab := wordVocab(t)
	sess := New(m, vocab, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := sample.DefaultOptions()
	_, reason, err := sess.Generate(ctx, "a", opts, nil)
	require.NoError(t, err)
	require.Equal(t, DoneReasonCancelled, reason)
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	m := zeroedOutputModel(t)
	vocab := wordVocab(t)
	sess := New(m, vocab, 1)

	_, _, err := sess.Generate(context.Background(), "", sample.DefaultOptions(), nil)
	require.Error(t, err)
}

// zeroedOutputModel's MaxContext is 16; a longer prompt must surface
// ErrContextOverflow, not the generic prefill-failure error.
func TestGenerateRejectsPromptLongerThanMaxContext(t *testing.T) {
	m := zeroedOutputModel(t)
	vocab := wordVocab(t)
	sess := New(m, vocab, 1)

	prompt := strings.Repeat("a", m.Config.MaxContext+4)
	_, _, err := sess.Generate(context.Background(), prompt, sample.DefaultOptions(), nil)
	require.ErrorIs(t, err, smerr.ErrContextOverflow)
}

func TestGenerateAcceptsPromptExactlyAtMaxContext(t *testing.T) {
	m := zeroedOutputModel(t)
	vocab := wordVocab(t)
	sess := New(m, vocab, 1)

	opts := sample.DefaultOptions()
	opts.MaxNewTokens = 1

	prompt := strings.Repeat("a", m.Config.MaxContext)
	_, _, err := sess.Generate(context.Background(), prompt, opts, nil)
	require.NoError(t, err)
}
