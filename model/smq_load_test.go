package model

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallmind-run/smallmind/engine"
	"github.com/smallmind-run/smallmind/fs/smq"
)

func f32Bytes(n int) []byte {
	buf := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(i)*0.01))
	}
	return buf
}

func denseTensor(name string, shape ...int) smq.Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return smq.Tensor{Name: name, Dtype: "f32", Shape: shape, BlockSize: 1, Data: f32Bytes(n)}
}

func writeToySMQ(t *testing.T, path string) {
	const embedDim, numHeads, headDim, vocabSize, mlpHidden = 4, 2, 2, 3, 4

	tensors := []smq.Tensor{
		denseTensor(tensorTokenEmbed, vocabSize, embedDim),
		denseTensor(tensorOutputNorm, embedDim),
		denseTensor(tensorUnembed, embedDim, vocabSize),

		denseTensor(blkName(0, "attn_norm.weight"), embedDim),
		denseTensor(blkName(0, "ffn_norm.weight"), embedDim),
		denseTensor(blkName(0, "attn_q.weight"), embedDim, embedDim),
		denseTensor(blkName(0, "attn_k.weight"), embedDim, embedDim),
		denseTensor(blkName(0, "attn_v.weight"), embedDim, embedDim),
		denseTensor(blkName(0, "attn_output.weight"), embedDim, embedDim),
		denseTensor(blkName(0, "ffn_gate.weight"), embedDim, mlpHidden),
		denseTensor(blkName(0, "ffn_up.weight"), embedDim, mlpHidden),
		denseTensor(blkName(0, "ffn_down.weight"), mlpHidden, embedDim),
	}

	manifest := smq.Manifest{
		ModelName: "toy",
		ModelDims: smq.ModelDims{
			NumLayers: 1, HiddenDim: embedDim, VocabSize: vocabSize,
			ContextLength: 32, NumHeads: numHeads, NumKVHeads: numHeads,
			HeadDim: headDim, MLPHidden: mlpHidden, RopeBase: 10000, NormEps: 1e-5,
			MLPKind: "swiglu", PositionEmbed: "rope",
		},
	}

	require.NoError(t, smq.Write(path, manifest, tensors))
}

func TestLoadSMQ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toy.smq")
	writeToySMQ(t, path)

	m, vocab, err := Load(path)
	require.NoError(t, err)
	require.Nil(t, vocab)
	require.NotNil(t, m)

	require.Equal(t, 1, m.Config.NumLayers)
	require.Equal(t, 4, m.Config.EmbedDim)
	require.Equal(t, 3, m.Config.VocabSize)
	require.Equal(t, engine.MLPSwiGLU, m.Config.MLPKind)
	require.Equal(t, engine.PositionEmbedRoPE, m.Config.PositionEmbed)
	require.NotNil(t, m.RoPE)
	require.Nil(t, m.AbsPosEmbed)
	require.Len(t, m.Layers, 1)
	require.NotNil(t, m.Layers[0].WGate)
	require.NotNil(t, m.Layers[0].WUp)
	require.NotNil(t, m.Layers[0].WDown)
}

func TestLoadRejectsIncompleteSMQManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.smq")
	require.NoError(t, smq.Write(path, smq.Manifest{ModelName: "empty"}, nil))

	_, _, err := Load(path)
	require.Error(t, err)
}
