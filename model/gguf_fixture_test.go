package model

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ggufBuilder hand-assembles a minimal valid GGUF byte stream: the
// package has no writer of its own (SMQ is the only container this
// build writes), so a from-scratch encoder is the only way to exercise
// loadGGUF's read path without a real downloaded checkpoint.
type ggufBuilder struct {
	kv      bytes.Buffer
	kvCount uint64
	tensors bytes.Buffer
	tCount  uint64
	data    bytes.Buffer
}

func (b *ggufBuilder) putString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint64(len(s)))
	buf.WriteString(s)
}

func (b *ggufBuilder) kvString(key, val string) {
	b.putString(&b.kv, key)
	binary.Write(&b.kv, binary.LittleEndian, uint32(8)) // typeString
	b.putString(&b.kv, val)
	b.kvCount++
}

func (b *ggufBuilder) kvUint32(key string, val uint32) {
	b.putString(&b.kv, key)
	binary.Write(&b.kv, binary.LittleEndian, uint32(4)) // typeUint32
	binary.Write(&b.kv, binary.LittleEndian, val)
	b.kvCount++
}

func (b *ggufBuilder) kvFloat32(key string, val float32) {
	b.putString(&b.kv, key)
	binary.Write(&b.kv, binary.LittleEndian, uint32(6)) // typeFloat32
	binary.Write(&b.kv, binary.LittleEndian, val)
	b.kvCount++
}

func (b *ggufBuilder) kvStringArray(key string, vals []string) {
	b.putString(&b.kv, key)
	binary.Write(&b.kv, binary.LittleEndian, uint32(9)) // typeArray
	binary.Write(&b.kv, binary.LittleEndian, uint32(8)) // element type string
	binary.Write(&b.kv, binary.LittleEndian, uint64(len(vals)))
	for _, v := range vals {
		b.putString(&b.kv, v)
	}
	b.kvCount++
}

// addTensor appends name's directory entry and raw f32 data; the entry
// records the data's byte offset relative to the data section.
func (b *ggufBuilder) addTensor(name string, shape []int, values []float32) {
	offset := uint64(b.data.Len())

	b.putString(&b.tensors, name)
	binary.Write(&b.tensors, binary.LittleEndian, uint32(len(shape)))
	for _, d := range shape {
		binary.Write(&b.tensors, binary.LittleEndian, uint64(d))
	}
	binary.Write(&b.tensors, binary.LittleEndian, uint32(0)) // TensorTypeF32
	binary.Write(&b.tensors, binary.LittleEndian, offset)
	b.tCount++

	for _, v := range values {
		binary.Write(&b.data, binary.LittleEndian, math.Float32bits(v))
	}
}

func (b *ggufBuilder) bytes() []byte {
	var out bytes.Buffer
	out.WriteString("GGUF")
	binary.Write(&out, binary.LittleEndian, uint32(3))
	binary.Write(&out, binary.LittleEndian, b.tCount)
	binary.Write(&out, binary.LittleEndian, b.kvCount)
	out.Write(b.kv.Bytes())
	out.Write(b.tensors.Bytes())

	// Pad to a 32-byte boundary, matching the default alignment loadGGUF
	// relies on when general.alignment isn't set.
	for out.Len()%32 != 0 {
		out.WriteByte(0)
	}
	out.Write(b.data.Bytes())
	return out.Bytes()
}

func constantVec(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// writeTestGGUF builds a tiny llama-profile checkpoint: 1 layer, 4-dim
// embeddings, 2 heads, 3-token vocabulary, swiglu MLP, RoPE positions.
func writeTestGGUF(t *testing.T, path string) {
	t.Helper()

	const embedDim, numHeads, headDim, vocabSize, mlpHidden, numLayers, contextLen = 4, 2, 2, 3, 4, 1, 32

	b := &ggufBuilder{}
	b.kvString("general.architecture", "llama")
	b.kvUint32("llama.embedding_length", embedDim)
	b.kvUint32("llama.attention.head_count", numHeads)
	b.kvUint32("llama.attention.head_count_kv", numHeads)
	b.kvUint32("llama.block_count", numLayers)
	b.kvUint32("llama.context_length", contextLen)
	b.kvUint32("llama.feed_forward_length", mlpHidden)
	b.kvFloat32("llama.attention.layer_norm_rms_epsilon", 1e-5)
	b.kvFloat32("llama.rope.freq_base", 10000)

	tokens := []string{"<unk>", "hello", "world"}
	b.kvStringArray("tokenizer.ggml.tokens", tokens)
	b.kvString("tokenizer.ggml.model", "llama")
	b.kvUint32("tokenizer.ggml.bos_token_id", 0)
	b.kvUint32("tokenizer.ggml.eos_token_id", 0)
	b.kvUint32("tokenizer.ggml.unknown_token_id", 0)

	b.addTensor(tensorTokenEmbed, []int{vocabSize, embedDim}, constantVec(vocabSize*embedDim, 0.01))
	b.addTensor(tensorOutputNorm, []int{embedDim}, constantVec(embedDim, 1))
	b.addTensor(tensorUnembed, []int{embedDim, vocabSize}, constantVec(embedDim*vocabSize, 0.02))

	blk := func(suffix string) string { return blkName(0, suffix) }
	b.addTensor(blk("attn_norm.weight"), []int{embedDim}, constantVec(embedDim, 1))
	b.addTensor(blk("ffn_norm.weight"), []int{embedDim}, constantVec(embedDim, 1))
	b.addTensor(blk("attn_q.weight"), []int{embedDim, embedDim}, constantVec(embedDim*embedDim, 0.01))
	b.addTensor(blk("attn_k.weight"), []int{embedDim, embedDim}, constantVec(embedDim*embedDim, 0.01))
	b.addTensor(blk("attn_v.weight"), []int{embedDim, embedDim}, constantVec(embedDim*embedDim, 0.01))
	b.addTensor(blk("attn_output.weight"), []int{embedDim, embedDim}, constantVec(embedDim*embedDim, 0.01))
	b.addTensor(blk("ffn_gate.weight"), []int{embedDim, mlpHidden}, constantVec(embedDim*mlpHidden, 0.01))
	b.addTensor(blk("ffn_up.weight"), []int{embedDim, mlpHidden}, constantVec(embedDim*mlpHidden, 0.01))
	b.addTensor(blk("ffn_down.weight"), []int{mlpHidden, embedDim}, constantVec(mlpHidden*embedDim, 0.01))

	require.NoError(t, os.WriteFile(path, b.bytes(), 0o644))
}

func testGGUFPath(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "toy.gguf")
	writeTestGGUF(t, path)
	return path
}
