package model

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/smallmind-run/smallmind/fs/gguf"
	"github.com/smallmind-run/smallmind/kernel"
	"github.com/smallmind-run/smallmind/quant"
)

// ggufBlockSize is the per-tag block size GGUF itself always uses
// (spec.md's Open Question on block size: carried per-tensor, never a
// single global — GGUF-sourced tensors always report 32 for the *_0
// family and 256 for the k-quants; SMQ containers may declare 64 for
// Q4_0/Q8_0, handled separately by fs/smq).
func ggufBlockSize(tag quant.Tag) int {
	switch tag {
	case quant.TagQ4K, quant.TagQ6K:
		return 256
	default:
		return 32
	}
}

// quantTagFor maps a GGUF on-disk type to the quant package's Tag. Only
// the formats spec.md names as supported conversion targets round-trip
// here; everything else (Q4_1, Q5_1, Q8_1, Q2_K, Q3_K, Q5_K, Q8_K) is a
// k-quant variant this build does not re-quantize into, per the
// Non-goal on re-quantization beyond {Q4_0, Q4_K, Q5_0, Q6_K, Q8_0}.
func quantTagFor(t gguf.TensorType) (quant.Tag, bool) {
	switch t {
	case gguf.TensorTypeF32:
		return quant.TagF32, true
	case gguf.TensorTypeF16:
		return quant.TagF16, true
	case gguf.TensorTypeBF16:
		return quant.TagBF16, true
	case gguf.TensorTypeQ4_0:
		return quant.TagQ4_0, true
	case gguf.TensorTypeQ5_0:
		return quant.TagQ5_0, true
	case gguf.TensorTypeQ8_0:
		return quant.TagQ8_0, true
	case gguf.TensorTypeQ4K:
		return quant.TagQ4K, true
	case gguf.TensorTypeQ6K:
		return quant.TagQ6K, true
	default:
		return 0, false
	}
}

// loadTensor reads name's raw bytes and wraps them as a quant.Tensor,
// shape taken directly from the GGUF directory entry: spec.md's data
// model declares weight tensors row-major with the output dimension
// contiguous in the source file, which is exactly the [rows, cols]
// convention quant.Tensor and kernel.Pack already assume, so no
// transpose happens at load time.
func loadTensor(f *gguf.File, name string) (quant.Tensor, error) {
	ti, r, err := f.TensorReader(name)
	if err != nil {
		return nil, invalidModelf("tensor %s: %v", name, err)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, invalidModelf("tensor %s: reading bytes: %v", name, err)
	}

	tag, ok := quantTagFor(ti.Type)
	if !ok {
		return nil, unsupportedConversionf("tensor %s: gguf type %s has no supported quant.Tag", name, ti.Type)
	}

	shape := make([]int, len(ti.Shape))
	for i, d := range ti.Shape {
		shape[i] = int(d)
	}

	if !tag.IsBlockQuantized() {
		data, err := decodeDense(tag, raw)
		if err != nil {
			return nil, invalidModelf("tensor %s: %v", name, err)
		}
		return quant.NewDenseF32(name, shape, data)
	}

	return quant.NewBlockTensor(name, shape, tag, ggufBlockSize(tag), raw)
}

// decodeDense converts raw bytes for an unquantized tag into a []float32.
func decodeDense(tag quant.Tag, raw []byte) ([]float32, error) {
	switch tag {
	case quant.TagF32:
		out := make([]float32, len(raw)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
		}
		return out, nil
	case quant.TagF16:
		out := make([]float32, len(raw)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2 : i*2+2])).Float32()
		}
		return out, nil
	case quant.TagBF16:
		return bfloat16.DecodeFloat32(raw), nil
	default:
		return nil, unsupportedConversionf("dense decode: tag %s is not dense", tag)
	}
}

// loadDense loads name and fully dequantizes it, for 1-D norm/bias
// vectors and the token/position embedding tables (which are read a
// row at a time via DequantizeRow instead, but share this path when
// callers want the whole table materialized).
func loadDense(f *gguf.File, name string) ([]float32, []int, error) {
	t, err := loadTensor(f, name)
	if err != nil {
		return nil, nil, err
	}
	dst := make([]float32, t.NumElements())
	t.Dequantize(dst)
	return dst, t.Shape(), nil
}

// loadPacked loads a 2-D weight matrix and re-lays it for the GEMM
// microkernel via kernel.Pack.
func loadPacked(f *gguf.File, name string) (*kernel.Packed, error) {
	t, err := loadTensor(f, name)
	if err != nil {
		return nil, err
	}
	return kernel.Pack(t)
}
