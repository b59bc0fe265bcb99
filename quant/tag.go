// Package quant implements the quantized tensor store (component C1):
// the on-disk block layouts for Q4_0, Q4_K, Q5_0, Q6_K, and Q8_0
// weights, their load-time invariant checks, and per-block
// dequantization into FP32. Tensors are immutable once built by the
// loader and are safe for concurrent read across sessions.
package quant

import "fmt"

// Tag identifies a tensor's quantization scheme. The numeric values
// mirror the GGUF/ggml type codes so a loader can cast a decoded
// gguf.TensorType directly into a Tag.
type Tag uint32

const (
	TagF32 Tag = 0
	TagF16 Tag = 1
	TagQ4_0 Tag = 2
	TagQ5_0 Tag = 6
	TagQ8_0 Tag = 8
	TagQ4K Tag = 12
	TagQ6K Tag = 14
	TagBF16 Tag = 30
)

func (t Tag) String() string {
	switch t {
	case TagF32:
		return "f32"
	case TagF16:
		return "f16"
	case TagBF16:
		return "bf16"
	case TagQ4_0:
		return "q4_0"
	case TagQ5_0:
		return "q5_0"
	case TagQ8_0:
		return "q8_0"
	case TagQ4K:
		return "q4_k"
	case TagQ6K:
		return "q6_k"
	default:
		return fmt.Sprintf("tag(%d)", uint32(t))
	}
}

// IsBlockQuantized reports whether the tag stores packed sub-byte codes
// rather than one value per element.
func (t Tag) IsBlockQuantized() bool {
	switch t {
	case TagF32, TagF16, TagBF16:
		return false
	default:
		return true
	}
}

// defaultBlockSize is the element count spanned by one block of the
// tag in the GGUF convention. SMQ containers may declare a different
// per-tensor block size (64 for Q4_0/Q8_0). Nothing in this package
// calls it: BlockTensor validation and decoding read the tensor's own
// blockSize field instead.
func (t Tag) defaultBlockSize() int {
	switch t {
	case TagQ4K, TagQ6K:
		return 256
	case TagQ4_0, TagQ5_0, TagQ8_0:
		return 32
	default:
		return 1
	}
}

// bytesPerBlock is the encoded size, in bytes, of one block at the
// tag's default block size. For tags whose block size can be
// overridden (Q4_0, Q8_0 in SMQ containers) the caller must recompute
// this proportionally to the chosen block size; see BytesPerBlock.
func (t Tag) bytesPerBlock() int {
	switch t {
	case TagQ4_0:
		return 2 + 16
	case TagQ5_0:
		return 2 + 4 + 16
	case TagQ8_0:
		return 2 + 32
	case TagQ4K:
		return 2 + 2 + 12 + 128
	case TagQ6K:
		return 128 + 64 + 16 + 2
	default:
		return 0
	}
}

// BytesPerBlock returns the encoded size of one block of blockSize
// elements under this tag. Q4_0/Q5_0/Q8_0 blocks scale linearly with
// block size (a header plus blockSize*bits/8 packed code bytes, with
// Q5_0's header including a fixed 4-byte high-bit field); Q4_K/Q6_K
// are fixed-shape 256-element superblocks and ignore blockSize.
func (t Tag) BytesPerBlock(blockSize int) int {
	switch t {
	case TagQ4K, TagQ6K:
		return t.bytesPerBlock()
	case TagQ4_0:
		return 2 + blockSize/2
	case TagQ5_0:
		return 2 + 4 + blockSize/2
	case TagQ8_0:
		return 2 + blockSize
	default:
		return t.bytesPerBlock()
	}
}
