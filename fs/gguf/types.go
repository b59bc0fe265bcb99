package gguf

import "fmt"

// TensorType identifies the on-disk element encoding of a tensor, using
// the same numeric codes as the GGUF/ggml ecosystem so files produced by
// other tools remain readable.
type TensorType uint32

const (
	TensorTypeF32 TensorType = iota
	TensorTypeF16
	TensorTypeQ4_0
	TensorTypeQ4_1
	_
	_
	TensorTypeQ5_0
	TensorTypeQ5_1
	TensorTypeQ8_0
	TensorTypeQ8_1
	TensorTypeQ2K
	TensorTypeQ3K
	TensorTypeQ4K
	TensorTypeQ5K
	TensorTypeQ6K
	TensorTypeQ8K
)

const TensorTypeBF16 TensorType = 30

// String returns the canonical lowercase tag used in model manifests and
// log output.
func (t TensorType) String() string {
	switch t {
	case TensorTypeF32:
		return "f32"
	case TensorTypeF16:
		return "f16"
	case TensorTypeBF16:
		return "bf16"
	case TensorTypeQ4_0:
		return "q4_0"
	case TensorTypeQ4_1:
		return "q4_1"
	case TensorTypeQ5_0:
		return "q5_0"
	case TensorTypeQ5_1:
		return "q5_1"
	case TensorTypeQ8_0:
		return "q8_0"
	case TensorTypeQ8_1:
		return "q8_1"
	case TensorTypeQ2K:
		return "q2_k"
	case TensorTypeQ3K:
		return "q3_k"
	case TensorTypeQ4K:
		return "q4_k"
	case TensorTypeQ5K:
		return "q5_k"
	case TensorTypeQ6K:
		return "q6_k"
	case TensorTypeQ8K:
		return "q8_k"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// IsQuantized reports whether values are stored as packed sub-byte
// blocks rather than one float per element.
func (t TensorType) IsQuantized() bool {
	switch t {
	case TensorTypeF32, TensorTypeF16, TensorTypeBF16:
		return false
	default:
		return true
	}
}

// blockSize is the element count of one quantization block. Dense types
// report 1 so row-size math below stays uniform.
func (t TensorType) blockSize() int64 {
	switch t {
	case TensorTypeQ2K, TensorTypeQ3K, TensorTypeQ4K, TensorTypeQ5K, TensorTypeQ6K, TensorTypeQ8K:
		return 256
	case TensorTypeQ4_0, TensorTypeQ4_1, TensorTypeQ5_0, TensorTypeQ5_1, TensorTypeQ8_0, TensorTypeQ8_1:
		return 32
	default:
		return 1
	}
}

// typeSize is the encoded byte size of one block (or one element for
// dense types).
func (t TensorType) typeSize() int64 {
	switch t {
	case TensorTypeF32:
		return 4
	case TensorTypeF16, TensorTypeBF16:
		return 2
	case TensorTypeQ4_0:
		return 2 + 16
	case TensorTypeQ4_1:
		return 2 + 2 + 16
	case TensorTypeQ5_0:
		return 2 + 4 + 16
	case TensorTypeQ5_1:
		return 2 + 2 + 4 + 16
	case TensorTypeQ8_0:
		return 2 + 32
	case TensorTypeQ8_1:
		return 4 + 4 + 32
	case TensorTypeQ2K:
		return 16 + 64 + 2 + 2
	case TensorTypeQ3K:
		return 32 + 64 + 12 + 2
	case TensorTypeQ4K:
		return 2 + 2 + 12 + 128
	case TensorTypeQ5K:
		return 2 + 2 + 12 + 32 + 128
	case TensorTypeQ6K:
		return 128 + 64 + 16 + 2
	case TensorTypeQ8K:
		return 4 + 256 + 32
	default:
		return 0
	}
}

// RowSize returns the byte size of a row of n elements under this type.
func (t TensorType) RowSize(n uint64) int64 {
	bs := t.blockSize()
	return int64(n) / bs * t.typeSize()
}

// ParseTensorType maps a manifest tag (as written by fs/smq) back to a
// TensorType, returning false for tags this build does not recognize.
func ParseTensorType(tag string) (TensorType, bool) {
	for _, t := range []TensorType{
		TensorTypeF32, TensorTypeF16, TensorTypeBF16,
		TensorTypeQ4_0, TensorTypeQ4_1, TensorTypeQ5_0, TensorTypeQ5_1,
		TensorTypeQ8_0, TensorTypeQ8_1,
		TensorTypeQ2K, TensorTypeQ3K, TensorTypeQ4K, TensorTypeQ5K, TensorTypeQ6K, TensorTypeQ8K,
	} {
		if t.String() == tag {
			return t, true
		}
	}
	return 0, false
}

// Value wraps a decoded key-value payload. The concrete type is one of
// the Go primitives produced by read/readString/readArray.
type Value struct {
	any
}

func (v Value) String() string {
	s, _ := v.any.(string)
	return s
}

// Int coerces the value to an int, returning 0 for non-numeric values.
func (v Value) Int() int64 {
	switch n := v.any.(type) {
	case uint8:
		return int64(n)
	case int8:
		return int64(n)
	case uint16:
		return int64(n)
	case int16:
		return int64(n)
	case uint32:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}

// Float coerces the value to a float64, returning 0 for non-float values.
func (v Value) Float() float64 {
	switch n := v.any.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

// Bool coerces the value to a bool.
func (v Value) Bool() bool {
	b, _ := v.any.(bool)
	return b
}

// Strings returns the value as a string slice, for tokenizer vocab and
// merge-list metadata entries.
func (v Value) Strings() []string {
	s, _ := v.any.([]string)
	return s
}

// Ints returns the value as an int64 slice, coercing whichever concrete
// integer array type was decoded.
func (v Value) Ints() []int64 {
	switch n := v.any.(type) {
	case []int32:
		out := make([]int64, len(n))
		for i, x := range n {
			out[i] = int64(x)
		}
		return out
	case []uint32:
		out := make([]int64, len(n))
		for i, x := range n {
			out[i] = int64(x)
		}
		return out
	case []int64:
		return n
	default:
		return nil
	}
}

// KeyValue is one decoded metadata entry.
type KeyValue struct {
	Key   string
	Value Value
}

func (kv KeyValue) String() string { return kv.Value.String() }
func (kv KeyValue) Int() int64     { return kv.Value.Int() }

// TensorInfo describes one tensor's name, shape, encoding, and byte
// offset relative to the data section.
type TensorInfo struct {
	Name   string
	Offset uint64
	Shape  []uint64
	Type   TensorType
}

// NumBytes returns the encoded size of the tensor's backing bytes.
func (t TensorInfo) NumBytes() int64 {
	if len(t.Shape) == 0 {
		return 0
	}

	n := uint64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return t.Type.RowSize(n)
}

// NumElements returns the element count implied by Shape.
func (t TensorInfo) NumElements() uint64 {
	n := uint64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}
