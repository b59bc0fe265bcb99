package model

import (
	"io"

	"github.com/smallmind-run/smallmind/fs/smq"
	"github.com/smallmind-run/smallmind/kernel"
	"github.com/smallmind-run/smallmind/quant"
)

// loadTensorSMQ mirrors loadTensor, reading from an SMQ container
// instead of GGUF. SMQ's directory entry carries its own per-tensor
// block size rather than inferring it from the tag, since the writer
// may choose 64 for Q4_0/Q8_0 where GGUF always uses 32.
func loadTensorSMQ(f *smq.File, name string) (quant.Tensor, error) {
	e, data, _, _, err := f.TensorReader(name)
	if err != nil {
		return nil, invalidModelf("tensor %s: %v", name, err)
	}

	raw, err := io.ReadAll(data)
	if err != nil {
		return nil, invalidModelf("tensor %s: reading bytes: %v", name, err)
	}

	tag, ok := smqTag(e.Dtype)
	if !ok {
		return nil, unsupportedConversionf("tensor %s: dtype %q has no supported quant.Tag", name, e.Dtype)
	}

	if !tag.IsBlockQuantized() {
		dense, err := decodeDense(tag, raw)
		if err != nil {
			return nil, invalidModelf("tensor %s: %v", name, err)
		}
		return quant.NewDenseF32(name, e.Shape, dense)
	}

	return quant.NewBlockTensor(name, e.Shape, tag, e.BlockSize, raw)
}

func loadDenseSMQ(f *smq.File, name string) ([]float32, []int, error) {
	t, err := loadTensorSMQ(f, name)
	if err != nil {
		return nil, nil, err
	}
	dst := make([]float32, t.NumElements())
	t.Dequantize(dst)
	return dst, t.Shape(), nil
}

func loadPackedSMQ(f *smq.File, name string) (*kernel.Packed, error) {
	t, err := loadTensorSMQ(f, name)
	if err != nil {
		return nil, err
	}
	return kernel.Pack(t)
}
