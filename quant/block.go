package quant

// BlockTensor is a block-quantized tensor: one of Q4_0, Q5_0, Q8_0,
// Q4_K, Q6_K. Raw encoded bytes are stored exactly as read from the
// model file (row-major, blocks in sequence along the flattened
// element order); Dequantize decodes them into a caller-owned FP32
// buffer per the canonical GGUF byte layout for the tensor's tag.
type BlockTensor struct {
	base
	tag       Tag
	blockSize int
	data      []byte
}

// NewBlockTensor validates and constructs a block-quantized tensor.
// blockSize is the tensor's own declared block size (32 or 64 for
// Q4_0/Q8_0 depending on container; 32 for Q5_0, whose decoder reads
// one 32-bit high-bit field per block; always 256 for the k-quants) —
// never assumed to be a single value across the whole model.
func NewBlockTensor(name string, shape []int, tag Tag, blockSize int, data []byte) (*BlockTensor, error) {
	t := &BlockTensor{base: base{name: name, shape: shape}, tag: tag, blockSize: blockSize, data: data}

	if !tag.IsBlockQuantized() {
		return nil, invalidModelf("%s: tag %s is not block-quantized", name, tag)
	}
	if len(shape) == 0 {
		return nil, invalidModelf("%s: tensor has no shape", name)
	}

	lastDim := shape[len(shape)-1]
	if blockSize <= 0 || lastDim%blockSize != 0 {
		return nil, invalidModelf("%s: last dimension %d not divisible by block size %d", name, lastDim, blockSize)
	}

	n := t.numElements()
	if n%blockSize != 0 {
		return nil, invalidModelf("%s: %d elements not divisible by block size %d", name, n, blockSize)
	}

	blockCount := n / blockSize
	wantBytes := blockCount * tag.BytesPerBlock(blockSize)
	if len(data) != wantBytes {
		return nil, invalidModelf("%s: %s expects %d encoded bytes for %d blocks, got %d", name, tag, wantBytes, blockCount, len(data))
	}

	if err := t.validateBlocks(); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *BlockTensor) Tag() Tag         { return t.tag }
func (t *BlockTensor) NumElements() int { return t.numElements() }
func (t *BlockTensor) BlockSize() int   { return t.blockSize }

// Dequantize decodes every block into dst, row-major, per the tensor's
// tag.
func (t *BlockTensor) Dequantize(dst []float32) {
	t.dequantizeRange(t.data, dst)
}

// DequantizeRow decodes only the blocks belonging to one row (used by
// the embedding-table gather, which needs one row per token rather than
// the whole table).
func (t *BlockTensor) DequantizeRow(row int, dst []float32) {
	rowLen := t.numElements() / t.shape[0]
	blocksPerRow := rowLen / t.blockSize
	stride := t.tag.BytesPerBlock(t.blockSize)
	byteOff := row * blocksPerRow * stride
	byteLen := blocksPerRow * stride

	t.dequantizeRange(t.data[byteOff:byteOff+byteLen], dst)
}

func (t *BlockTensor) dequantizeRange(data []byte, dst []float32) {
	switch t.tag {
	case TagQ4_0:
		dequantizeQ4_0(data, dst, t.blockSize)
	case TagQ5_0:
		dequantizeQ5_0(data, dst, t.blockSize)
	case TagQ8_0:
		dequantizeQ8_0(data, dst, t.blockSize)
	case TagQ4K:
		dequantizeQ4K(data, dst)
	case TagQ6K:
		dequantizeQ6K(data, dst)
	}
}

// validateBlocks walks every block's scale (and, for k-quants, the
// superblock's d/dmin pair) and rejects non-finite or zero scales per
// the C1 load-time invariant.
func (t *BlockTensor) validateBlocks() error {
	n := t.numElements()
	blockCount := n / t.blockSize

	switch t.tag {
	case TagQ4_0, TagQ5_0, TagQ8_0:
		stride := t.tag.BytesPerBlock(t.blockSize)
		for b := range blockCount {
			d := decodeF16(t.data[b*stride : b*stride+2])
			if !finiteNonzero(d) {
				return invalidModelf("%s: block %d has non-finite or zero scale %v", t.name, b, d)
			}
		}
	case TagQ4K:
		stride := t.tag.bytesPerBlock()
		for b := range blockCount {
			block := t.data[b*stride : (b+1)*stride]
			d := decodeF16(block[0:2])
			dmin := decodeF16(block[2:4])
			if !finiteNonzero(d) || !finiteNonzero(dmin) {
				return invalidModelf("%s: superblock %d has non-finite or zero d/dmin", t.name, b)
			}
		}
	case TagQ6K:
		stride := t.tag.bytesPerBlock()
		for b := range blockCount {
			block := t.data[b*stride : (b+1)*stride]
			d := decodeF16(block[208:210])
			if !finiteNonzero(d) {
				return invalidModelf("%s: superblock %d has non-finite or zero scale", t.name, b)
			}
		}
	}

	return nil
}
