package gguf

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ggufBuilder hand-encodes a minimal GGUF v3 byte stream: header, full
// key-value array, full tensor directory, alignment padding, then the
// raw tensor data blob, in that physical order.
type ggufBuilder struct {
	kv      bytes.Buffer
	kvCount uint64

	tensors     bytes.Buffer
	tensorCount uint64

	data bytes.Buffer
}

func (b *ggufBuilder) putString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint64(len(s)))
	buf.WriteString(s)
}

func (b *ggufBuilder) kvString(key, value string) {
	b.putString(&b.kv, key)
	binary.Write(&b.kv, binary.LittleEndian, uint32(typeString))
	b.putString(&b.kv, value)
	b.kvCount++
}

func (b *ggufBuilder) kvUint32(key string, value uint32) {
	b.putString(&b.kv, key)
	binary.Write(&b.kv, binary.LittleEndian, uint32(typeUint32))
	binary.Write(&b.kv, binary.LittleEndian, value)
	b.kvCount++
}

func (b *ggufBuilder) addTensor(name string, shape []int, values []float32) {
	b.putString(&b.tensors, name)
	binary.Write(&b.tensors, binary.LittleEndian, uint32(len(shape)))
	for _, d := range shape {
		binary.Write(&b.tensors, binary.LittleEndian, uint64(d))
	}
	binary.Write(&b.tensors, binary.LittleEndian, uint32(TensorTypeF32))
	binary.Write(&b.tensors, binary.LittleEndian, uint64(b.data.Len()))

	for _, v := range values {
		binary.Write(&b.data, binary.LittleEndian, v)
	}
	b.tensorCount++
}

func (b *ggufBuilder) bytes() []byte {
	var out bytes.Buffer
	out.WriteString("GGUF")
	binary.Write(&out, binary.LittleEndian, uint32(3))
	binary.Write(&out, binary.LittleEndian, b.tensorCount)
	binary.Write(&out, binary.LittleEndian, b.kvCount)
	out.Write(b.kv.Bytes())
	out.Write(b.tensors.Bytes())

	const alignment = 32
	pad := (alignment - out.Len()%alignment) % alignment
	out.Write(make([]byte, pad))
	out.Write(b.data.Bytes())

	return out.Bytes()
}

func writeTestGGUF(t *testing.T) string {
	t.Helper()

	var b ggufBuilder
	b.kvString("general.architecture", "toy")
	b.kvUint32("toy.block_count", 1)
	b.addTensor("a.weight", []int{2, 2}, []float32{1, 2, 3, 4})
	b.addTensor("b.weight", []int{3}, []float32{5, 6, 7})

	path := filepath.Join(t.TempDir(), "toy.gguf")
	require.NoError(t, os.WriteFile(path, b.bytes(), 0o644))
	return path
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gguf")
	require.NoError(t, os.WriteFile(path, []byte("NOPE"), 0o644))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestOpenReadsHeaderAndKeyValues(t *testing.T) {
	f, err := Open(writeTestGGUF(t))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, uint32(3), f.Version)
	require.Equal(t, "toy", f.KeyValue("general.architecture").String())
	require.Equal(t, int64(1), f.KeyValue("block_count").Int())
	require.Equal(t, 2, f.NumKeyValues())
}

func TestTensorInfoAfterKeyValueLookup(t *testing.T) {
	f, err := Open(writeTestGGUF(t))
	require.NoError(t, err)
	defer f.Close()

	// Force the key-value lazy reader to partially drain before asking
	// for tensor directory entries, exercising TensorInfo's internal
	// f.keyValues.rest() drain.
	_ = f.KeyValue("general.architecture")

	info := f.TensorInfo("b.weight")
	require.Equal(t, "b.weight", info.Name)
	require.Equal(t, []uint64{3}, info.Shape)
	require.Equal(t, uint64(3), info.NumElements())
	require.Equal(t, 2, f.NumTensors())
}

func TestTensorReaderReturnsExactBytes(t *testing.T) {
	f, err := Open(writeTestGGUF(t))
	require.NoError(t, err)
	defer f.Close()

	info, r, err := f.TensorReader("a.weight")
	require.NoError(t, err)
	require.Equal(t, int64(16), info.NumBytes())

	raw := make([]byte, info.NumBytes())
	_, err = io.ReadFull(r, raw)
	require.NoError(t, err)

	var got [4]float32
	require.NoError(t, binary.Read(bytes.NewReader(raw), binary.LittleEndian, &got))
	require.Equal(t, [4]float32{1, 2, 3, 4}, got)
}

func TestTensorReaderMissingNameErrors(t *testing.T) {
	f, err := Open(writeTestGGUF(t))
	require.NoError(t, err)
	defer f.Close()

	_, _, err = f.TensorReader("does.not.exist")
	require.Error(t, err)
}

func TestTensorInfosIteratesAll(t *testing.T) {
	f, err := Open(writeTestGGUF(t))
	require.NoError(t, err)
	defer f.Close()

	var names []string
	for _, info := range f.TensorInfos() {
		names = append(names, info.Name)
	}
	require.ElementsMatch(t, []string{"a.weight", "b.weight"}, names)
}
