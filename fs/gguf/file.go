// Package gguf reads GGUF model files: a four-byte magic, a version,
// a key-value metadata table, and a tensor directory, followed by an
// aligned data section holding the tensors' raw (possibly quantized)
// bytes. Both the metadata table and the tensor directory are decoded
// lazily via lazy.go so opening a multi-gigabyte file only touches the
// header.
package gguf

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Type constants for the key-value payload encoding.
const (
	typeUint8 uint32 = iota
	typeInt8
	typeUint16
	typeInt16
	typeUint32
	typeInt32
	typeFloat32
	typeBool
	typeString
	typeArray
	typeUint64
	typeInt64
	typeFloat64
)

// ErrUnsupported is returned for an unrecognized magic, version, or
// key-value/array element type.
var ErrUnsupported = errors.New("gguf: unsupported")

// File represents an opened GGUF file. Use Open to construct one and
// Close to release its file handle.
type File struct {
	Magic   [4]byte
	Version uint32

	keyValues *lazy[KeyValue]
	tensors   *lazy[TensorInfo]
	offset    int64

	file   *os.File
	reader *bufferedReader
	bts    []byte
}

// Open opens path and parses the GGUF header: magic, version, and the
// tensor directory (whose final entry's successFunc computes the
// aligned offset of the data section once the directory is read).
func Open(path string) (f *File, err error) {
	f = &File{bts: make([]byte, 4096)}
	f.file, err = os.Open(path)
	if err != nil {
		return nil, err
	}

	f.reader = newBufferedReader(f.file, 32<<10)

	if err := binary.Read(f.reader, binary.LittleEndian, &f.Magic); err != nil {
		return nil, err
	}

	if !bytes.Equal(f.Magic[:], []byte("GGUF")) {
		return nil, fmt.Errorf("%w file type %v", ErrUnsupported, f.Magic)
	}

	if err := binary.Read(f.reader, binary.LittleEndian, &f.Version); err != nil {
		return nil, err
	}

	if f.Version < 2 {
		return nil, fmt.Errorf("%w version %v", ErrUnsupported, f.Version)
	}

	f.tensors, err = newLazy(f, f.readTensor)
	if err != nil {
		return nil, err
	}

	f.tensors.successFunc = func() error {
		offset := f.reader.offset

		alignment := cmp.Or(f.KeyValue("general.alignment").Int(), 32)
		f.offset = offset + (alignment-offset%alignment)%alignment
		return nil
	}

	f.keyValues, err = newLazy(f, f.readKeyValue)
	if err != nil {
		return nil, err
	}

	return f, nil
}

// Close stops both lazy readers and closes the underlying file handle.
func (f *File) Close() error {
	f.keyValues.stop()
	f.tensors.stop()
	return f.file.Close()
}
