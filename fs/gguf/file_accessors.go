// Package gguf accessor methods: lookups and iterators over the
// key-value metadata table and the tensor directory, plus a reader for
// one tensor's raw bytes.
package gguf

import (
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"
)

// KeyValue looks up a metadata entry by name. Keys that don't already
// start with "general." or "tokenizer." get the model's declared
// architecture prepended, matching how GGUF namespaces per-architecture
// hyperparameters (e.g. "block_count" resolves to "llama.block_count").
func (f *File) KeyValue(key string) KeyValue {
	if !strings.HasPrefix(key, "general.") && !strings.HasPrefix(key, "tokenizer.") {
		key = f.KeyValue("general.architecture").String() + "." + key
	}

	if index := slices.IndexFunc(f.keyValues.values, func(kv KeyValue) bool {
		return kv.Key == key
	}); index >= 0 {
		return f.keyValues.values[index]
	}

	for keyValue, ok := f.keyValues.next(); ok; keyValue, ok = f.keyValues.next() {
		if keyValue.Key == key {
			return keyValue
		}
	}

	return KeyValue{}
}

// NumKeyValues returns the total number of metadata entries.
func (f *File) NumKeyValues() int {
	return int(f.keyValues.count)
}

// KeyValues iterates over every metadata entry.
func (f *File) KeyValues() iter.Seq2[int, KeyValue] {
	return f.keyValues.All()
}

// TensorInfo looks up a tensor's directory entry by name.
func (f *File) TensorInfo(name string) TensorInfo {
	if index := slices.IndexFunc(f.tensors.values, func(t TensorInfo) bool {
		return t.Name == name
	}); index >= 0 {
		return f.tensors.values[index]
	}

	// The tensor directory follows the key-value table; finish decoding
	// the latter before resuming the former from the right file offset.
	_ = f.keyValues.rest()
	for tensor, ok := f.tensors.next(); ok; tensor, ok = f.tensors.next() {
		if tensor.Name == name {
			return tensor
		}
	}

	return TensorInfo{}
}

// NumTensors returns the total number of tensors in the directory.
func (f *File) NumTensors() int {
	return int(f.tensors.count)
}

// TensorInfos iterates over every tensor directory entry.
func (f *File) TensorInfos() iter.Seq2[int, TensorInfo] {
	f.keyValues.rest()
	return f.tensors.All()
}

// TensorReader returns a tensor's directory entry and a reader bounded
// to exactly its encoded byte range within the data section.
func (f *File) TensorReader(name string) (TensorInfo, io.Reader, error) {
	t := f.TensorInfo(name)
	if t.NumBytes() == 0 {
		return TensorInfo{}, nil, fmt.Errorf("tensor %s not found", name)
	}

	_ = f.tensors.rest()
	return t, io.NewSectionReader(f.file, f.offset+int64(t.Offset), t.NumBytes()), nil
}
