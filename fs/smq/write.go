package smq

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Tensor is one tensor's pre-encoded on-disk payload, ready to be
// placed into a container: quantized data plus optional scale and
// zero-point side tables.
type Tensor struct {
	Name  string
	Dtype string
	Shape []int

	BlockSize int

	Data   []byte
	Scales []byte
	ZP     []byte
}

func (t *Tensor) size() uint64 {
	return uint64(len(t.Data) + len(t.Scales) + len(t.ZP))
}

// Write lays out header, manifest, directory, and tensor data in that
// order and writes them to path. The manifest's SHA256Blob and
// TensorCount are computed here and need not be set by the caller.
// Tensor payloads are written concurrently, one goroutine per tensor,
// bounded by GOMAXPROCS, mirroring how the teacher writes GGUF tensor
// data in parallel via an offset writer per tensor.
func Write(path string, manifest Manifest, tensors []Tensor) error {
	manifest.FormatVersion = formatVersion
	manifest.TensorCount = len(tensors)

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return invalidModelf("encoding manifest: %v", err)
	}

	// Header is fixed-size; metadata begins immediately after it.
	const headerSize = 8 + 4 + 4 + 8 + 8 + 8
	metadataOffset := uint64(headerSize)
	directoryOffset := metadataOffset + 8 + uint64(len(manifestJSON))

	// The directory's own encoded length affects where the data section
	// (and therefore every offset inside the directory) begins, and
	// larger offsets can themselves take more JSON digits to spell —
	// so converge by re-laying-out against each guess until the
	// encoded length stops changing. Offsets only grow monotonically
	// across iterations, so this settles in a small, bounded number of
	// passes.
	var dir []DirEntry
	var dirJSON []byte
	dataStart := directoryOffset + 8
	for {
		dir = layoutTensors(tensors, dataStart)
		dirJSON, err = json.Marshal(dir)
		if err != nil {
			return invalidModelf("encoding directory: %v", err)
		}
		next := directoryOffset + 8 + uint64(len(dirJSON))
		if next == dataStart {
			break
		}
		dataStart = next
	}

	var blobSize uint64
	for _, t := range tensors {
		blobSize += t.size()
	}
	fileSize := dataStart + blobSize

	sum, err := blobSHA256(tensors)
	if err != nil {
		return invalidModelf("hashing tensor data: %v", err)
	}
	manifest.SHA256Blob = sum
	manifestJSON, err = json.Marshal(manifest)
	if err != nil {
		return invalidModelf("re-encoding manifest: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := header{
		Magic:           magic,
		FormatVersion:   formatVersion,
		MetadataOffset:  metadataOffset,
		DirectoryOffset: directoryOffset,
		FileSize:        fileSize,
	}
	if err := binary.Write(f, binary.LittleEndian, h); err != nil {
		return err
	}

	if err := writeLengthPrefixed(f, manifestJSON); err != nil {
		return err
	}
	if err := writeLengthPrefixed(f, dirJSON); err != nil {
		return err
	}

	if err := f.Truncate(int64(fileSize)); err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range tensors {
		t := &tensors[i]
		e := dir[i]
		g.Go(func() error {
			return writeTensorPayload(f, t, e)
		})
	}
	return g.Wait()
}

func writeLengthPrefixed(w io.Writer, body []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(body))); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// layoutTensors assigns data/scales/zp offsets starting at base,
// packing each tensor's regions contiguously in declaration order.
func layoutTensors(tensors []Tensor, base uint64) []DirEntry {
	dir := make([]DirEntry, len(tensors))
	offset := base
	for i, t := range tensors {
		dir[i] = DirEntry{
			Name:       t.Name,
			Dtype:      t.Dtype,
			Shape:      t.Shape,
			BlockSize:  t.BlockSize,
			DataOffset: offset,
			DataBytes:  uint64(len(t.Data)),
		}
		offset += uint64(len(t.Data))

		if len(t.Scales) > 0 {
			dir[i].ScalesOffset = offset
			dir[i].ScalesBytes = uint64(len(t.Scales))
			offset += uint64(len(t.Scales))
		}
		if len(t.ZP) > 0 {
			dir[i].ZPOffset = offset
			dir[i].ZPBytes = uint64(len(t.ZP))
			offset += uint64(len(t.ZP))
		}
	}
	return dir
}

func writeTensorPayload(f *os.File, t *Tensor, e DirEntry) error {
	if _, err := f.WriteAt(t.Data, int64(e.DataOffset)); err != nil {
		return err
	}
	if len(t.Scales) > 0 {
		if _, err := f.WriteAt(t.Scales, int64(e.ScalesOffset)); err != nil {
			return err
		}
	}
	if len(t.ZP) > 0 {
		if _, err := f.WriteAt(t.ZP, int64(e.ZPOffset)); err != nil {
			return err
		}
	}
	return nil
}

func blobSHA256(tensors []Tensor) (string, error) {
	h := sha256.New()
	for _, t := range tensors {
		if _, err := h.Write(t.Data); err != nil {
			return "", err
		}
		if len(t.Scales) > 0 {
			if _, err := h.Write(t.Scales); err != nil {
				return "", err
			}
		}
		if len(t.ZP) > 0 {
			if _, err := h.Write(t.ZP); err != nil {
				return "", err
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
