package smq

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// magic is SMQ's 8-byte file tag, "SMALLMND".
var magic = [8]byte{'S', 'M', 'A', 'L', 'L', 'M', 'N', 'D'}

const formatVersion = 1

// header is SMQ's fixed-size preamble: magic, format version, a flags
// word reserved for future use, and the byte offsets of the two
// length-prefixed JSON regions that follow it.
type header struct {
	Magic           [8]byte
	FormatVersion   uint32
	Flags           uint32
	MetadataOffset  uint64
	DirectoryOffset uint64
	FileSize        uint64
}

// File is an opened SMQ container: its manifest, its tensor directory,
// and a handle for reading tensor data on demand.
type File struct {
	Manifest  Manifest
	Directory []DirEntry

	file *os.File
}

// Open reads path's header, manifest, and directory, and verifies the
// manifest's declared SHA-256 against the actual data blob before
// returning. The data blob is everything from the first tensor's
// data_offset through file_size — the region written by Write's "data
// section", excluded from the hash are the header/manifest/directory
// themselves, which have no fixed content to fingerprint against.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var h header
	if err := binary.Read(f, binary.LittleEndian, &h); err != nil {
		f.Close()
		return nil, invalidModelf("reading header: %v", err)
	}
	if h.Magic != magic {
		f.Close()
		return nil, invalidModelf("bad magic %q", h.Magic)
	}
	if h.FormatVersion != formatVersion {
		f.Close()
		return nil, invalidModelf("unsupported format_version %d", h.FormatVersion)
	}

	manifest, err := readJSONRegion[Manifest](f, h.MetadataOffset)
	if err != nil {
		f.Close()
		return nil, invalidModelf("reading manifest: %v", err)
	}

	directory, err := readJSONRegion[[]DirEntry](f, h.DirectoryOffset)
	if err != nil {
		f.Close()
		return nil, invalidModelf("reading directory: %v", err)
	}

	if manifest.TensorCount != len(directory) {
		f.Close()
		return nil, integrityf("manifest declares %d tensors, directory has %d", manifest.TensorCount, len(directory))
	}

	dataStart := dataRegionStart(directory)
	if err := verifyBlobHash(f, dataStart, h.FileSize, manifest.SHA256Blob); err != nil {
		f.Close()
		return nil, err
	}

	return &File{Manifest: manifest, Directory: directory, file: f}, nil
}

// Close releases the underlying file handle.
func (f *File) Close() error {
	return f.file.Close()
}

// TensorInfo looks up a tensor's directory entry by name.
func (f *File) TensorInfo(name string) (DirEntry, bool) {
	for _, e := range f.Directory {
		if e.Name == name {
			return e, true
		}
	}
	return DirEntry{}, false
}

// TensorReader returns readers bounded to a tensor's data, scales, and
// zero-point regions. scales/zp readers are nil when the entry declares
// no such region (dense tensors, or symmetric quant schemes).
func (f *File) TensorReader(name string) (DirEntry, io.Reader, io.Reader, io.Reader, error) {
	e, ok := f.TensorInfo(name)
	if !ok {
		return DirEntry{}, nil, nil, nil, invalidModelf("tensor %s not found", name)
	}

	data := io.NewSectionReader(f.file, int64(e.DataOffset), int64(e.DataBytes))

	var scales, zp io.Reader
	if e.ScalesBytes > 0 {
		scales = io.NewSectionReader(f.file, int64(e.ScalesOffset), int64(e.ScalesBytes))
	}
	if e.ZPBytes > 0 {
		zp = io.NewSectionReader(f.file, int64(e.ZPOffset), int64(e.ZPBytes))
	}

	return e, data, scales, zp, nil
}

// readJSONRegion reads a uint64 length prefix at offset followed by
// that many bytes of JSON, and decodes it into T.
func readJSONRegion[T any](f *os.File, offset uint64) (T, error) {
	var zero T

	var n uint64
	if err := binary.Read(io.NewSectionReader(f, int64(offset), 8), binary.LittleEndian, &n); err != nil {
		return zero, fmt.Errorf("reading length prefix: %w", err)
	}

	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, int64(offset)+8); err != nil {
		return zero, fmt.Errorf("reading body: %w", err)
	}

	var v T
	if err := json.Unmarshal(buf, &v); err != nil {
		return zero, fmt.Errorf("decoding json: %w", err)
	}
	return v, nil
}

// dataRegionStart is the lowest data_offset across the directory, the
// start of the hashed blob.
func dataRegionStart(dir []DirEntry) uint64 {
	start := ^uint64(0)
	for _, e := range dir {
		if e.DataOffset < start {
			start = e.DataOffset
		}
	}
	if start == ^uint64(0) {
		return 0
	}
	return start
}

func verifyBlobHash(f *os.File, start, end uint64, want string) error {
	if want == "" {
		return integrityf("manifest has no sha256_blob")
	}

	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(f, int64(start), int64(end-start))); err != nil {
		return integrityf("hashing data blob: %v", err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if !bytes.Equal([]byte(got), []byte(want)) {
		return integrityf("data blob sha256 %s does not match manifest %s", got, want)
	}
	return nil
}
