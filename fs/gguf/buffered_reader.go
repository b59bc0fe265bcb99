package gguf

import (
	"bufio"
	"io"
)

// bufferedReader wraps a bufio.Reader while tracking the total number of
// bytes consumed, so the caller can compute the tensor-data section's
// byte offset once the header has been fully parsed.
type bufferedReader struct {
	r      *bufio.Reader
	offset int64
}

func newBufferedReader(r io.Reader, size int) *bufferedReader {
	return &bufferedReader{r: bufio.NewReaderSize(r, size)}
}

func (b *bufferedReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.offset += int64(n)
	return n, err
}
