package gguf

import "iter"

// lazy incrementally decodes a length-prefixed sequence of T, caching
// each item as it is read so repeated lookups (KeyValue, TensorInfo)
// never re-scan the file from the start. Both the key-value table and
// the tensor directory in a GGUF file are modeled this way: metadata
// files can carry thousands of entries and callers typically only need
// a handful of them, so eager decoding would waste time on large models.
type lazy[T any] struct {
	count uint64
	index uint64
	values []T

	read        func() (T, error)
	successFunc func() error
	err         error
	done        bool
}

// newLazy reads the uint64 item count that precedes the sequence, then
// returns a lazy reader that decodes one item at a time via readFn on
// demand.
func newLazy[T any](f *File, readFn func() (T, error)) (*lazy[T], error) {
	n, err := read[uint64](f)
	if err != nil {
		return nil, err
	}

	return &lazy[T]{
		count:  n,
		values: make([]T, 0, min(n, 1<<16)),
		read:   readFn,
	}, nil
}

// next decodes and caches the next item, or reports ok=false once the
// sequence is exhausted or a read previously failed.
func (l *lazy[T]) next() (t T, ok bool) {
	if l.done || l.err != nil || l.index >= l.count {
		return t, false
	}

	t, err := l.read()
	if err != nil {
		l.err = err
		l.done = true
		return t, false
	}

	l.values = append(l.values, t)
	l.index++

	if l.index >= l.count {
		l.done = true
		if l.successFunc != nil {
			if err := l.successFunc(); err != nil {
				l.err = err
			}
		}
	}

	return t, true
}

// rest decodes every remaining item and returns the error of the first
// failed read, if any.
func (l *lazy[T]) rest() error {
	for _, ok := l.next(); ok; _, ok = l.next() {
	}
	return l.err
}

// All iterates over every already-cached item, decoding more from the
// file as the iteration advances past what has been read so far.
func (l *lazy[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		i := 0
		for i < len(l.values) {
			if !yield(i, l.values[i]) {
				return
			}
			i++
		}

		for {
			t, ok := l.next()
			if !ok {
				return
			}
			if !yield(i, t) {
				return
			}
			i++
		}
	}
}

// stop marks the reader as exhausted so later calls become no-ops; used
// on Close to make sure nothing keeps referencing the underlying file.
func (l *lazy[T]) stop() {
	l.done = true
}
