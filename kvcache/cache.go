// Package kvcache implements the causal KV cache (component C5): one
// contiguous, pre-allocated FP32 K buffer and V buffer per layer, each
// shaped [max_context, num_kv_heads, head_dim] (position-major so a
// position's heads are contiguous), with append-only writes and
// zero-copy reads of the valid prefix.
//
// A Cache is owned exclusively by one generation session; it is never
// shared across sessions and carries no synchronization of its own.
package kvcache

import (
	"github.com/smallmind-run/smallmind/smerr"
)

// Cache holds the per-layer K/V storage for one session.
type Cache struct {
	numLayers  int
	maxContext int
	numKVHeads int
	headDim    int
	rowSize    int // numKVHeads * headDim

	keys   [][]float32 // per layer, len == maxContext*rowSize
	values [][]float32
	length []int // valid length L per layer, 0 <= L <= maxContext
}

// New allocates a cache for numLayers layers, each able to hold up to
// maxContext positions of numKVHeads*headDim floats.
func New(numLayers, maxContext, numKVHeads, headDim int) *Cache {
	c := &Cache{
		numLayers:  numLayers,
		maxContext: maxContext,
		numKVHeads: numKVHeads,
		headDim:    headDim,
		rowSize:    numKVHeads * headDim,
		keys:       make([][]float32, numLayers),
		values:     make([][]float32, numLayers),
		length:     make([]int, numLayers),
	}

	for l := range numLayers {
		c.keys[l] = make([]float32, maxContext*c.rowSize)
		c.values[l] = make([]float32, maxContext*c.rowSize)
	}

	return c
}

// MaxContext returns the cache's configured capacity.
func (c *Cache) MaxContext() int { return c.maxContext }

// NumKVHeads returns the number of key/value heads stored per position.
func (c *Cache) NumKVHeads() int { return c.numKVHeads }

// Len returns the current valid length L for layer.
func (c *Cache) Len(layer int) int { return c.length[layer] }

// Append writes T rows of K and V (each T*numKVHeads*headDim floats,
// row-major by position) starting at posStart. It is an error for
// posStart+T to exceed max_context. Once written, a (layer, position)
// entry is never mutated again until Reset.
func (c *Cache) Append(layer, posStart int, k, v []float32) error {
	if len(k) != len(v) {
		return smerr.ErrShapeMismatch
	}
	if len(k)%c.rowSize != 0 {
		return smerr.ErrShapeMismatch
	}

	t := len(k) / c.rowSize
	if posStart+t > c.maxContext {
		return smerr.ErrContextOverflow
	}

	dstK := c.keys[layer][posStart*c.rowSize : (posStart+t)*c.rowSize]
	dstV := c.values[layer][posStart*c.rowSize : (posStart+t)*c.rowSize]
	copy(dstK, k)
	copy(dstV, v)

	if end := posStart + t; end > c.length[layer] {
		c.length[layer] = end
	}

	return nil
}

// View returns read-only references to the K and V rows covering
// positions [0, posEnd) for layer, without copying. The caller must not
// mutate the returned slices.
func (c *Cache) View(layer, posEnd int) (k, v []float32, err error) {
	if posEnd > c.length[layer] {
		return nil, nil, smerr.ErrContextOverflow
	}
	return c.keys[layer][:posEnd*c.rowSize], c.values[layer][:posEnd*c.rowSize], nil
}

// Reset sets the valid length to 0 for the given layers, or every layer
// if none are given. It does not zero the underlying buffers; stale
// bytes past the new length 0 are simply unreachable through View until
// overwritten by a later Append.
func (c *Cache) Reset(layers ...int) {
	if len(layers) == 0 {
		for l := range c.length {
			c.length[l] = 0
		}
		return
	}

	for _, l := range layers {
		c.length[l] = 0
	}
}
