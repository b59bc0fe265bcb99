package kvcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallmind-run/smallmind/smerr"
)

func TestAppendAndView(t *testing.T) {
	c := New(1, 8, 2, 4)
	rowSize := 2 * 4

	k := make([]float32, 3*rowSize)
	v := make([]float32, 3*rowSize)
	for i := range k {
		k[i] = float32(i)
		v[i] = float32(i) * 10
	}

	require.NoError(t, c.Append(0, 0, k, v))
	require.Equal(t, 3, c.Len(0))

	gotK, gotV, err := c.View(0, 3)
	require.NoError(t, err)
	require.Equal(t, k, gotK)
	require.Equal(t, v, gotV)
}

func TestAppendIsPositionMajorAndNeverMutatesPriorRows(t *testing.T) {
	c := New(1, 8, 1, 2)

	require.NoError(t, c.Append(0, 0, []float32{1, 2}, []float32{10, 20}))
	require.NoError(t, c.Append(0, 1, []float32{3, 4}, []float32{30, 40}))

	k, v, err := c.View(0, 2)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4}, k)
	require.Equal(t, []float32{10, 20, 30, 40}, v)
}

func TestAppendRejectsOverflow(t *testing.T) {
	c := New(1, 2, 1, 2)
	err := c.Append(0, 1, []float32{1, 2, 3, 4}, []float32{1, 2, 3, 4})
	require.ErrorIs(t, err, smerr.ErrContextOverflow)
}

func TestAppendRejectsMismatchedLengths(t *testing.T) {
	c := New(1, 4, 1, 2)
	err := c.Append(0, 0, []float32{1, 2}, []float32{1, 2, 3})
	require.ErrorIs(t, err, smerr.ErrShapeMismatch)
}

func TestViewPastLengthErrors(t *testing.T) {
	c := New(1, 4, 1, 2)
	require.NoError(t, c.Append(0, 0, []float32{1, 2}, []float32{1, 2}))

	_, _, err := c.View(0, 2)
	require.ErrorIs(t, err, smerr.ErrContextOverflow)
}

func TestResetClearsLength(t *testing.T) {
	c := New(2, 4, 1, 2)
	require.NoError(t, c.Append(0, 0, []float32{1, 2}, []float32{1, 2}))
	require.NoError(t, c.Append(1, 0, []float32{1, 2}, []float32{1, 2}))

	c.Reset(0)
	require.Equal(t, 0, c.Len(0))
	require.Equal(t, 1, c.Len(1))

	c.Reset()
	require.Equal(t, 0, c.Len(1))
}
