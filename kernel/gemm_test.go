package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallmind-run/smallmind/quant"
	"github.com/smallmind-run/smallmind/workerpool"
)

func identityPacked(t *testing.T, n int) *Packed {
	t.Helper()
	data := make([]float32, n*n)
	for i := range n {
		data[i*n+i] = 1
	}
	tensor, err := quant.NewDenseF32("identity", []int{n, n}, data)
	require.NoError(t, err)
	b, err := Pack(tensor)
	require.NoError(t, err)
	return b
}

func TestGemmGenericIdentity(t *testing.T) {
	const n, m = 4, 2
	b := identityPacked(t, n)

	a := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	c := make([]float32, m*n)

	gemmGeneric(c, a, b, m, nil)
	require.Equal(t, a, c)
}

func TestGemmGenericMatchesSerialAcrossPool(t *testing.T) {
	const n, m = 20, 40
	data := make([]float32, n*n)
	for i := range data {
		data[i] = float32(i%7) * 0.1
	}
	tensor, err := quant.NewDenseF32("w", []int{n, n}, data)
	require.NoError(t, err)
	b, err := Pack(tensor)
	require.NoError(t, err)

	a := make([]float32, m*n)
	for i := range a {
		a[i] = float32(i%5) - 2
	}

	serial := make([]float32, m*n)
	gemmGeneric(serial, a, b, m, nil)

	pool := workerpool.New(4)
	parallel := make([]float32, m*n)
	gemmGeneric(parallel, a, b, m, pool)

	require.InDeltaSlice(t, serial, parallel, 1e-4)
}

func TestGemmGenericContextCancellation(t *testing.T) {
	b := identityPacked(t, 4)
	a := make([]float32, 4)
	c := make([]float32, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gemmGenericContext(ctx, c, a, b, 1, nil)
	require.Error(t, err)
}

func TestPackRejectsNonMatrixShape(t *testing.T) {
	tensor, err := quant.NewDenseF32("v", []int{4}, make([]float32, 4))
	require.NoError(t, err)

	_, err = Pack(tensor)
	require.Error(t, err)
}
