package kernel

import (
	"context"

	"github.com/smallmind-run/smallmind/workerpool"
)

// rowThreshold is the minimum M below which row-band parallelism isn't
// worth the goroutine fan-out cost (spec's typical M_threshold of 32).
const rowThreshold = 32

// gemmGeneric computes C[m,N] += A[m,K] · B (B supplied pre-packed),
// where A and C are row-major. Rows of C are partitioned across pool's
// worker budget when m ≥ rowThreshold; each row band is independent so
// no locking is needed. For m=1 (the decode-step GEMV) this degenerates
// to a single serial row. pool is nil-safe: a nil pool runs serially.
func gemmGeneric(c, a []float32, b *Packed, m int, pool *workerpool.Pool) {
	threads := 1
	if pool != nil {
		threads = pool.Size()
	}

	if m < rowThreshold || threads <= 1 {
		gemmRows(c, a, b, 0, m)
		return
	}

	g := pool.Group()
	band := (m + threads - 1) / threads
	for start := 0; start < m; start += band {
		start := start
		end := min(start+band, m)
		g.Go(func() error {
			gemmRows(c, a, b, start, end)
			return nil
		})
	}
	_ = g.Wait()
}

// gemmRows computes rows [rowStart, rowEnd) of C.
func gemmRows(c, a []float32, b *Packed, rowStart, rowEnd int) {
	k, n := b.K, b.N

	for i := rowStart; i < rowEnd; i++ {
		arow := a[i*k : i*k+k]
		crow := c[i*n : i*n+n]

		for p := range b.panels {
			c0 := p * b.nr
			width := min(b.nr, n-c0)
			acc := crow[c0 : c0+width]

			for kk := range k {
				av := arow[kk]
				if av == 0 {
					continue
				}
				brow := b.row(p, kk)
				for j := range width {
					acc[j] += av * brow[j]
				}
			}
		}
	}
}

// gemmGenericContext is a context-aware wrapper around gemmGeneric: it
// checks ctx once before and once after the whole GEMM and returns
// ctx's error. The GEMM itself is not interrupted, neither mid-row nor
// between row bands.
func gemmGenericContext(ctx context.Context, c, a []float32, b *Packed, m int, pool *workerpool.Pool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	gemmGeneric(c, a, b, m, pool)
	return ctx.Err()
}
