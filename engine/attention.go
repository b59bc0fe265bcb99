package engine

import (
	"math"

	"github.com/chewxy/math32"

	"github.com/smallmind-run/smallmind/workerpool"
)

// headParallelThreshold is the spec's "(batch*h) >= 4" fan-out trigger;
// batch is always 1 for a single-stream session, so this reduces to a
// head-count threshold.
const headParallelThreshold = 4

// tileQ and tileK are the flash-attention tile sizes (BQ/BK in the
// spec); query rows and key columns are each processed in blocks this
// wide so the T_q × L score matrix is never materialized in full.
const (
	tileQ = 64
	tileK = 64
)

// flashAttention computes causal multi-head attention for T query
// positions against an L-long K/V cache, writing Y[T, numHeads,
// headDim] into out. q is [T, numHeads, headDim]; kCache/vCache are
// [L, numKVHeads, headDim] views from kvcache.Cache.View. GQA broadcasts
// each group of numHeads/numKVHeads query heads onto one KV head.
func flashAttention(q []float32, t int, kCache, vCache []float32, l int, numHeads, numKVHeads, headDim, startPos int, out []float32, pool *workerpool.Pool) error {
	if numHeads%numKVHeads != 0 {
		return shapeErrorf("attention: numHeads %d not a multiple of numKVHeads %d", numHeads, numKVHeads)
	}
	group := numHeads / numKVHeads
	scale := 1 / math32.Sqrt(float32(headDim))

	runHead := func(h int) {
		kvHead := h / group
		attentionHead(q, t, kCache, vCache, l, numHeads, numKVHeads, headDim, startPos, h, kvHead, scale, out)
	}

	if numHeads < headParallelThreshold || pool == nil || pool.Size() <= 1 {
		for h := range numHeads {
			runHead(h)
		}
		return nil
	}

	g := pool.Group()
	for h := range numHeads {
		h := h
		g.Go(func() error {
			runHead(h)
			return nil
		})
	}
	return g.Wait()
}

// attentionHead runs tiled causal attention for one query head against
// one KV head, with online softmax rescaling (running max m, running
// sum l, running accumulator O) so no T_q×L score matrix is ever held
// in full.
func attentionHead(q []float32, t int, kCache, vCache []float32, l int, numHeads, numKVHeads, headDim, startPos, h, kvHead int, scale float32, out []float32) {
	m := make([]float32, tileQ)
	lsum := make([]float32, tileQ)
	acc := make([]float32, tileQ*headDim)
	scores := make([]float32, tileQ*tileK)

	for q0 := 0; q0 < t; q0 += tileQ {
		qRows := min(tileQ, t-q0)

		for i := range qRows {
			m[i] = float32(math.Inf(-1))
			lsum[i] = 0
		}
		clear(acc[:qRows*headDim])

		maxGlobalQ := startPos + q0 + qRows - 1

		for k0 := 0; k0 < l; k0 += tileK {
			if k0 > maxGlobalQ {
				break // entire tile is in the future for every row in this block
			}
			kCols := min(tileK, l-k0)

			// S = Q_tile · K_tile^T * scale, causal-masked.
			for i := range qRows {
				qRow := q[(q0+i)*numHeads*headDim+h*headDim : (q0+i)*numHeads*headDim+h*headDim+headDim]
				globalQ := startPos + q0 + i

				rowMax := float32(math.Inf(-1))
				srow := scores[i*tileK : i*tileK+kCols]
				for j := range kCols {
					globalK := k0 + j
					if globalK > globalQ {
						srow[j] = float32(math.Inf(-1))
						continue
					}
					kRow := kCache[(k0+j)*numKVHeads*headDim+kvHead*headDim : (k0+j)*numKVHeads*headDim+kvHead*headDim+headDim]
					var dot float32
					for d := range headDim {
						dot += qRow[d] * kRow[d]
					}
					s := dot * scale
					srow[j] = s
					if s > rowMax {
						rowMax = s
					}
				}

				mNew := m[i]
				if rowMax > mNew {
					mNew = rowMax
				}

				// Rescale the running accumulator and sum for the new max.
				if mNew != m[i] {
					factor := math32.Exp(m[i] - mNew)
					arow := acc[i*headDim : (i+1)*headDim]
					for d := range headDim {
						arow[d] *= factor
					}
					lsum[i] *= factor
				}

				var rowSum float32
				arow := acc[i*headDim : (i+1)*headDim]
				for j := range kCols {
					if math.IsInf(float64(srow[j]), -1) {
						continue
					}
					p := math32.Exp(srow[j] - mNew)
					rowSum += p

					vRow := vCache[(k0+j)*numKVHeads*headDim+kvHead*headDim : (k0+j)*numKVHeads*headDim+kvHead*headDim+headDim]
					for d := range headDim {
						arow[d] += p * vRow[d]
					}
				}

				lsum[i] += rowSum
				m[i] = mNew
			}
		}

		for i := range qRows {
			dstRow := out[(q0+i)*numHeads*headDim+h*headDim : (q0+i)*numHeads*headDim+h*headDim+headDim]
			if lsum[i] == 0 {
				clear(dstRow)
				continue
			}
			inv := 1 / lsum[i]
			srcRow := acc[i*headDim : (i+1)*headDim]
			for d := range headDim {
				dstRow[d] = srcRow[d] * inv
			}
		}
	}
}
