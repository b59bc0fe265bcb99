package kernel

import (
	"github.com/chewxy/math32"
	"gorgonia.org/vecf32"
)

// RMSNorm computes y[i] = (x[i] / rms) * gamma[i] row-wise, where
// rms = sqrt(mean(x^2) + eps). x and y may alias.
func RMSNorm(y, x, gamma []float32, eps float32) {
	var sumSq float32
	for _, v := range x {
		sumSq += v * v
	}
	rms := math32.Sqrt(sumSq/float32(len(x)) + eps)
	inv := 1 / rms

	for i, v := range x {
		y[i] = v * inv * gamma[i]
	}
}

// Softmax computes a numerically stable softmax over x in place:
// subtract the row max, exponentiate, normalize by the row sum.
// Guarantees a finite output whenever x contains no NaN/Inf.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}

	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}

	var sum float32
	for i, v := range x {
		e := math32.Exp(v - max)
		x[i] = e
		sum += e
	}

	if sum == 0 {
		return
	}
	inv := 1 / sum
	vecf32.Scale(x, inv)
}

// RoPETable holds precomputed cos/sin rotation angles for every
// position up to maxContext, shape [maxContext][headDim/2].
type RoPETable struct {
	HeadDim int
	Cos     [][]float32
	Sin     [][]float32
}

// NewRoPETable precomputes rotation angles theta_i = base^(-2i/headDim)
// for positions [0, maxContext).
func NewRoPETable(maxContext, headDim int, base float32) *RoPETable {
	half := headDim / 2
	t := &RoPETable{HeadDim: headDim, Cos: make([][]float32, maxContext), Sin: make([][]float32, maxContext)}

	invFreq := make([]float32, half)
	for i := range half {
		invFreq[i] = 1 / math32.Pow(base, float32(2*i)/float32(headDim))
	}

	for pos := range maxContext {
		cosRow := make([]float32, half)
		sinRow := make([]float32, half)
		for i := range half {
			angle := float32(pos) * invFreq[i]
			cosRow[i] = math32.Cos(angle)
			sinRow[i] = math32.Sin(angle)
		}
		t.Cos[pos] = cosRow
		t.Sin[pos] = sinRow
	}

	return t
}

// Apply rotates pairs (x[2i], x[2i+1]) in place for a single head's
// vector at absolute position pos.
func (t *RoPETable) Apply(x []float32, pos int) {
	cosRow := t.Cos[pos]
	sinRow := t.Sin[pos]

	for i := range cosRow {
		x0 := x[2*i]
		x1 := x[2*i+1]
		c := cosRow[i]
		s := sinRow[i]
		x[2*i] = x0*c - x1*s
		x[2*i+1] = x0*s + x1*c
	}
}

// GELU applies the tanh-form GELU approximation in place:
// 0.5x(1 + tanh(sqrt(2/pi)(x + 0.044715x^3))).
func GELU(x []float32) {
	const sqrt2OverPi = 0.7978845608028654
	for i, v := range x {
		inner := sqrt2OverPi * (v + 0.044715*v*v*v)
		x[i] = 0.5 * v * (1 + math32.Tanh(inner))
	}
}

// SiLU applies x*sigmoid(x) in place.
func SiLU(x []float32) {
	for i, v := range x {
		x[i] = v / (1 + math32.Exp(-v))
	}
}

// Add computes dst += src elementwise (residual-add).
func Add(dst, src []float32) {
	vecf32.Add(dst, src)
}

// Mul computes dst *= src elementwise (gate ⊙ up in SwiGLU).
func Mul(dst, src []float32) {
	vecf32.Mul(dst, src)
}

// Scale multiplies every element of x by s in place.
func Scale(x []float32, s float32) {
	vecf32.Scale(x, s)
}
