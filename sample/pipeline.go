package sample

import (
	"math"
	"sort"
)

// ConstraintMasker disallows tokens at the current decode step by
// setting their logit to -Inf. Implemented by constraint.RegexEnforcer
// and constraint.GrammarMask; kept as an interface here so sample has
// no import dependency on constraint.
type ConstraintMasker interface {
	Mask(logits []float32)
}

// Sample runs the fixed-order pipeline over logits (penalties →
// constraint mask → temperature/greedy → softmax → top-k → top-p →
// min-p → multinomial draw) and returns the chosen token id. logits is
// modified in place.
func Sample(logits []float32, opts Options, st *State, mask ConstraintMasker) int {
	applyPenalties(logits, opts, st)

	if mask != nil {
		mask.Mask(logits)
	}

	if opts.Temperature == 0 {
		return argmax(logits)
	}

	for i := range logits {
		logits[i] /= opts.Temperature
	}

	softmax(logits)

	if opts.TopK > 0 {
		topK(logits, opts.TopK)
	}
	if opts.TopP > 0 && opts.TopP < 1 {
		topP(logits, opts.TopP)
	}
	if opts.MinP > 0 {
		minP(logits, opts.MinP)
	}

	return multinomial(logits, st)
}

func applyPenalties(logits []float32, opts Options, st *State) {
	if opts.RepetitionPenalty == 1 && opts.PresencePenalty == 0 && opts.FrequencyPenalty == 0 {
		return
	}

	for id, c := range st.counts() {
		if id < 0 || id >= len(logits) {
			continue
		}

		if opts.RepetitionPenalty != 1 {
			if logits[id] > 0 {
				logits[id] /= opts.RepetitionPenalty
			} else {
				logits[id] *= opts.RepetitionPenalty
			}
		}
		if opts.PresencePenalty != 0 && c >= 1 {
			logits[id] -= opts.PresencePenalty
		}
		if opts.FrequencyPenalty != 0 {
			logits[id] -= opts.FrequencyPenalty * float32(c)
		}
	}
}

func argmax(logits []float32) int {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return best
}

// softmax normalizes logits into a probability distribution in place.
// A local copy rather than kernel.Softmax: sample operates on one
// vocab-sized row at a time and has no dependency on kernel's SIMD
// dispatch, keeping the sampling pipeline independently testable.
func softmax(x []float32) {
	if len(x) == 0 {
		return
	}

	m := x[0]
	for _, v := range x[1:] {
		if v > m {
			m = v
		}
	}

	var sum float32
	for i, v := range x {
		e := float32(math.Exp(float64(v - m)))
		x[i] = e
		sum += e
	}
	if sum == 0 {
		return
	}
	for i := range x {
		x[i] /= sum
	}
}

// topK retains the k highest probabilities and zeroes the rest, then
// renormalizes.
func topK(p []float32, k int) {
	if k >= len(p) {
		return
	}

	idx := argsortDescending(p)
	for _, i := range idx[k:] {
		p[i] = 0
	}
	renormalize(p)
}

// topP retains the smallest prefix (by descending probability) whose
// cumulative mass reaches p, zeroing the rest, then renormalizes.
func topP(probs []float32, p float32) {
	idx := argsortDescending(probs)

	var cum float32
	cutoff := len(idx)
	for i, id := range idx {
		cum += probs[id]
		if cum >= p {
			cutoff = i + 1
			break
		}
	}

	for _, i := range idx[cutoff:] {
		probs[i] = 0
	}
	renormalize(probs)
}

// minP drops tokens whose probability is below minP * pMax, then
// renormalizes.
func minP(probs []float32, minP float32) {
	var pMax float32
	for _, v := range probs {
		if v > pMax {
			pMax = v
		}
	}

	threshold := minP * pMax
	for i, v := range probs {
		if v < threshold {
			probs[i] = 0
		}
	}
	renormalize(probs)
}

func renormalize(p []float32) {
	var sum float32
	for _, v := range p {
		sum += v
	}
	if sum == 0 {
		return
	}
	for i := range p {
		p[i] /= sum
	}
}

func argsortDescending(p []float32) []int {
	idx := make([]int, len(p))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return p[idx[a]] > p[idx[b]] })
	return idx
}

// multinomial draws one index from the probability distribution p
// using the session's seeded RNG.
func multinomial(p []float32, st *State) int {
	r := st.Float64()
	var cum float64
	for i, v := range p {
		cum += float64(v)
		if r < cum {
			return i
		}
	}
	return len(p) - 1
}
