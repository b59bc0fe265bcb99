package sample

import "math/rand/v2"

// State is the per-session sampling state: a seeded RNG and a rolling
// window of recently generated token ids used by the penalty step.
// math/rand/v2's PCG source is used directly (not wrapped behind a
// third-party RNG) because reproducibility only requires a documented,
// stable seeded generator — stdlib already provides exactly that, and
// no corpus repo reaches for an external RNG library for this.
type State struct {
	rng    *rand.Rand
	window []int
	cap    int
}

// NewState seeds a fresh sampling state. A window of 0 disables
// penalty tracking.
func NewState(seed int64, window int) *State {
	return &State{
		rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed>>32)|1)),
		cap: window,
	}
}

// Record appends id to the rolling penalty window, evicting the oldest
// entry once the window is full.
func (s *State) Record(id int) {
	if s.cap <= 0 {
		return
	}
	s.window = append(s.window, id)
	if len(s.window) > s.cap {
		s.window = s.window[len(s.window)-s.cap:]
	}
}

// counts returns how many times each token id appears in the current
// window.
func (s *State) counts() map[int]int {
	c := make(map[int]int, len(s.window))
	for _, id := range s.window {
		c[id]++
	}
	return c
}

// Float64 draws a uniform [0,1) value from the session RNG.
func (s *State) Float64() float64 {
	return s.rng.Float64()
}
