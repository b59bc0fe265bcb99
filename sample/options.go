// Package sample implements the sampling pipeline (component C9):
// penalties, constraint masking, temperature, softmax, top-k, top-p,
// min-p, and a final seeded multinomial draw, applied in that fixed
// order every call.
package sample

// Options is a per-request sampling configuration snapshot.
type Options struct {
	MaxNewTokens int

	Temperature float32
	TopK        int
	TopP        float32
	MinP        float32

	RepetitionPenalty float32 // 1 disables
	PresencePenalty   float32 // 0 disables
	FrequencyPenalty  float32 // 0 disables
	PenaltyWindow     int

	Seed int64

	StopTokenIDs []int
	StopStrings  []string
}

// DefaultOptions returns a neutral configuration: no penalties, greedy
// decoding, no stop conditions beyond MaxNewTokens.
func DefaultOptions() Options {
	return Options{
		MaxNewTokens:      256,
		Temperature:       0,
		TopK:              0,
		TopP:              1,
		MinP:              0,
		RepetitionPenalty: 1,
		PresencePenalty:   0,
		FrequencyPenalty:  0,
		PenaltyWindow:     64,
	}
}
