// Package constraint implements token-level constrained decoding
// (component C10): a regex enforcer that only allows continuations
// matching a user pattern, and a grammar/JSON vocabulary-bitmask
// enforcer for structured output. Both implement sample.ConstraintMasker.
package constraint

import (
	"math"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/smallmind-run/smallmind/tokenizer"
)

var negInf = float32(math.Inf(-1))

// matchTimeout bounds a single regex match attempt so one pathological
// token candidate can never stall a decode step. A timeout is treated
// as a non-match, never as a crash.
const matchTimeout = 1 * time.Second

// RegexEnforcer disallows any next token that cannot extend the
// generated text toward a full match of pattern. It tracks the
// decoded text generated so far and, per call, tests every candidate
// token string against a derived prefix-feasibility pattern.
type RegexEnforcer struct {
	vocab     *tokenizer.Vocabulary
	complete  *regexp2.Regexp
	prefix    *regexp2.Regexp
	generated strings.Builder
	done      bool
}

// NewRegexEnforcer compiles pattern (a regexp2, .NET-style regex,
// optionally anchored with ^/$) against vocab's token strings.
func NewRegexEnforcer(vocab *tokenizer.Vocabulary, pattern string) (*RegexEnforcer, error) {
	full := pattern
	if !strings.HasPrefix(full, "^") {
		full = "^" + full
	}
	if !strings.HasSuffix(full, "$") {
		full = full + "$"
	}

	completeRe, err := regexp2.Compile(full, regexp2.None)
	if err != nil {
		return nil, invalidPatternf("%v", err)
	}
	completeRe.MatchTimeout = matchTimeout

	prefixRe, err := regexp2.Compile(buildPrefixPattern(full), regexp2.None)
	if err != nil {
		return nil, invalidPatternf("%v", err)
	}
	prefixRe.MatchTimeout = matchTimeout

	return &RegexEnforcer{vocab: vocab, complete: completeRe, prefix: prefixRe}, nil
}

// Complete reports whether the text generated so far is a full match
// of the pattern, signaling to the generation loop that this
// constraint is satisfied and decoding may stop.
func (e *RegexEnforcer) Complete() bool {
	return e.done
}

// Accept records a chosen token id, extending the tracked generated
// text. Call once per decode step, after Mask and sampling.
func (e *RegexEnforcer) Accept(id int) {
	e.generated.WriteString(e.vocab.TokenString(id))
	ok, err := e.complete.MatchString(e.generated.String())
	e.done = err == nil && ok
}

// Mask sets logits[id] to -Inf for every token id whose string, when
// appended to the text generated so far, cannot possibly be extended
// into a full match of the pattern. A regex match that times out is
// treated conservatively as infeasible.
func (e *RegexEnforcer) Mask(logits []float32) {
	prefix := e.generated.String()

	for id := range logits {
		if id >= e.vocab.Size() {
			continue
		}

		candidate := prefix + e.vocab.TokenString(id)
		ok, err := e.prefix.MatchString(candidate)
		if err != nil || !ok {
			logits[id] = negInf
		}
	}
}
