package constraint

import (
	"github.com/smallmind-run/smallmind/tokenizer"
)

// jsonState is one node of the small push-down automaton GrammarMask
// runs to decide which characters are structurally legal next in a
// JSON document. It tracks only JSON's shape (objects, arrays,
// strings, and primitive literals) — schema validation (required
// keys, value types, numeric ranges) is the explicitly out-of-scope
// JSON schema validator, an external collaborator.
type jsonState int

const (
	stateValueStart  jsonState = iota // top level, or after ':' / array ','
	stateArrayStart                   // just opened '[': a value or ']' (empty array)
	stateObjectStart                  // just opened '{': a key string or '}' (empty object)
	stateObjectKey                    // after ',': a key string only
	stateColon                        // a key string just closed: expect ':'
	stateObjectNext                   // a value just closed inside an object: ',' or '}'
	stateArrayNext                    // a value just closed inside an array: ',' or ']'
	stateInString                     // inside a string literal
	statePrimitive                    // inside a bare number/true/false/null literal
	stateDone                         // top-level value is complete
)

// gstate is the automaton's full configuration: copied by value so
// Mask can probe many candidate continuations from the same base
// state without mutating it, and only Accept commits a transition.
type gstate struct {
	state       jsonState
	containers  []byte // '{' or '[' per currently-open container, innermost last
	afterString jsonState
	escaped     bool
}

// GrammarMask constrains decoding to syntactically valid JSON. It
// implements sample.ConstraintMasker by, each call, simulating every
// vocabulary token's characters against the current automaton state
// and masking out any token that would produce an illegal character
// sequence; Accept commits the chosen token's effect on the state,
// so per-accepted-token work is bounded by that one token's length.
type GrammarMask struct {
	vocab *tokenizer.Vocabulary
	st    gstate
	done  bool
}

// NewGrammarMask starts a fresh automaton expecting a top-level JSON value.
func NewGrammarMask(vocab *tokenizer.Vocabulary) *GrammarMask {
	return &GrammarMask{vocab: vocab, st: gstate{state: stateValueStart}}
}

// Complete reports whether the document generated so far is a
// complete, balanced JSON value.
func (g *GrammarMask) Complete() bool {
	return g.done
}

// Mask sets logits[id] to -Inf for every token whose string cannot
// legally follow the JSON generated so far.
func (g *GrammarMask) Mask(logits []float32) {
	for id := range logits {
		if id >= g.vocab.Size() {
			continue
		}
		if _, ok := runString(g.st, g.vocab.TokenString(id)); !ok {
			logits[id] = negInf
		}
	}
}

// Accept commits the chosen token's characters to the automaton
// state. Call once per decode step, after Mask and sampling.
func (g *GrammarMask) Accept(id int) {
	next, ok := runString(g.st, g.vocab.TokenString(id))
	if !ok {
		return
	}
	g.st = next
	g.done = next.state == stateDone
}

// runString simulates s character by character from st, returning the
// resulting state and whether every character was legal.
func runString(st gstate, s string) (gstate, bool) {
	for i := 0; i < len(s); i++ {
		next, ok := step(st, s[i])
		if !ok {
			return gstate{}, false
		}
		st = next
	}
	return st, true
}

const structuralDelims = ",}] \t\n\r"

// step advances st by one character, re-dispatching once when a bare
// primitive literal (number/true/false/null) is ended by a structural
// delimiter rather than consumed by it.
func step(st gstate, c byte) (gstate, bool) {
	if st.state == statePrimitive && indexByte(structuralDelims, c) {
		st.state = closeValue(st)
		return step(st, c)
	}

	switch st.state {
	case stateInString:
		if st.escaped {
			st.escaped = false
			return st, true
		}
		if c == '\\' {
			st.escaped = true
			return st, true
		}
		if c == '"' {
			st.state = st.afterString
			return st, true
		}
		return st, true

	case stateValueStart, stateArrayStart:
		if st.state == stateArrayStart && c == ']' {
			return popContainer(st)
		}
		return startValue(st, c)

	case stateObjectStart:
		if c == '}' {
			return popContainer(st)
		}
		if c == '"' {
			st.state = stateInString
			st.afterString = stateColon
			return st, true
		}
		return gstate{}, false

	case stateObjectKey:
		if c == '"' {
			st.state = stateInString
			st.afterString = stateColon
			return st, true
		}
		return gstate{}, false

	case stateColon:
		if c == ':' {
			st.state = stateValueStart
			return st, true
		}
		return gstate{}, false

	case stateObjectNext:
		if c == ',' {
			st.state = stateObjectKey
			return st, true
		}
		if c == '}' {
			return popContainer(st)
		}
		return gstate{}, false

	case stateArrayNext:
		if c == ',' {
			st.state = stateValueStart
			return st, true
		}
		if c == ']' {
			return popContainer(st)
		}
		return gstate{}, false

	case statePrimitive:
		return st, true

	case stateDone:
		return gstate{}, false
	}

	return gstate{}, false
}

// startValue begins a string, object, array, or bare primitive at a
// value position.
func startValue(st gstate, c byte) (gstate, bool) {
	switch c {
	case '"':
		st.state = stateInString
		st.afterString = closeValue(st)
		return st, true
	case '{':
		st.containers = append(append([]byte{}, st.containers...), '{')
		st.state = stateObjectStart
		return st, true
	case '[':
		st.containers = append(append([]byte{}, st.containers...), '[')
		st.state = stateArrayStart
		return st, true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 't', 'f', 'n':
		st.state = statePrimitive
		return st, true
	}
	return gstate{}, false
}

// closeValue computes the state to resume after the value currently
// being parsed (string, or the primitive about to start) completes,
// based on the innermost open container.
func closeValue(st gstate) jsonState {
	if len(st.containers) == 0 {
		return stateDone
	}
	switch st.containers[len(st.containers)-1] {
	case '{':
		return stateObjectNext
	default:
		return stateArrayNext
	}
}

// popContainer closes the innermost container and resumes at the
// enclosing scope's post-value state.
func popContainer(st gstate) (gstate, bool) {
	if len(st.containers) == 0 {
		return gstate{}, false
	}
	st.containers = st.containers[:len(st.containers)-1]
	st.state = closeValue(st)
	return st, true
}

func indexByte(s string, c byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return true
		}
	}
	return false
}
