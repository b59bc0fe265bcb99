package constraint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallmind-run/smallmind/tokenizer"
)

func wordVocab(t *testing.T) *tokenizer.Vocabulary {
	t.Helper()
	v, err := tokenizer.New(tokenizer.Config{
		Tokens: []string{"<unk>", "cat", "dog", "123", "{", "}", "\"", ":", ",", "[", "]", "true", "1"},
	})
	require.NoError(t, err)
	return v
}

func TestRegexEnforcerMasksNonMatchingTokens(t *testing.T) {
	v := wordVocab(t)
	e, err := NewRegexEnforcer(v, "(cat|dog)")
	require.NoError(t, err)

	logits := make([]float32, v.Size())
	e.Mask(logits)

	catID := indexOf(v, "cat")
	dogID := indexOf(v, "dog")
	unkID := indexOf(v, "<unk>")

	require.False(t, math.IsInf(float64(logits[catID]), -1))
	require.False(t, math.IsInf(float64(logits[dogID]), -1))
	require.True(t, math.IsInf(float64(logits[unkID]), -1))
}

func TestRegexEnforcerCompletesOnFullMatch(t *testing.T) {
	v := wordVocab(t)
	e, err := NewRegexEnforcer(v, "cat")
	require.NoError(t, err)

	require.False(t, e.Complete())
	e.Accept(indexOf(v, "cat"))
	require.True(t, e.Complete())
}

func TestRegexEnforcerRejectsInvalidPattern(t *testing.T) {
	v := wordVocab(t)
	_, err := NewRegexEnforcer(v, "(unterminated")
	require.Error(t, err)
}

func TestGrammarMaskAllowsOnlyStructurallyValidContinuations(t *testing.T) {
	v := wordVocab(t)
	g := NewGrammarMask(v)

	logits := make([]float32, v.Size())
	g.Mask(logits)

	// At the top level, only a value-starting token may come next:
	// "{", "[", "\"", "true", "1", "123" are legal; "}" "]" "," ":" are not.
	require.False(t, math.IsInf(float64(logits[indexOf(v, "{")]), -1))
	require.True(t, math.IsInf(float64(logits[indexOf(v, "}")]), -1))
	require.True(t, math.IsInf(float64(logits[indexOf(v, ",")]), -1))
}

func TestGrammarMaskAcceptTracksObjectState(t *testing.T) {
	v := wordVocab(t)
	g := NewGrammarMask(v)

	g.Accept(indexOf(v, "{"))
	require.False(t, g.Complete())

	g.Accept(indexOf(v, "}"))
	require.True(t, g.Complete())
}

func indexOf(v *tokenizer.Vocabulary, tok string) int {
	for id := 0; id < v.Size(); id++ {
		if v.TokenString(id) == tok {
			return id
		}
	}
	return -1
}
