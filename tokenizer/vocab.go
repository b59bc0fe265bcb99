// Package tokenizer implements byte-pair-encoding (component C8): a
// model-provided pre-tokenization regex splits input into units, each
// unit is BPE-merged against an ordered merge-rank table, and decode
// reverses the process. Both classic regex-split BPE and GPT-2-style
// byte-level BPE are supported; which mode a Vocabulary uses is
// decided once at construction from the loader's metadata, never
// guessed from the input text.
package tokenizer

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

// DefaultPreTokenizeRegex is the GPT-2 pre-tokenization pattern: it
// splits contractions, letter runs, digit runs, punctuation runs, and
// whitespace runs into separate units. A Config with a non-empty
// PreTokenizeRegex overrides it; the loaders in package model never
// read a pattern from model metadata, so every vocabulary they build
// uses this one.
const DefaultPreTokenizeRegex = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// Vocabulary is an ordered token table plus an ordered BPE merge list.
// Token ids are bijective with the byte/char sequence they decode to.
type Vocabulary struct {
	tokens   []string
	tokenIDs map[string]int
	ranks    mergeRanks

	preTokenize *regexp2.Regexp
	byteLevel   bool
	byteToRune  [256]rune
	runeToByte  map[rune]byte

	BOS, EOS, PAD, UNK int
}

// Config carries everything the loader reads out of model metadata to
// build a Vocabulary.
type Config struct {
	Tokens            []string
	Merges            []string // "left right" pairs, in priority order
	PreTokenizeRegex   string   // empty uses DefaultPreTokenizeRegex
	ByteLevel          bool
	BOS, EOS, PAD, UNK int
}

// New builds a Vocabulary from loader-supplied metadata.
func New(cfg Config) (*Vocabulary, error) {
	pattern := cfg.PreTokenizeRegex
	if pattern == "" {
		pattern = DefaultPreTokenizeRegex
	}

	re, err := regexp2.Compile(pattern, regexp2.Unicode)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: invalid pre-tokenization regex: %w", err)
	}

	v := &Vocabulary{
		tokens:      cfg.Tokens,
		tokenIDs:    make(map[string]int, len(cfg.Tokens)),
		ranks:       make(mergeRanks, len(cfg.Merges)),
		preTokenize: re,
		byteLevel:   cfg.ByteLevel,
		BOS:         cfg.BOS,
		EOS:         cfg.EOS,
		PAD:         cfg.PAD,
		UNK:         cfg.UNK,
	}

	for id, tok := range cfg.Tokens {
		v.tokenIDs[tok] = id
	}

	for rank, m := range cfg.Merges {
		var left, right string
		n, _ := fmt.Sscanf(m, "%s %s", &left, &right)
		if n != 2 {
			continue
		}
		v.ranks[pairKey{left, right}] = rank
	}

	if cfg.ByteLevel {
		v.byteToRune, v.runeToByte = bytesToUnicode()
	}

	return v, nil
}

// Size returns the vocabulary's token count.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// TokenString returns the literal token text for id, or "" if id is
// out of range.
func (v *Vocabulary) TokenString(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return ""
	}
	return v.tokens[id]
}
