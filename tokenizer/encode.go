package tokenizer

import (
	"fmt"
	"strings"
)

// Encode tokenizes s: pre-tokenize into units via the model's regex,
// BPE-merge each unit, and map the resulting symbols to ids. Unknown
// symbols map to UNK.
func (v *Vocabulary) Encode(s string) ([]int, error) {
	units, err := v.preTokenizeUnits(s)
	if err != nil {
		return nil, err
	}

	var ids []int
	for _, unit := range units {
		for _, sym := range v.bpe(unit) {
			if id, ok := v.tokenIDs[sym]; ok {
				ids = append(ids, id)
			} else {
				ids = append(ids, v.UNK)
			}
		}
	}

	return ids, nil
}

// Decode maps ids back to their token strings and concatenates them,
// reversing the byte-level alias if this vocabulary is byte-level.
func (v *Vocabulary) Decode(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(v.TokenString(id))
	}

	if v.byteLevel {
		return decodeByteLevel(sb.String(), v.runeToByte)
	}
	return sb.String()
}

// preTokenizeUnits splits s per the model's pre-tokenization regex,
// then (for byte-level vocabularies) aliases each unit's raw bytes into
// the byte-level BPE alphabet.
func (v *Vocabulary) preTokenizeUnits(s string) ([]string, error) {
	var units []string

	m, err := v.preTokenize.FindStringMatch(s)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: pre-tokenize failed: %w", err)
	}

	for m != nil {
		unit := m.String()
		if v.byteLevel {
			unit = encodeByteLevel(unit, v.byteToRune)
		}
		units = append(units, unit)

		m, err = v.preTokenize.FindNextMatch(m)
		if err != nil {
			return nil, fmt.Errorf("tokenizer: pre-tokenize failed: %w", err)
		}
	}

	return units, nil
}

// bpe runs the merge loop over one pre-tokenized unit, starting from
// its base symbols: individual runes for classic BPE, individual
// alias-characters (already one per raw byte) for byte-level BPE.
func (v *Vocabulary) bpe(unit string) []string {
	symbols := make([]string, 0, len(unit))
	for _, r := range unit {
		symbols = append(symbols, string(r))
	}

	return applyBPE(symbols, v.ranks)
}
