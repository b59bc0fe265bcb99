package constraint

import (
	"regexp"
	"strings"
)

// buildPrefixPattern derives, from a user-supplied anchored regex, a
// second pattern that matches exactly when the input could still be
// extended into a full match of the original. It works by tokenizing
// the pattern's top-level concatenation into atoms (literal chars,
// escapes, character classes, groups — each with its quantifier) and
// nesting each atom's continuation inside an optional group, so that
// running out of input part-way through the pattern is never itself a
// failure; loosening each atom's own quantifier (`{n}`→`{0,n}`, `+`→`*`,
// `{n,m}`→`{0,m}`) additionally allows an atom to have been only
// partially satisfied so far.
//
// This is a textual approximation, not a proper regex-derivative
// automaton: it only reasons about the pattern's top-level sequence,
// so an alternation or nested quantified group is treated as one
// indivisible atom rather than explored internally. That is the
// documented approximation the spec allows for the regex enforcer.
func buildPrefixPattern(pattern string) string {
	core := strings.TrimPrefix(pattern, "^")
	core = strings.TrimSuffix(core, "$")

	atoms := tokenizeTopLevel(core)
	if len(atoms) == 0 {
		return "^$"
	}

	loosened := make([]string, len(atoms))
	for i, a := range atoms {
		loosened[i] = loosenQuantifier(a)
	}

	acc := loosened[len(loosened)-1]
	for i := len(loosened) - 2; i >= 0; i-- {
		acc = loosened[i] + "(?:" + acc + ")?"
	}

	return "^(?:" + acc + ")$"
}

// tokenizeTopLevel splits a regex body into top-level atoms: an escape
// (\x), a character class ([...]), a group ((...)), or a single
// literal character, each including any immediately following
// quantifier (*, +, ?, {n}, {n,}, {n,m}).
func tokenizeTopLevel(core string) []string {
	var atoms []string
	n := len(core)
	i := 0

	for i < n {
		start := i

		switch core[i] {
		case '\\':
			i += min(2, n-i)
		case '[':
			i++
			for i < n && core[i] != ']' {
				if core[i] == '\\' {
					i++
				}
				i++
			}
			if i < n {
				i++
			}
		case '(':
			depth := 1
			i++
			for i < n && depth > 0 {
				if core[i] == '\\' {
					i += 2
					continue
				}
				if core[i] == '(' {
					depth++
				} else if core[i] == ')' {
					depth--
				}
				i++
			}
		default:
			i++
		}

		qStart := i
		if i < n {
			switch core[i] {
			case '*', '+', '?':
				i++
			case '{':
				j := i
				for j < n && core[j] != '}' {
					j++
				}
				if j < n {
					i = j + 1
				}
			}
		}

		atoms = append(atoms, core[start:qStart]+core[qStart:i])
	}

	return atoms
}

var quantifierExact = regexp.MustCompile(`^(.*?)\{(\d+)\}$`)
var quantifierRange = regexp.MustCompile(`^(.*?)\{(\d+),(\d*)\}$`)
var quantifierPlus = regexp.MustCompile(`^(.*?)\+$`)

// loosenQuantifier rewrites an atom's trailing quantifier to also
// accept a shorter, not-yet-complete repetition count.
func loosenQuantifier(atom string) string {
	if m := quantifierExact.FindStringSubmatch(atom); m != nil {
		return m[1] + "{0," + m[2] + "}"
	}
	if m := quantifierRange.FindStringSubmatch(atom); m != nil {
		if m[3] == "" {
			return m[1] + "*"
		}
		return m[1] + "{0," + m[3] + "}"
	}
	if m := quantifierPlus.FindStringSubmatch(atom); m != nil {
		return m[1] + "*"
	}
	return atom
}
