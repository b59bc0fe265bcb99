package tokenizer

// pairKey identifies an adjacent symbol pair in the merge-rank table.
type pairKey struct {
	left, right string
}

// mergeRanks maps a pair to its priority (lower = merged first).
type mergeRanks map[pairKey]int

// applyBPE merges symbols according to ranks until no adjacent pair has
// a known rank. Each round finds the single lowest-rank pair present
// anywhere in the current symbol list, then merges every non-overlapping
// occurrence of that exact pair in one left-to-right scan that rebuilds
// the symbol list — an O(n) amortized pass per round, never the O(n²)
// cost of repeated in-place deletion.
func applyBPE(symbols []string, ranks mergeRanks) []string {
	for {
		bestRank := -1
		bestPair := pairKey{}

		for i := 0; i < len(symbols)-1; i++ {
			pair := pairKey{symbols[i], symbols[i+1]}
			if r, ok := ranks[pair]; ok && (bestRank == -1 || r < bestRank) {
				bestRank = r
				bestPair = pair
			}
		}

		if bestRank == -1 {
			return symbols
		}

		merged := bestPair.left + bestPair.right
		next := make([]string, 0, len(symbols))

		for i := 0; i < len(symbols); {
			if i < len(symbols)-1 && symbols[i] == bestPair.left && symbols[i+1] == bestPair.right {
				next = append(next, merged)
				i += 2
			} else {
				next = append(next, symbols[i])
				i++
			}
		}

		symbols = next
	}
}
