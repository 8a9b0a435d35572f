package canon

import (
	"sort"

	xnorm "golang.org/x/text/unicode/norm"
)

// maxFuzzyDistance bounds length-based pruning of vocabulary candidates.
const maxFuzzyDistance = 2

// Vocabulary is the known-token set used for fuzzy correction of rule-based
// transliteration candidates: corpus token frequencies plus gazetteer
// canonical surfaces. Immutable after construction.
type Vocabulary struct {
	byLen map[int][]string
	size  int
}

// NewVocabulary builds a vocabulary from token frequencies and extra surfaces.
// Tokens are NFC-composed and bucketed by rune length so lookup only scans
// candidates within edit-distance reach.
func NewVocabulary(freq map[string]int, extra []string) *Vocabulary {
	seen := make(map[string]struct{}, len(freq)+len(extra))
	for tok := range freq {
		seen[xnorm.NFC.String(tok)] = struct{}{}
	}
	for _, tok := range extra {
		if tok != "" {
			seen[xnorm.NFC.String(tok)] = struct{}{}
		}
	}

	v := &Vocabulary{byLen: make(map[int][]string), size: len(seen)}
	for tok := range seen {
		n := len([]rune(tok))
		v.byLen[n] = append(v.byLen[n], tok)
	}
	// Deterministic scan order regardless of map iteration.
	for n := range v.byLen {
		sort.Strings(v.byLen[n])
	}
	return v
}

// Size returns the number of distinct vocabulary tokens.
func (v *Vocabulary) Size() int { return v.size }

// Closest returns the vocabulary token nearest to cand by rune-level edit
// distance, together with its distance and the distance of the second-closest
// distinct token. When the vocabulary is empty both distances are large.
func (v *Vocabulary) Closest(cand string) (best string, bestDist, secondDist int) {
	cr := []rune(xnorm.NFC.String(cand))
	bestDist, secondDist = 1<<30, 1<<30

	for n := len(cr) - maxFuzzyDistance; n <= len(cr)+maxFuzzyDistance; n++ {
		for _, tok := range v.byLen[n] {
			d := editDistance(cr, []rune(tok))
			switch {
			case d < bestDist:
				secondDist = bestDist
				bestDist = d
				best = tok
			case d < secondDist:
				secondDist = d
			}
		}
	}
	return best, bestDist, secondDist
}

// editDistance is the Levenshtein distance over rune sequences. Devanagari
// combining marks (matras, virama) count as units, which approximates
// akshara-level distance closely enough for single-substitution correction.
func editDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
