package canon

import "strings"

// Rule-based Roman→Devanagari transliteration. A static ordered table of
// grapheme clusters is scanned greedily left to right, longest pattern first.
// Vowels take the independent letter at word start or after another vowel and
// the matra form after a consonant; "a" after a consonant is the inherent
// vowel and emits nothing, which also yields word-final schwa elision. A
// virama joins consecutive consonants into conjuncts.

const virama = "्"

type consonantRule struct {
	pat string
	rep string
}

type vowelRule struct {
	pat         string
	independent string
	matra       string
}

// Longest-match-first. Order within a length group is fixed; do not reorder.
var consonantTable = []consonantRule{
	{"chh", "छ"},
	{"ksh", "क्ष"},
	{"kh", "ख"},
	{"gh", "घ"},
	{"ch", "च"},
	{"jh", "झ"},
	{"th", "थ"},
	{"dh", "ध"},
	{"ph", "फ"},
	{"bh", "भ"},
	{"sh", "श"},
	{"k", "क"},
	{"g", "ग"},
	{"c", "क"},
	{"j", "ज"},
	{"t", "त"},
	{"d", "द"},
	{"n", "न"},
	{"p", "प"},
	{"b", "ब"},
	{"m", "म"},
	{"y", "य"},
	{"r", "र"},
	{"l", "ल"},
	{"v", "व"},
	{"w", "व"},
	{"s", "स"},
	{"h", "ह"},
	{"f", "फ"},
	{"z", "ज़"},
	{"q", "क"},
	{"x", "क्स"},
}

var vowelTable = []vowelRule{
	{"aa", "आ", "ा"},
	{"ai", "ऐ", "ै"},
	{"au", "औ", "ौ"},
	{"ee", "ई", "ी"},
	{"ii", "ई", "ी"},
	{"oo", "ऊ", "ू"},
	{"uu", "ऊ", "ू"},
	{"a", "अ", ""},
	{"e", "ए", "े"},
	{"i", "इ", "ि"},
	{"o", "ओ", "ो"},
	{"u", "उ", "ु"},
}

// Transliterate converts a lowercase Roman token to a Devanagari candidate.
// Returns "" when the token contains anything outside the mapped Latin
// clusters (digits, other scripts); the caller then falls back to the
// unchanged token.
func Transliterate(token string) string {
	t := strings.ToLower(token)
	var b strings.Builder
	prevConsonant := false

	for i := 0; i < len(t); {
		if v, n, ok := matchVowel(t[i:]); ok {
			if prevConsonant {
				b.WriteString(v.matra)
			} else {
				b.WriteString(v.independent)
			}
			prevConsonant = false
			i += n
			continue
		}
		if c, n, ok := matchConsonant(t[i:]); ok {
			if prevConsonant {
				b.WriteString(virama)
			}
			b.WriteString(c.rep)
			prevConsonant = true
			i += n
			continue
		}
		return ""
	}
	return b.String()
}

func matchVowel(s string) (vowelRule, int, bool) {
	for _, v := range vowelTable {
		if strings.HasPrefix(s, v.pat) {
			return v, len(v.pat), true
		}
	}
	return vowelRule{}, 0, false
}

func matchConsonant(s string) (consonantRule, int, bool) {
	for _, c := range consonantTable {
		if strings.HasPrefix(s, c.pat) {
			return c, len(c.pat), true
		}
	}
	return consonantRule{}, 0, false
}
