// Package norm provides the text normalization used for matching: Devanagari
// cleanup for indexed Hindi text and Roman folding that collapses common
// user spelling variance ("karoonga"/"karunga", "yojna"/"yojana").
package norm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	spaceRE    = regexp.MustCompile(`\s+`)
	nonAlnumRE = regexp.MustCompile(`[^a-z0-9\s]+`)

	// Collapse repeated vowels so roman spellings converge.
	vowelRuns = []*regexp.Regexp{
		regexp.MustCompile(`a{2,}`),
		regexp.MustCompile(`i{2,}`),
		regexp.MustCompile(`u{2,}`),
		regexp.MustCompile(`e{2,}`),
		regexp.MustCompile(`o{2,}`),
	}
	vowelRepl = []string{"a", "i", "u", "e", "o"}

	yojanaRE = regexp.MustCompile(`\b(yojna|yojana|yojnaa)\b`)
)

// Roman folds a romanized string into the stable form used for gazetteer keys
// and roman-mode lexical queries.
func Roman(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	t = nonAlnumRE.ReplaceAllString(t, " ")
	t = spaceRE.ReplaceAllString(t, " ")
	t = strings.TrimSpace(t)

	for i, re := range vowelRuns {
		t = re.ReplaceAllString(t, vowelRepl[i])
	}

	// Conservative drift rules observed in query logs.
	t = strings.ReplaceAll(t, "v", "w")
	t = yojanaRE.ReplaceAllString(t, "yojana")

	return strings.TrimSpace(spaceRE.ReplaceAllString(t, " "))
}

// Devanagari normalizes Hindi text without altering meaning: NFC composition,
// zero-width character removal, whitespace collapse.
func Devanagari(s string) string {
	t := norm.NFC.String(s)
	t = strings.NewReplacer(
		"\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "",
	).Replace(t)
	t = spaceRE.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Token lowercases a single token and strips surrounding punctuation,
// keeping letters and digits of either script.
func Token(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	return strings.TrimFunc(t, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Tokenize splits on anything that is not a word character in either script
// and drops tokens shorter than two runes. Used for overlap features and
// entity detection, not for canonicalization.
func Tokenize(s string) []string {
	t := strings.ToLower(strings.TrimSpace(s))
	fields := strings.FieldsFunc(t, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
