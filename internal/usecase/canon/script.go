package canon

import (
	"unicode"

	"github.com/khoj-labs/khoj/internal/domain/query"
)

// Classify labels raw query text by script. Only letter code points count:
// digits, punctuation and whitespace are ignored. A text is devanagari when at
// least half of its letters are in the Devanagari block, roman when at least
// half are Latin and no Devanagari letter occurs at all, mixed otherwise.
// Text with no letters classifies as roman; the canonicalizer passes such
// tokens through unchanged.
func Classify(raw string) query.Script {
	var dev, latin, letters int
	for _, r := range raw {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case isDevanagari(r):
			dev++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}

	if letters == 0 {
		return query.ScriptRoman
	}
	if float64(dev) >= 0.5*float64(letters) {
		return query.ScriptDevanagari
	}
	if float64(latin) >= 0.5*float64(letters) && dev == 0 {
		return query.ScriptRoman
	}
	return query.ScriptMixed
}

func isDevanagari(r rune) bool {
	return r >= 0x0900 && r <= 0x097F
}
