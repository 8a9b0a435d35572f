// Package query holds the canonicalized query model.
package query

import "strings"

// Mode is the retrieval routing mode decided by script classification.
type Mode string

// Routing modes.
const (
	// ModeDev routes the original Devanagari text to the backends unchanged.
	ModeDev Mode = "dev"
	// ModeRoman routes the Roman→Devanagari canonicalized text.
	ModeRoman Mode = "roman"
)

// Script is the detected script of the raw query text.
type Script string

// Detected scripts.
const (
	ScriptDevanagari Script = "devanagari"
	ScriptRoman      Script = "roman"
	ScriptMixed      Script = "mixed"
)

// Source records which canonicalization step produced a token's canonical form.
type Source string

// Token sources, in precedence order.
const (
	SourceExact     Source = "exact"
	SourceRule      Source = "rule"
	SourceFuzzy     Source = "fuzzy"
	SourceUnchanged Source = "unchanged"
)

// Token is one whitespace-delimited query token with its canonical form.
type Token struct {
	Surface    string  `json:"surface"`
	Canonical  string  `json:"canonical"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
}

// Canonical is the immutable result of query canonicalization.
// For ModeDev queries Tokens is empty and Text equals the normalized original.
type Canonical struct {
	Original string  `json:"original"`
	Script   Script  `json:"script"`
	Mode     Mode    `json:"mode"`
	Text     string  `json:"canonical_text"`
	Tokens   []Token `json:"tokens,omitempty"`
}

// JoinTokens space-joins canonical token forms in original order.
func JoinTokens(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.Canonical
	}
	return strings.Join(parts, " ")
}
