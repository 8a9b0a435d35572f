// Package canon canonicalizes queries: script classification and token-level
// Roman→Devanagari conversion with per-token confidence. Pure and
// deterministic given a fixed gazetteer/vocabulary snapshot; safe to run
// concurrently across requests without coordination.
package canon

import (
	"strings"

	"github.com/khoj-labs/khoj/internal/domain/query"
	"github.com/khoj-labs/khoj/internal/gazetteer"
	"github.com/khoj-labs/khoj/internal/norm"
)

// Token confidence levels per canonicalization source.
const (
	ConfidenceExact     = 1.0
	ConfidenceFuzzy     = 0.85
	ConfidenceRule      = 0.7
	ConfidenceUnchanged = 0.0
)

// MixedPolicy decides how queries with both scripts are routed.
type MixedPolicy string

// Mixed-script policies.
const (
	// MixedAsRoman canonicalizes mixed queries token by token (default).
	MixedAsRoman MixedPolicy = "roman"
	// MixedAsDev passes mixed queries through like pure Devanagari.
	MixedAsDev MixedPolicy = "dev"
)

// Config holds canonicalizer tuning. Thresholds are empirical defaults, not
// invariants; deployments may override them.
type Config struct {
	MixedPolicy MixedPolicy
	// Fuzzy correction accepts a unique best match within MaxDistShort edits
	// for candidates up to ShortLen runes, MaxDistLong above.
	ShortLen     int
	MaxDistShort int
	MaxDistLong  int
}

func (c *Config) applyDefaults() {
	if c.MixedPolicy == "" {
		c.MixedPolicy = MixedAsRoman
	}
	if c.ShortLen <= 0 {
		c.ShortLen = 5
	}
	if c.MaxDistShort <= 0 {
		c.MaxDistShort = 1
	}
	if c.MaxDistLong <= 0 {
		c.MaxDistLong = 2
	}
}

// Service canonicalizes queries against an immutable gazetteer and vocabulary.
type Service struct {
	gaz   *gazetteer.Gazetteer
	vocab *Vocabulary
	cfg   Config
}

// New creates a canonicalizer.
func New(gaz *gazetteer.Gazetteer, vocab *Vocabulary, cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{gaz: gaz, vocab: vocab, cfg: cfg}
}

// Canonicalize classifies the raw query and, for roman/mixed text, converts
// it token by token. Devanagari queries pass through untouched apart from
// Unicode cleanup. Never fails: worst case every token is kept unchanged with
// zero confidence.
func (s *Service) Canonicalize(raw string) query.Canonical {
	script := Classify(raw)

	passthrough := script == query.ScriptDevanagari ||
		(script == query.ScriptMixed && s.cfg.MixedPolicy == MixedAsDev)
	if passthrough {
		return query.Canonical{
			Original: raw,
			Script:   script,
			Mode:     query.ModeDev,
			Text:     norm.Devanagari(raw),
		}
	}

	fields := strings.Fields(raw)
	tokens := make([]query.Token, 0, len(fields))
	for _, surface := range fields {
		tokens = append(tokens, s.canonicalizeToken(surface))
	}

	return query.Canonical{
		Original: raw,
		Script:   script,
		Mode:     query.ModeRoman,
		Text:     query.JoinTokens(tokens),
		Tokens:   tokens,
	}
}

// canonicalizeToken applies the exact → rule → fuzzy → unchanged precedence.
// The ordering is the contract: it determines which signal downstream
// consumers and feedback logs can rely on.
func (s *Service) canonicalizeToken(surface string) query.Token {
	stripped := norm.Token(surface)

	// Step 1: exact gazetteer match.
	if stripped != "" {
		if e, ok := s.gaz.LookupRoman(stripped); ok {
			return query.Token{
				Surface:    surface,
				Canonical:  e.Surface,
				Confidence: ConfidenceExact,
				Source:     query.SourceExact,
			}
		}
	}

	// Step 2: rule-based transliteration.
	ruled := Transliterate(stripped)
	if ruled == "" {
		return query.Token{
			Surface:    surface,
			Canonical:  surface,
			Confidence: ConfidenceUnchanged,
			Source:     query.SourceUnchanged,
		}
	}

	// Step 3: fuzzy correction against the known vocabulary, accepted only on
	// a unique best match within the length-dependent threshold.
	maxDist := s.cfg.MaxDistShort
	if len([]rune(ruled)) > s.cfg.ShortLen {
		maxDist = s.cfg.MaxDistLong
	}
	if best, d1, d2 := s.vocab.Closest(ruled); best != "" && d1 <= maxDist && d1 < d2 {
		return query.Token{
			Surface:    surface,
			Canonical:  best,
			Confidence: ConfidenceFuzzy,
			Source:     query.SourceFuzzy,
		}
	}

	return query.Token{
		Surface:    surface,
		Canonical:  ruled,
		Confidence: ConfidenceRule,
		Source:     query.SourceRule,
	}
}
