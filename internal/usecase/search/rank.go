package search

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/khoj-labs/khoj/internal/domain/candidate"
	"github.com/khoj-labs/khoj/internal/domain/facet"
	"github.com/khoj-labs/khoj/internal/domain/result"
)

// Weights configures the linear fusion formula. These are tuned deployment
// defaults, not invariants.
type Weights struct {
	Lex        float64 `yaml:"w_lex"`
	SemArticle float64 `yaml:"w_sem_article"`
	SemChunk   float64 `yaml:"w_sem_chunk"`
	// FacetBoost is the flat bonus for a caller-filter facet match.
	FacetBoost float64 `yaml:"facet_boost"`
	// RecencyMax bounds the recency nudge; it must stay small enough to only
	// break near-ties, never dominate relevance.
	RecencyMax          float64 `yaml:"recency_max"`
	RecencyHalfLifeDays float64 `yaml:"recency_half_life_days"`
}

// DefaultWeights returns the fusion defaults.
func DefaultWeights() Weights {
	return Weights{
		Lex:                 0.5,
		SemArticle:          0.3,
		SemChunk:            0.2,
		FacetBoost:          0.05,
		RecencyMax:          0.05,
		RecencyHalfLifeDays: 365,
	}
}

// rank computes feature vectors and the fused score for every candidate and
// returns the deterministic total order. The same formula runs in degraded
// mode; a missing source only zeroes its terms.
func rank(cands []candidate.Candidate, f facet.Filter, w Weights, now time.Time) []result.Ranked {
	lexMin, lexMax := lexRange(cands)

	ranked := make([]result.Ranked, 0, len(cands))
	for _, c := range cands {
		feat := extractFeatures(c, f, w, lexMin, lexMax, now)

		contribs := []result.Contribution{
			{Feature: result.FeatureLexical, Value: w.Lex * feat.LexNorm},
			{Feature: result.FeatureSemArticle, Value: w.SemArticle * feat.SemArticle},
			{Feature: result.FeatureSemChunk, Value: w.SemChunk * feat.SemChunk},
			{Feature: result.FeatureFacetBoost, Value: feat.FacetBoost},
			{Feature: result.FeatureRecency, Value: feat.Recency},
		}

		var score float64
		explanation := make([]result.Contribution, 0, len(contribs))
		for _, c := range contribs {
			score += c.Value
			if c.Value != 0 {
				explanation = append(explanation, c)
			}
		}
		sort.SliceStable(explanation, func(i, j int) bool {
			return math.Abs(explanation[i].Value) > math.Abs(explanation[j].Value)
		})

		ranked = append(ranked, result.Ranked{
			ArticleID:   c.ArticleID,
			Score:       score,
			Snippet:     c.Snippet,
			Meta:        c.Meta,
			Features:    feat,
			Explanation: explanation,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Features.SemChunk != ranked[j].Features.SemChunk {
			return ranked[i].Features.SemChunk > ranked[j].Features.SemChunk
		}
		return ranked[i].ArticleID < ranked[j].ArticleID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func extractFeatures(
	c candidate.Candidate, f facet.Filter, w Weights,
	lexMin, lexMax float64, now time.Time,
) result.Features {
	feat := result.Features{
		SrcLexical:    c.Lexical.Valid,
		SrcSemArticle: c.SemArticle.Valid,
		SrcSemChunk:   c.BestChunk != nil,
	}

	if c.Lexical.Valid {
		feat.LexicalRaw = c.Lexical.Value
		feat.LexNorm = minMax(c.Lexical.Value, lexMin, lexMax)
	}
	if c.SemArticle.Valid {
		feat.SemArticleRaw = c.SemArticle.Value
		feat.SemArticle = rescaleCosine(c.SemArticle.Value)
	}
	if c.BestChunk != nil {
		feat.SemChunkRaw = c.BestChunk.Score
		feat.SemChunk = rescaleCosine(c.BestChunk.Score)
		feat.BestChunkID = c.BestChunk.ID
	}
	if facetMatches(f, c.Meta) {
		feat.FacetBoost = w.FacetBoost
	}
	feat.Recency = recency(c.Meta.PublishedTS, now, w)

	return feat
}

// lexRange finds the min-max bounds over present lexical scores in this
// request's candidate set.
func lexRange(cands []candidate.Candidate) (lo, hi float64) {
	first := true
	for _, c := range cands {
		if !c.Lexical.Valid {
			continue
		}
		if first || c.Lexical.Value < lo {
			lo = c.Lexical.Value
		}
		if first || c.Lexical.Value > hi {
			hi = c.Lexical.Value
		}
		first = false
	}
	return lo, hi
}

func minMax(v, lo, hi float64) float64 {
	if hi-lo < 1e-9 {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// rescaleCosine maps cosine similarity from [-1,1] to [0,1].
func rescaleCosine(x float64) float64 {
	return (x + 1) / 2
}

// recency decays exponentially with article age, bounded by RecencyMax.
// Missing publish timestamps contribute nothing.
func recency(publishedTS int64, now time.Time, w Weights) float64 {
	if publishedTS <= 0 || w.RecencyMax <= 0 || w.RecencyHalfLifeDays <= 0 {
		return 0
	}
	ageDays := now.Sub(time.Unix(publishedTS, 0)).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return w.RecencyMax * math.Exp2(-ageDays/w.RecencyHalfLifeDays)
}

// facetMatches reports whether any caller-supplied facet value occurs in the
// candidate's normalized metadata.
func facetMatches(f facet.Filter, m candidate.Metadata) bool {
	return overlaps(f.Locations, m.LocationsNorm) ||
		overlaps(f.Categories, m.CategoriesNorm) ||
		overlaps(f.Tags, m.TagsNorm) ||
		overlaps(f.Contributors, m.ContributorsNorm)
}

func overlaps(want, have []string) bool {
	if len(want) == 0 || len(have) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, v := range have {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	for _, v := range want {
		if _, ok := set[strings.ToLower(strings.TrimSpace(v))]; ok {
			return true
		}
	}
	return false
}
