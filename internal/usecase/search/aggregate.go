package search

import (
	"sort"
	"strings"

	"github.com/khoj-labs/khoj/internal/domain/candidate"
)

// snippetMaxLen bounds chunk-derived snippets.
const snippetMaxLen = 420

// aggregate joins lexical and semantic hits by article identity. Duplicate
// hits within a source keep their max score; chunk hits keep only the single
// best-scoring chunk per article. The output is capped to the strongest
// candidates by raw score sum before feature extraction.
func (s *Service) aggregate(lex []LexicalHit, art []ArticleHit, chk []ChunkHit) []candidate.Candidate {
	merged := make(map[string]*candidate.Candidate)

	get := func(id string) *candidate.Candidate {
		if c, ok := merged[id]; ok {
			return c
		}
		c := &candidate.Candidate{ArticleID: id}
		merged[id] = c
		return c
	}

	for _, h := range lex {
		c := get(h.ArticleID)
		if !c.Lexical.Valid || h.Score > c.Lexical.Value {
			c.Lexical = candidate.Some(h.Score)
		}
		if c.Highlight == "" {
			c.Highlight = h.Highlight
		}
	}

	for _, h := range art {
		c := get(h.ArticleID)
		if !c.SemArticle.Valid || h.Score > c.SemArticle.Value {
			c.SemArticle = candidate.Some(h.Score)
		}
	}

	for _, h := range chk {
		c := get(h.ArticleID)
		if c.BestChunk == nil || h.Score > c.BestChunk.Score {
			c.BestChunk = &candidate.Chunk{ID: h.ChunkID, Score: h.Score, Text: h.Text}
		}
	}

	out := make([]candidate.Candidate, 0, len(merged))
	for _, c := range merged {
		if meta, ok := s.corpus.Article(c.ArticleID); ok {
			c.Meta = meta
		}
		c.Snippet = s.chooseSnippet(c)
		out = append(out, *c)
	}

	// Cap on the ranker's per-source scales; summing raw BM25 and cosine
	// scores would let the lexical leg crowd out semantic-only candidates.
	// Article id breaks ties so capping is deterministic.
	lexMin, lexMax := lexRange(out)
	sort.Slice(out, func(i, j int) bool {
		si, sj := capScore(out[i], lexMin, lexMax), capScore(out[j], lexMin, lexMax)
		if si != sj {
			return si > sj
		}
		return out[i].ArticleID < out[j].ArticleID
	})
	if len(out) > s.cfg.CandidateCap {
		out = out[:s.cfg.CandidateCap]
	}
	return out
}

func capScore(c candidate.Candidate, lexMin, lexMax float64) float64 {
	var sum float64
	if c.Lexical.Valid {
		sum += minMax(c.Lexical.Value, lexMin, lexMax)
	}
	if c.SemArticle.Valid {
		sum += rescaleCosine(c.SemArticle.Value)
	}
	if c.BestChunk != nil {
		sum += rescaleCosine(c.BestChunk.Score)
	}
	return sum
}

// chooseSnippet prefers the best chunk's text, then the lexical engine's own
// highlight, then a truncated article summary.
func (s *Service) chooseSnippet(c *candidate.Candidate) string {
	if c.BestChunk != nil {
		text := c.BestChunk.Text
		if text == "" {
			text, _ = s.corpus.ChunkText(c.BestChunk.ID)
		}
		if snip := collapse(text); snip != "" {
			return truncate(snip, snippetMaxLen)
		}
	}
	if c.Highlight != "" {
		return truncate(collapse(c.Highlight), snippetMaxLen)
	}
	return truncate(collapse(c.Meta.Summary), snippetMaxLen)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
