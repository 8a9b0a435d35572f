package search

import (
	"strings"
	"testing"

	"github.com/khoj-labs/khoj/internal/domain/candidate"
)

func ids(cands []candidate.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ArticleID
	}
	return out
}

func aggregateService(corpus *mockCorpus, cfg Config) *Service {
	return New(mockCanon{}, &mockLexical{}, &mockSemantic{}, &mockEmbedder{}, corpus, cfg)
}

func TestAggregateMergesByArticle(t *testing.T) {
	svc := aggregateService(&mockCorpus{articles: map[string]candidate.Metadata{
		"a1": {Title: "One"},
	}}, Config{})

	out := svc.aggregate(
		[]LexicalHit{{ArticleID: "a1", Score: 3}},
		[]ArticleHit{{ArticleID: "a1", Score: 0.9}},
		[]ChunkHit{{ChunkID: "c1", ArticleID: "a1", Score: 0.8, Text: "chunk"}},
	)

	if len(out) != 1 {
		t.Fatalf("candidates = %d, want 1 merged", len(out))
	}
	c := out[0]
	if !c.Lexical.Valid || c.Lexical.Value != 3 {
		t.Errorf("Lexical = %+v, want 3", c.Lexical)
	}
	if !c.SemArticle.Valid || c.SemArticle.Value != 0.9 {
		t.Errorf("SemArticle = %+v, want 0.9", c.SemArticle)
	}
	if c.BestChunk == nil || c.BestChunk.ID != "c1" {
		t.Errorf("BestChunk = %+v, want c1", c.BestChunk)
	}
	if c.Meta.Title != "One" {
		t.Errorf("Meta.Title = %q, want corpus metadata attached", c.Meta.Title)
	}
}

func TestAggregateDuplicateHitsKeepMax(t *testing.T) {
	svc := aggregateService(&mockCorpus{}, Config{})

	out := svc.aggregate(
		[]LexicalHit{
			{ArticleID: "a1", Score: 2},
			{ArticleID: "a1", Score: 5},
			{ArticleID: "a1", Score: 1},
		},
		nil, nil,
	)

	if len(out) != 1 || out[0].Lexical.Value != 5 {
		t.Errorf("out = %+v, want single candidate with max lexical 5", out)
	}
}

func TestAggregateBestChunkPerArticle(t *testing.T) {
	svc := aggregateService(&mockCorpus{}, Config{})

	out := svc.aggregate(nil, nil, []ChunkHit{
		{ChunkID: "c1", ArticleID: "a1", Score: 0.5, Text: "first"},
		{ChunkID: "c2", ArticleID: "a1", Score: 0.9, Text: "best"},
		{ChunkID: "c3", ArticleID: "a1", Score: 0.7, Text: "third"},
	})

	if len(out) != 1 {
		t.Fatalf("candidates = %d, want 1", len(out))
	}
	if out[0].BestChunk.ID != "c2" || out[0].BestChunk.Score != 0.9 {
		t.Errorf("BestChunk = %+v, want c2 at 0.9", out[0].BestChunk)
	}
}

func TestAggregateAbsentScoresStayInvalid(t *testing.T) {
	svc := aggregateService(&mockCorpus{}, Config{})

	out := svc.aggregate([]LexicalHit{{ArticleID: "a1", Score: 0}}, nil, nil)

	c := out[0]
	if !c.Lexical.Valid {
		t.Error("Lexical.Valid = false, want true for a returned zero score")
	}
	if c.SemArticle.Valid {
		t.Error("SemArticle.Valid = true, want false for an absent source")
	}
	if c.BestChunk != nil {
		t.Error("BestChunk set, want nil for an absent source")
	}
}

func TestAggregateSnippetPrefersChunkText(t *testing.T) {
	svc := aggregateService(&mockCorpus{
		articles: map[string]candidate.Metadata{"a1": {Summary: "article summary"}},
	}, Config{})

	out := svc.aggregate(
		[]LexicalHit{{ArticleID: "a1", Score: 1, Highlight: "<b>hit</b>"}},
		nil,
		[]ChunkHit{{ChunkID: "c1", ArticleID: "a1", Score: 0.9, Text: "  chunk   body  "}},
	)

	if out[0].Snippet != "chunk body" {
		t.Errorf("Snippet = %q, want whitespace-collapsed chunk text", out[0].Snippet)
	}
}

func TestAggregateSnippetFallbacks(t *testing.T) {
	corpus := &mockCorpus{
		articles: map[string]candidate.Metadata{"a1": {Summary: "article summary"}},
		chunks:   map[string]string{"c1": "stored chunk text"},
	}
	svc := aggregateService(corpus, Config{})

	// Chunk hit without inline text resolves through the corpus.
	out := svc.aggregate(nil, nil, []ChunkHit{{ChunkID: "c1", ArticleID: "a1", Score: 0.9}})
	if out[0].Snippet != "stored chunk text" {
		t.Errorf("Snippet = %q, want corpus chunk text", out[0].Snippet)
	}

	// No chunk at all: the lexical highlight wins over the summary.
	out = svc.aggregate([]LexicalHit{{ArticleID: "a1", Score: 1, Highlight: "highlighted"}}, nil, nil)
	if out[0].Snippet != "highlighted" {
		t.Errorf("Snippet = %q, want the lexical highlight", out[0].Snippet)
	}

	// Nothing else: truncated summary.
	out = svc.aggregate(nil, []ArticleHit{{ArticleID: "a1", Score: 0.5}}, nil)
	if out[0].Snippet != "article summary" {
		t.Errorf("Snippet = %q, want the article summary", out[0].Snippet)
	}
}

func TestAggregateSnippetTruncated(t *testing.T) {
	svc := aggregateService(&mockCorpus{}, Config{})

	long := strings.Repeat("प", 1000)
	out := svc.aggregate(nil, nil, []ChunkHit{{ChunkID: "c1", ArticleID: "a1", Score: 0.9, Text: long}})

	if got := len([]rune(out[0].Snippet)); got != snippetMaxLen {
		t.Errorf("snippet runes = %d, want %d", got, snippetMaxLen)
	}
}

func TestAggregateCapsCandidates(t *testing.T) {
	svc := aggregateService(&mockCorpus{}, Config{CandidateCap: 3})

	hits := make([]LexicalHit, 10)
	for i := range hits {
		hits[i] = LexicalHit{ArticleID: string(rune('a' + i)), Score: float64(i)}
	}
	out := svc.aggregate(hits, nil, nil)

	if len(out) != 3 {
		t.Fatalf("candidates = %d, want cap of 3", len(out))
	}
	// Strongest lexical scores survive the cap.
	for i, want := range []string{"j", "i", "h"} {
		if out[i].ArticleID != want {
			t.Errorf("position %d = %q, want %q", i, out[i].ArticleID, want)
		}
	}
}

func TestAggregateCapKeepsSemanticOnlyCandidates(t *testing.T) {
	svc := aggregateService(&mockCorpus{}, Config{CandidateCap: 3})

	// BM25-scale lexical scores must not crowd a strong cosine-scale
	// semantic hit out of the capped set.
	lex := []LexicalHit{
		{ArticleID: "a", Score: 1.0},
		{ArticleID: "b", Score: 2.0},
		{ArticleID: "c", Score: 3.0},
		{ArticleID: "d", Score: 4.0},
		{ArticleID: "e", Score: 5.0},
	}
	art := []ArticleHit{{ArticleID: "s", Score: 0.9}}

	out := svc.aggregate(lex, art, nil)
	if len(out) != 3 {
		t.Fatalf("candidates = %d, want cap of 3", len(out))
	}
	found := false
	for _, c := range out {
		if c.ArticleID == "s" {
			found = true
		}
	}
	if !found {
		t.Errorf("semantic-only candidate evicted by the cap, got %v", ids(out))
	}
}
