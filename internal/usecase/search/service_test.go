package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/khoj-labs/khoj/internal/domain"
	"github.com/khoj-labs/khoj/internal/domain/candidate"
	"github.com/khoj-labs/khoj/internal/domain/facet"
	"github.com/khoj-labs/khoj/internal/domain/query"
	"github.com/khoj-labs/khoj/internal/domain/result"
)

// --- Mocks ---

type mockCanon struct{}

func (mockCanon) Canonicalize(raw string) query.Canonical {
	return query.Canonical{
		Original: raw,
		Script:   query.ScriptRoman,
		Mode:     query.ModeRoman,
		Text:     raw,
		Tokens: []query.Token{
			{Surface: raw, Canonical: raw, Confidence: 1, Source: query.SourceExact},
		},
	}
}

// romanCanon mimics the real canonicalizer on romanized input: roman mode
// with a Devanagari canonical form.
type romanCanon struct{}

func (romanCanon) Canonicalize(raw string) query.Canonical {
	return query.Canonical{
		Original: raw,
		Script:   query.ScriptRoman,
		Mode:     query.ModeRoman,
		Text:     "महिला योजना",
	}
}

type devCanon struct{}

func (devCanon) Canonicalize(raw string) query.Canonical {
	return query.Canonical{
		Original: raw,
		Script:   query.ScriptDevanagari,
		Mode:     query.ModeDev,
		Text:     "महिला योजना",
	}
}

type mockLexical struct {
	hits   []LexicalHit
	err    error
	called bool
	lastQ  LexicalQuery
}

func (m *mockLexical) Search(_ context.Context, q LexicalQuery) ([]LexicalHit, error) {
	m.called = true
	m.lastQ = q
	return m.hits, m.err
}

type mockSemantic struct {
	art    []ArticleHit
	chk    []ChunkHit
	artErr error
	chkErr error
	called bool
}

func (m *mockSemantic) SearchArticles(_ context.Context, _ []float32, _ facet.Filter, _ int) ([]ArticleHit, error) {
	m.called = true
	return m.art, m.artErr
}

func (m *mockSemantic) SearchChunks(_ context.Context, _ []float32, _ facet.Filter, _ int) ([]ChunkHit, error) {
	return m.chk, m.chkErr
}

type mockEmbedder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.called = true
	return domain.EmbeddingResult{Embedding: m.vec}, m.err
}

type mockCorpus struct {
	articles map[string]candidate.Metadata
	chunks   map[string]string
}

func (m *mockCorpus) Article(id string) (candidate.Metadata, bool) {
	meta, ok := m.articles[id]
	return meta, ok
}

func (m *mockCorpus) ChunkText(id string) (string, bool) {
	text, ok := m.chunks[id]
	return text, ok
}

type mockDetector struct {
	filter facet.Filter
}

func (m *mockDetector) DetectFilter(_ string, _ query.Mode) facet.Filter {
	return m.filter
}

type mockFeedback struct {
	queryID    int64
	queryErr   error
	lastRecord QueryRecord
	lastRanked []result.Ranked
}

func (m *mockFeedback) LogQuery(_ context.Context, rec QueryRecord) (int64, error) {
	m.lastRecord = rec
	return m.queryID, m.queryErr
}

func (m *mockFeedback) LogCandidates(_ context.Context, _ int64, ranked []result.Ranked) error {
	m.lastRanked = ranked
	return nil
}

func newTestService(lex *mockLexical, sem *mockSemantic, emb *mockEmbedder) *Service {
	corpus := &mockCorpus{
		articles: map[string]candidate.Metadata{
			"a1": {Title: "One", Summary: "summary one", PublishedTS: time.Now().Unix()},
			"a2": {Title: "Two", Summary: "summary two"},
			"a3": {Title: "Three", Summary: "summary three"},
		},
		chunks: map[string]string{"c1": "chunk text one"},
	}
	return New(mockCanon{}, lex, sem, emb, corpus, Config{})
}

// --- Tests ---

func TestSearchEmptyQuery(t *testing.T) {
	svc := newTestService(&mockLexical{}, &mockSemantic{}, &mockEmbedder{})

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := svc.Search(context.Background(), Request{Query: q})
		if !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("Search(%q) err = %v, want ErrInvalidQuery", q, err)
		}
	}
}

func TestSearchHappyPath(t *testing.T) {
	lex := &mockLexical{hits: []LexicalHit{
		{ArticleID: "a1", Score: 5.0},
		{ArticleID: "a2", Score: 2.0},
	}}
	sem := &mockSemantic{
		art: []ArticleHit{{ArticleID: "a1", Score: 0.9}},
		chk: []ChunkHit{{ChunkID: "c1", ArticleID: "a3", Score: 0.8, Text: "chunk text"}},
	}
	emb := &mockEmbedder{vec: []float32{0.1, 0.2}}
	svc := newTestService(lex, sem, emb)

	resp, err := svc.Search(context.Background(), Request{Query: "mahila yojana"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if resp.Degraded {
		t.Error("Degraded = true, want false")
	}
	if !lex.called || !sem.called || !emb.called {
		t.Error("expected all backends and the embedder to be called")
	}
	if len(resp.Results) != 3 {
		t.Fatalf("Results = %d, want 3 distinct articles", len(resp.Results))
	}
	// a1 carries both the top lexical and the article-level semantic score.
	if resp.Results[0].ArticleID != "a1" {
		t.Errorf("top result = %q, want a1", resp.Results[0].ArticleID)
	}
	for i, r := range resp.Results {
		if r.Rank != i+1 {
			t.Errorf("result %d Rank = %d, want %d", i, r.Rank, i+1)
		}
	}
}

func TestSearchLexicalTextFollowsMode(t *testing.T) {
	// Roman mode searches the romanized index fields, so the lexical leg gets
	// the folded roman query rather than the Devanagari canonical form.
	lex := &mockLexical{}
	svc := New(romanCanon{}, lex, &mockSemantic{}, &mockEmbedder{vec: []float32{0.1}}, &mockCorpus{}, Config{})

	if _, err := svc.Search(context.Background(), Request{Query: " Mahila   Yojana! "}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := lex.lastQ.Text; got != "mahila yojana" {
		t.Errorf("roman lexical text = %q, want %q", got, "mahila yojana")
	}
	if lex.lastQ.Mode != query.ModeRoman {
		t.Errorf("lexical mode = %q, want %q", lex.lastQ.Mode, query.ModeRoman)
	}

	// Dev mode passes the canonical Devanagari text to the Hindi fields as is.
	lex = &mockLexical{}
	svc = New(devCanon{}, lex, &mockSemantic{}, &mockEmbedder{vec: []float32{0.1}}, &mockCorpus{}, Config{})

	if _, err := svc.Search(context.Background(), Request{Query: "महिला योजना"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := lex.lastQ.Text; got != "महिला योजना" {
		t.Errorf("dev lexical text = %q, want the canonical text", got)
	}
}

func TestSearchDegradedOnLexicalFailure(t *testing.T) {
	lex := &mockLexical{err: errors.New("redis down")}
	sem := &mockSemantic{art: []ArticleHit{{ArticleID: "a1", Score: 0.9}}}
	svc := newTestService(lex, sem, &mockEmbedder{vec: []float32{0.1}})

	resp, err := svc.Search(context.Background(), Request{Query: "mahila"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !resp.Degraded {
		t.Error("Degraded = false, want true when one leg fails")
	}
	if len(resp.Results) != 1 || resp.Results[0].ArticleID != "a1" {
		t.Errorf("Results = %v, want the surviving semantic hit", resp.Results)
	}
}

func TestSearchDegradedOnEmbeddingFailure(t *testing.T) {
	lex := &mockLexical{hits: []LexicalHit{{ArticleID: "a2", Score: 3.0}}}
	sem := &mockSemantic{}
	emb := &mockEmbedder{err: errors.New("provider 500")}
	svc := newTestService(lex, sem, emb)

	resp, err := svc.Search(context.Background(), Request{Query: "mahila"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !resp.Degraded {
		t.Error("Degraded = false, want true when the semantic leg cannot embed")
	}
	if sem.called {
		t.Error("semantic backend called despite embedding failure")
	}
}

func TestSearchBothLegsFail(t *testing.T) {
	lex := &mockLexical{err: errors.New("redis down")}
	sem := &mockSemantic{artErr: errors.New("qdrant down")}
	svc := newTestService(lex, sem, &mockEmbedder{vec: []float32{0.1}})

	_, err := svc.Search(context.Background(), Request{Query: "mahila"})
	if !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Errorf("err = %v, want ErrRetrievalUnavailable", err)
	}
}

func TestSearchCancelledContext(t *testing.T) {
	svc := newTestService(&mockLexical{}, &mockSemantic{}, &mockEmbedder{vec: []float32{0.1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Search(ctx, Request{Query: "mahila"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSearchMergesDetectedFilter(t *testing.T) {
	lex := &mockLexical{}
	svc := newTestService(lex, &mockSemantic{}, &mockEmbedder{vec: []float32{0.1}}).
		WithEntityDetector(&mockDetector{filter: facet.Filter{Locations: []string{"जयपुर"}}})

	_, err := svc.Search(context.Background(), Request{
		Query:  "jaipur yojana",
		Filter: facet.Filter{Categories: []string{"शिक्षा"}},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	got := lex.lastQ.Filter
	if len(got.Locations) != 1 || got.Locations[0] != "जयपुर" {
		t.Errorf("Locations = %v, want the detected location merged in", got.Locations)
	}
	if len(got.Categories) != 1 || got.Categories[0] != "शिक्षा" {
		t.Errorf("Categories = %v, want the caller category kept", got.Categories)
	}
}

func TestSearchPageSize(t *testing.T) {
	lex := &mockLexical{hits: []LexicalHit{
		{ArticleID: "a1", Score: 3},
		{ArticleID: "a2", Score: 2},
		{ArticleID: "a3", Score: 1},
	}}
	svc := newTestService(lex, &mockSemantic{}, &mockEmbedder{vec: []float32{0.1}})

	resp, err := svc.Search(context.Background(), Request{Query: "mahila", PageSize: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("Results = %d, want page size 2", len(resp.Results))
	}
}

func TestSearchLogsFeedback(t *testing.T) {
	lex := &mockLexical{hits: []LexicalHit{{ArticleID: "a1", Score: 3}}}
	fb := &mockFeedback{queryID: 42}
	svc := newTestService(lex, &mockSemantic{}, &mockEmbedder{vec: []float32{0.1}}).
		WithFeedback(fb)

	resp, err := svc.Search(context.Background(), Request{Query: "mahila"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.QueryID != 42 {
		t.Errorf("QueryID = %d, want 42", resp.QueryID)
	}
	if fb.lastRecord.Raw != "mahila" || fb.lastRecord.LexN != 1 {
		t.Errorf("logged record = %+v, want raw query and leg counts", fb.lastRecord)
	}
	if len(fb.lastRanked) != 1 {
		t.Errorf("logged candidates = %d, want 1", len(fb.lastRanked))
	}
}

func TestSearchFeedbackFailureIsSilent(t *testing.T) {
	lex := &mockLexical{hits: []LexicalHit{{ArticleID: "a1", Score: 3}}}
	fb := &mockFeedback{queryErr: errors.New("disk full")}
	svc := newTestService(lex, &mockSemantic{}, &mockEmbedder{vec: []float32{0.1}}).
		WithFeedback(fb)

	resp, err := svc.Search(context.Background(), Request{Query: "mahila"})
	if err != nil {
		t.Fatalf("Search: %v, want feedback failures swallowed", err)
	}
	if resp.QueryID != 0 {
		t.Errorf("QueryID = %d, want 0 when logging failed", resp.QueryID)
	}
}
