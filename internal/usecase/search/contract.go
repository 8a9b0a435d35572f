package search

import (
	"context"

	"github.com/khoj-labs/khoj/internal/domain/candidate"
	"github.com/khoj-labs/khoj/internal/domain/facet"
	"github.com/khoj-labs/khoj/internal/domain/query"
	"github.com/khoj-labs/khoj/internal/domain/result"
)

// LexicalQuery is the outbound lexical-search call.
type LexicalQuery struct {
	Text     string
	Mode     query.Mode
	Filter   facet.Filter
	PageSize int
}

// LexicalHit is one article-level lexical match.
type LexicalHit struct {
	ArticleID string
	Score     float64
	Highlight string
}

// ArticleHit is one article-level semantic match (cosine similarity).
type ArticleHit struct {
	ArticleID string
	Score     float64
}

// ChunkHit is one chunk-level semantic match with its parent article.
type ChunkHit struct {
	ChunkID   string
	ArticleID string
	Score     float64
	Text      string
}

// LexicalBackend is the token-match search engine, consumed as opaque scoring.
type LexicalBackend interface {
	Search(ctx context.Context, q LexicalQuery) ([]LexicalHit, error)
}

// SemanticBackend is the dense-vector engine, queried at two granularities.
type SemanticBackend interface {
	SearchArticles(ctx context.Context, vector []float32, f facet.Filter, topK int) ([]ArticleHit, error)
	SearchChunks(ctx context.Context, vector []float32, f facet.Filter, topK int) ([]ChunkHit, error)
}

// Canonicalizer converts a raw query into its canonical form.
type Canonicalizer interface {
	Canonicalize(raw string) query.Canonical
}

// EntityDetector scans queries for known entities and derives facet filters.
type EntityDetector interface {
	DetectFilter(queryUsed string, mode query.Mode) facet.Filter
}

// CorpusReader serves article metadata and chunk text for aggregation.
type CorpusReader interface {
	Article(id string) (candidate.Metadata, bool)
	ChunkText(id string) (string, bool)
}

// QueryRecord is one search request as written to the feedback log.
type QueryRecord struct {
	Raw       string
	Mode      query.Mode
	Used      string
	Canonical query.Canonical
	Filter    facet.Filter
	Degraded  bool
	LexN      int
	SemArtN   int
	SemChunkN int
}

// FeedbackLogger persists searches and their ranked candidates for labeling.
type FeedbackLogger interface {
	LogQuery(ctx context.Context, rec QueryRecord) (int64, error)
	LogCandidates(ctx context.Context, queryID int64, ranked []result.Ranked) error
}
