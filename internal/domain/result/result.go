// Package result holds the ranked, explainable search output model.
package result

import "github.com/khoj-labs/khoj/internal/domain/candidate"

// Feature names used in explanations and logs.
const (
	FeatureLexical    = "lexical"
	FeatureSemArticle = "sem_article"
	FeatureSemChunk   = "sem_chunk"
	FeatureFacetBoost = "facet_boost"
	FeatureRecency    = "recency"
)

// Features is the per-candidate feature vector backing the fused score.
// Normalized fields are on comparable [0,1] scales; raw fields keep backend
// native scales for logging.
type Features struct {
	LexNorm       float64 `json:"lex_norm"`
	SemArticle    float64 `json:"sem_article"`
	SemChunk      float64 `json:"sem_chunk"`
	FacetBoost    float64 `json:"facet_boost"`
	Recency       float64 `json:"recency"`
	LexicalRaw    float64 `json:"lexical_raw"`
	SemArticleRaw float64 `json:"sem_article_raw"`
	SemChunkRaw   float64 `json:"sem_chunk_raw"`
	BestChunkID   string  `json:"best_chunk_id,omitempty"`
	SrcLexical    bool    `json:"src_lexical"`
	SrcSemArticle bool    `json:"src_sem_article"`
	SrcSemChunk   bool    `json:"src_sem_chunk"`
}

// Contribution is one weighted term of the fused score.
type Contribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// Ranked is one entry of the final total order over candidates.
type Ranked struct {
	Rank        int
	ArticleID   string
	Score       float64
	Snippet     string
	Meta        candidate.Metadata
	Features    Features
	Explanation []Contribution
}
