// Package candidate holds the merged retrieval candidate model.
package candidate

// Score is a backend relevance score that may be absent. Absence is distinct
// from zero so the ranker can tell "backend did not return this article" apart
// from "backend scored it zero".
type Score struct {
	Value float64
	Valid bool
}

// Some wraps a present score.
func Some(v float64) Score { return Score{Value: v, Valid: true} }

// Chunk is the single best-scoring sub-article semantic hit for an article.
type Chunk struct {
	ID    string
	Score float64
	Text  string
}

// Metadata carries the article display and facet fields from the corpus.
type Metadata struct {
	Title            string
	Summary          string
	URL              string
	ImageURL         string
	PublishedDate    string
	PublishedTS      int64
	PrimaryCategory  string
	PartnerLabel     string
	Categories       []string
	Tags             []string
	Locations        []string
	Contributors     []string
	CategoriesNorm   []string
	TagsNorm         []string
	LocationsNorm    []string
	ContributorsNorm []string
}

// Candidate is one distinct article surviving lexical/semantic aggregation.
type Candidate struct {
	ArticleID  string
	Lexical    Score
	SemArticle Score
	BestChunk  *Chunk
	Snippet    string
	Highlight  string
	Meta       Metadata
}
