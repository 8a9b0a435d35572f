// Package corpus serves the canonical article corpus metadata loaded once at
// process startup from parquet exports: article display/facet fields, chunk
// text for snippets, the token-frequency vocabulary and the gazetteer rows.
// Immutable after Load, safe for unbounded concurrent readers.
package corpus

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khoj-labs/khoj/internal/domain/candidate"
	"github.com/khoj-labs/khoj/internal/gazetteer"
	"github.com/khoj-labs/khoj/internal/norm"
)

// Config holds corpus file locations and vocabulary settings.
type Config struct {
	ArticlesPath string
	ChunksPath   string
	// VocabMinFreq drops corpus tokens below this frequency from the
	// canonicalizer vocabulary.
	VocabMinFreq int
}

// articleRow mirrors the articles_canonical parquet schema.
type articleRow struct {
	ID               string   `parquet:"id"`
	TitleHi          *string  `parquet:"title_hi"`
	SummaryHi        *string  `parquet:"summary_hi"`
	URL              *string  `parquet:"url"`
	ImageURL         *string  `parquet:"image_url"`
	PublishedDate    *string  `parquet:"published_date"`
	PublishedTS      *int64   `parquet:"published_ts"`
	PartnerLabel     *string  `parquet:"partner_label"`
	Categories       []string `parquet:"categories_raw,list"`
	Tags             []string `parquet:"tags_raw,list"`
	Locations        []string `parquet:"locations_raw,list"`
	Contributors     []string `parquet:"contributors_raw,list"`
	CategoriesNorm   []string `parquet:"categories_norm,list"`
	TagsNorm         []string `parquet:"tags_norm,list"`
	LocationsNorm    []string `parquet:"locations_norm,list"`
	ContributorsNorm []string `parquet:"contributors_norm,list"`
}

// chunkRow mirrors the chunks parquet schema.
type chunkRow struct {
	ChunkID   string `parquet:"chunk_id"`
	ArticleID string `parquet:"article_id"`
	ChunkText string `parquet:"chunk_text"`
}

// Store is the in-memory corpus snapshot.
type Store struct {
	articles  map[string]candidate.Metadata
	chunkText map[string]string
	vocab     map[string]int
	gazRows   []gazetteer.Entry
}

// Load reads both parquet exports concurrently and derives the vocabulary and
// gazetteer rows from article metadata.
func Load(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.VocabMinFreq <= 0 {
		cfg.VocabMinFreq = 2
	}

	var (
		articles []articleRow
		chunks   []chunkRow
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		articles, err = readParquet[articleRow](ctx, cfg.ArticlesPath)
		if err != nil {
			return fmt.Errorf("load articles: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		chunks, err = readParquet[chunkRow](ctx, cfg.ChunksPath)
		if err != nil {
			return fmt.Errorf("load chunks: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := &Store{
		articles:  make(map[string]candidate.Metadata, len(articles)),
		chunkText: make(map[string]string, len(chunks)),
		vocab:     make(map[string]int),
	}

	for _, row := range articles {
		if row.ID == "" {
			continue
		}
		s.articles[row.ID] = metadataFromRow(row)
		s.countTokens(deref(row.TitleHi))
		s.countTokens(deref(row.SummaryHi))
	}
	for _, row := range chunks {
		if row.ChunkID == "" {
			continue
		}
		s.chunkText[row.ChunkID] = row.ChunkText
	}

	for tok, n := range s.vocab {
		if n < cfg.VocabMinFreq {
			delete(s.vocab, tok)
		}
	}

	s.gazRows = buildGazetteerRows(articles)

	logger.Info("corpus loaded",
		zap.Int("articles", len(s.articles)),
		zap.Int("chunks", len(s.chunkText)),
		zap.Int("vocab_tokens", len(s.vocab)),
		zap.Int("gazetteer_rows", len(s.gazRows)),
	)
	return s, nil
}

// Article returns display and facet metadata for an article id.
func (s *Store) Article(id string) (candidate.Metadata, bool) {
	m, ok := s.articles[id]
	return m, ok
}

// ChunkText returns the text of a chunk id.
func (s *Store) ChunkText(id string) (string, bool) {
	t, ok := s.chunkText[id]
	return t, ok
}

// Vocabulary returns corpus token frequencies. The map must not be mutated.
func (s *Store) Vocabulary() map[string]int { return s.vocab }

// GazetteerEntries returns entity rows collected from facet metadata.
func (s *Store) GazetteerEntries() []gazetteer.Entry { return s.gazRows }

func (s *Store) countTokens(text string) {
	for _, tok := range norm.Tokenize(norm.Devanagari(text)) {
		s.vocab[tok]++
	}
}

// buildGazetteerRows collects distinct facet surface forms with their roman
// folded variants.
func buildGazetteerRows(articles []articleRow) []gazetteer.Entry {
	type key struct {
		t gazetteer.EntityType
		s string
	}
	seen := make(map[key]struct{})
	var rows []gazetteer.Entry

	add := func(t gazetteer.EntityType, surfaces []string) {
		for _, surface := range surfaces {
			surface = norm.Devanagari(surface)
			if surface == "" {
				continue
			}
			k := key{t, surface}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			rows = append(rows, gazetteer.Entry{
				Surface:       surface,
				Type:          t,
				RomanVariants: []string{norm.Roman(surface)},
			})
		}
	}

	for _, row := range articles {
		add(gazetteer.Location, row.LocationsNorm)
		add(gazetteer.Category, row.CategoriesNorm)
		add(gazetteer.Tag, row.TagsNorm)
		add(gazetteer.Contributor, row.ContributorsNorm)
	}
	return rows
}

func metadataFromRow(row articleRow) candidate.Metadata {
	m := candidate.Metadata{
		Title:            norm.Devanagari(deref(row.TitleHi)),
		Summary:          norm.Devanagari(deref(row.SummaryHi)),
		URL:              deref(row.URL),
		ImageURL:         deref(row.ImageURL),
		PublishedDate:    deref(row.PublishedDate),
		PartnerLabel:     deref(row.PartnerLabel),
		Categories:       row.Categories,
		Tags:             row.Tags,
		Locations:        row.Locations,
		Contributors:     row.Contributors,
		CategoriesNorm:   row.CategoriesNorm,
		TagsNorm:         row.TagsNorm,
		LocationsNorm:    row.LocationsNorm,
		ContributorsNorm: row.ContributorsNorm,
	}
	if row.PublishedTS != nil {
		m.PublishedTS = *row.PublishedTS
	}
	if len(m.Categories) > 0 {
		m.PrimaryCategory = m.Categories[0]
	}
	return m
}

// readParquet streams all rows of one parquet file. The context is checked
// between batches so startup can be aborted.
func readParquet[T any](ctx context.Context, path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[T](f)
	defer reader.Close()

	var out []T
	batch := make([]T, 256)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := reader.Read(batch)
		out = append(out, batch[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
