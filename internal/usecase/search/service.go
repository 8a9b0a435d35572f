// Package search orchestrates hybrid retrieval: canonicalization, parallel
// backend dispatch, candidate aggregation and fusion ranking.
package search

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khoj-labs/khoj/internal/domain"
	"github.com/khoj-labs/khoj/internal/domain/facet"
	"github.com/khoj-labs/khoj/internal/domain/query"
	"github.com/khoj-labs/khoj/internal/domain/result"
	"github.com/khoj-labs/khoj/internal/logger"
	"github.com/khoj-labs/khoj/internal/metrics"
	"github.com/khoj-labs/khoj/internal/norm"
)

// Config holds retrieval and fusion settings.
type Config struct {
	LexicalTimeout  time.Duration
	SemanticTimeout time.Duration

	LexicalTopK    int
	SemArticleTopK int
	SemChunkTopK   int
	CandidateCap   int

	DefaultPageSize int
	MaxPageSize     int
	// LogTopN caps how many ranked candidates are written to the feedback log.
	LogTopN int

	Weights Weights
}

func (c *Config) applyDefaults() {
	if c.LexicalTimeout <= 0 {
		c.LexicalTimeout = 2 * time.Second
	}
	if c.SemanticTimeout <= 0 {
		c.SemanticTimeout = 3 * time.Second
	}
	if c.LexicalTopK <= 0 {
		c.LexicalTopK = 80
	}
	if c.SemArticleTopK <= 0 {
		c.SemArticleTopK = 40
	}
	if c.SemChunkTopK <= 0 {
		c.SemChunkTopK = 80
	}
	if c.CandidateCap <= 0 {
		c.CandidateCap = 200
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 10
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 50
	}
	if c.LogTopN <= 0 {
		c.LogTopN = 200
	}
	if c.Weights == (Weights{}) {
		c.Weights = DefaultWeights()
	}
}

// Request is one search call on the engine.
type Request struct {
	Query    string
	Filter   facet.Filter
	PageSize int
	Explain  bool
}

// Response is the ranked, explainable result set.
type Response struct {
	QueryID   int64
	Mode      query.Mode
	QueryUsed string
	Canonical query.Canonical
	Degraded  bool
	Results   []result.Ranked
}

// Service is the hybrid retrieval engine.
type Service struct {
	canon    Canonicalizer
	lexical  LexicalBackend
	semantic SemanticBackend
	embed    domain.Embedder
	corpus   CorpusReader
	detector EntityDetector
	feedback FeedbackLogger
	cfg      Config
	now      func() time.Time
}

// New creates a search service.
func New(
	canon Canonicalizer,
	lexical LexicalBackend,
	semantic SemanticBackend,
	embed domain.Embedder,
	corpus CorpusReader,
	cfg Config,
) *Service {
	cfg.applyDefaults()
	return &Service{
		canon:    canon,
		lexical:  lexical,
		semantic: semantic,
		embed:    embed,
		corpus:   corpus,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithEntityDetector enables gazetteer-derived automatic facet filters.
func (s *Service) WithEntityDetector(d EntityDetector) *Service {
	s.detector = d
	return s
}

// WithFeedback enables query and candidate logging for relevance labeling.
func (s *Service) WithFeedback(f FeedbackLogger) *Service {
	s.feedback = f
	return s
}

// WithClock overrides the ranking clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Search runs the full pipeline. Canonicalization never fails the request;
// missing backends degrade it; only an empty query or both backends failing
// abort it.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	raw := strings.TrimSpace(req.Query)
	if raw == "" {
		return nil, domain.ErrInvalidQuery
	}

	canonical := s.canon.Canonicalize(raw)
	for _, t := range canonical.Tokens {
		metrics.CanonTokensTotal.WithLabelValues(string(t.Source)).Inc()
	}

	queryUsed := canonical.Text
	if queryUsed == "" {
		queryUsed = raw
	}

	filter := req.Filter
	if s.detector != nil {
		filter = filter.Merge(s.detector.DetectFilter(queryUsed, canonical.Mode))
	}

	// The roman-mode lexical index holds roman-normalized text, so that leg
	// searches the folded roman query, not the Devanagari canonical form.
	lexText := queryUsed
	if canonical.Mode == query.ModeRoman {
		lexText = norm.Roman(raw)
	}

	legs, err := s.dispatch(ctx, LexicalQuery{
		Text:     lexText,
		Mode:     canonical.Mode,
		Filter:   filter,
		PageSize: s.cfg.LexicalTopK,
	}, queryUsed, filter)
	if err != nil {
		return nil, err
	}

	cands := s.aggregate(legs.lex, legs.art, legs.chk)
	metrics.FusionCandidates.Observe(float64(len(cands)))

	ranked := rank(cands, filter, s.cfg.Weights, s.now())

	degraded := legs.degraded()
	metrics.SearchRequestsTotal.
		WithLabelValues(string(canonical.Mode), strconv.FormatBool(degraded)).Inc()

	resp := &Response{
		Mode:      canonical.Mode,
		QueryUsed: queryUsed,
		Canonical: canonical,
		Degraded:  degraded,
		Results:   page(ranked, req.PageSize, s.cfg),
	}
	resp.QueryID = s.logFeedback(ctx, raw, canonical, queryUsed, filter, degraded, legs, ranked)

	return resp, nil
}

// logFeedback persists the query and its top-N ranked candidates. Failures
// are logged, never surfaced: feedback capture must not break search.
func (s *Service) logFeedback(
	ctx context.Context, raw string, canonical query.Canonical, queryUsed string,
	filter facet.Filter, degraded bool, legs legResults, ranked []result.Ranked,
) int64 {
	if s.feedback == nil {
		return 0
	}
	log := logger.FromContext(ctx)

	qid, err := s.feedback.LogQuery(ctx, QueryRecord{
		Raw:       raw,
		Mode:      canonical.Mode,
		Used:      queryUsed,
		Canonical: canonical,
		Filter:    filter,
		Degraded:  degraded,
		LexN:      len(legs.lex),
		SemArtN:   len(legs.art),
		SemChunkN: len(legs.chk),
	})
	if err != nil {
		log.Warn("feedback query log failed", zap.Error(err))
		return 0
	}

	topN := ranked
	if len(topN) > s.cfg.LogTopN {
		topN = topN[:s.cfg.LogTopN]
	}
	if err := s.feedback.LogCandidates(ctx, qid, topN); err != nil {
		log.Warn("feedback candidate log failed", zap.Int64("query_id", qid), zap.Error(err))
	}
	return qid
}

func page(ranked []result.Ranked, size int, cfg Config) []result.Ranked {
	if size <= 0 {
		size = cfg.DefaultPageSize
	}
	if size > cfg.MaxPageSize {
		size = cfg.MaxPageSize
	}
	if len(ranked) > size {
		ranked = ranked[:size]
	}
	return ranked
}
