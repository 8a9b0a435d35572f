package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/khoj-labs/khoj/internal/domain"
	"github.com/khoj-labs/khoj/internal/domain/facet"
	"github.com/khoj-labs/khoj/internal/logger"
	"github.com/khoj-labs/khoj/internal/metrics"
	"go.uber.org/zap"
)

// legResults carries both backend candidate sets plus per-leg failure state.
// A leg error is not a request error: one surviving leg degrades the response,
// only both failing aborts it.
type legResults struct {
	lex    []LexicalHit
	lexErr error

	art    []ArticleHit
	chk    []ChunkHit
	semErr error
}

func (l legResults) degraded() bool {
	return l.lexErr != nil || l.semErr != nil
}

// dispatch issues the lexical and semantic calls concurrently, each under its
// own timeout. Single attempt per leg, no retries: retry policy belongs to the
// transports. Cancellation of ctx propagates into both legs and aborts the
// request without a partial result.
func (s *Service) dispatch(
	ctx context.Context, lexQ LexicalQuery, semText string, f facet.Filter,
) (legResults, error) {
	var out legResults

	var g errgroup.Group
	g.Go(func() error {
		out.lex, out.lexErr = s.runLexical(ctx, lexQ)
		return nil
	})
	g.Go(func() error {
		out.art, out.chk, out.semErr = s.runSemantic(ctx, semText, f)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return legResults{}, err
	}

	log := logger.FromContext(ctx)
	if out.lexErr != nil {
		log.Warn("lexical backend failed", zap.Error(out.lexErr))
	}
	if out.semErr != nil {
		log.Warn("semantic backend failed", zap.Error(out.semErr))
	}

	if out.lexErr != nil && out.semErr != nil {
		return legResults{}, fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable,
			errors.Join(out.lexErr, out.semErr))
	}
	return out, nil
}

func (s *Service) runLexical(ctx context.Context, q LexicalQuery) ([]LexicalHit, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LexicalTimeout)
	defer cancel()

	start := time.Now()
	hits, err := s.lexical.Search(ctx, q)
	observeBackend("lexical", start, err)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return hits, nil
}

// runSemantic embeds the query text and searches both vector collections.
// An embedding failure fails the whole leg: without a vector there is nothing
// to search.
func (s *Service) runSemantic(
	ctx context.Context, text string, f facet.Filter,
) ([]ArticleHit, []ChunkHit, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SemanticTimeout)
	defer cancel()

	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		observeBackend("semantic", time.Now(), err)
		return nil, nil, fmt.Errorf("vectorize query: %w", err)
	}

	start := time.Now()
	art, err := s.semantic.SearchArticles(ctx, emb.Embedding, f, s.cfg.SemArticleTopK)
	if err != nil {
		observeBackend("semantic", start, err)
		return nil, nil, fmt.Errorf("semantic article search: %w", err)
	}

	chk, err := s.semantic.SearchChunks(ctx, emb.Embedding, f, s.cfg.SemChunkTopK)
	observeBackend("semantic", start, err)
	if err != nil {
		return nil, nil, fmt.Errorf("semantic chunk search: %w", err)
	}
	return art, chk, nil
}

func observeBackend(backend string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.BackendRequestDuration.WithLabelValues(backend, outcome).
		Observe(time.Since(start).Seconds())
}
