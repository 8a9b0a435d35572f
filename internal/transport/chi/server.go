// Package chi is the HTTP API layer: routing, DTO mapping and error
// translation for the search engine.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/khoj-labs/khoj/internal/domain"
	"github.com/khoj-labs/khoj/internal/domain/facet"
	"github.com/khoj-labs/khoj/internal/domain/query"
	"github.com/khoj-labs/khoj/internal/domain/result"
	searchuc "github.com/khoj-labs/khoj/internal/usecase/search"
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest          = "bad_request"
	codeInvalidQuery        = "invalid_query"
	codeInvalidLabel        = "invalid_label"
	codeRetrievalDown       = "retrieval_unavailable"
	codeEmbeddingProvider   = "embedding_provider_error"
	codeArticleNotFound     = "article_not_found"
	codeInternalError       = "internal_error"
	codeFeedbackUnavailable = "feedback_unavailable"
)

// Labeler records human relevance judgments against logged queries.
type Labeler interface {
	InsertLabel(ctx context.Context, queryID int64, articleID *string, label int, note string) error
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the search pipeline over HTTP.
type Server struct {
	search        *searchuc.Service
	labels        Labeler
	checks        map[string]HealthCheck
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. labels may be nil when the feedback
// store is disabled; checks keys become the health report check names.
func NewServer(
	search *searchuc.Service,
	labels Labeler,
	checks map[string]HealthCheck,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search: search,
		labels: labels,
		checks: checks,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrInvalidLabel, http.StatusBadRequest, codeInvalidLabel),
		sentinelHandler(domain.ErrArticleNotFound, http.StatusNotFound, codeArticleNotFound),
		sentinelHandler(domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable, codeRetrievalDown),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
	}
	return s
}

type searchRequest struct {
	Query    string       `json:"query"`
	Filters  facet.Filter `json:"filters"`
	PageSize int          `json:"page_size"`
	Explain  bool         `json:"explain"`
}

type searchResponse struct {
	QueryID   int64           `json:"query_id,omitempty"`
	Mode      string          `json:"mode"`
	QueryUsed string          `json:"query_used"`
	Canonical query.Canonical `json:"canonical"`
	Degraded  bool            `json:"degraded"`
	Results   []resultItem    `json:"results"`
}

type resultItem struct {
	Rank            int                   `json:"rank"`
	ArticleID       string                `json:"article_id"`
	Score           float64               `json:"score"`
	Snippet         string                `json:"snippet,omitempty"`
	Title           string                `json:"title,omitempty"`
	Summary         string                `json:"summary,omitempty"`
	URL             string                `json:"url,omitempty"`
	ImageURL        string                `json:"image_url,omitempty"`
	PublishedDate   string                `json:"published_date,omitempty"`
	PrimaryCategory string                `json:"primary_category,omitempty"`
	PartnerLabel    string                `json:"partner_label,omitempty"`
	Categories      []string              `json:"categories,omitempty"`
	Tags            []string              `json:"tags,omitempty"`
	Locations       []string              `json:"locations,omitempty"`
	Contributors    []string              `json:"contributors,omitempty"`
	Features        *result.Features      `json:"features,omitempty"`
	Explanation     []result.Contribution `json:"explanation,omitempty"`
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), searchuc.Request{
		Query:    req.Query,
		Filter:   req.Filters,
		PageSize: req.PageSize,
		Explain:  req.Explain,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]resultItem, len(resp.Results))
	for i := range resp.Results {
		items[i] = resultToItem(&resp.Results[i], req.Explain)
	}

	writeJSON(w, http.StatusOK, searchResponse{
		QueryID:   resp.QueryID,
		Mode:      string(resp.Mode),
		QueryUsed: resp.QueryUsed,
		Canonical: resp.Canonical,
		Degraded:  resp.Degraded,
		Results:   items,
	})
}

type labelRequest struct {
	QueryID   int64  `json:"query_id"`
	ArticleID string `json:"article_id"`
	Label     int    `json:"label"`
	Note      string `json:"note"`
}

// Label handles POST /label: a per-article relevance judgment.
func (s *Server) Label(w http.ResponseWriter, r *http.Request) {
	if s.labels == nil {
		writeError(w, http.StatusServiceUnavailable, codeFeedbackUnavailable, "feedback store is disabled")
		return
	}

	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.QueryID <= 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "query_id is required")
		return
	}
	if req.ArticleID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "article_id is required")
		return
	}

	if err := s.labels.InsertLabel(r.Context(), req.QueryID, &req.ArticleID, req.Label, req.Note); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type labelQueryRequest struct {
	QueryID int64  `json:"query_id"`
	Note    string `json:"note"`
}

// LabelQuery handles POST /label_query: "nothing relevant for this query".
func (s *Server) LabelQuery(w http.ResponseWriter, r *http.Request) {
	if s.labels == nil {
		writeError(w, http.StatusServiceUnavailable, codeFeedbackUnavailable, "feedback store is disabled")
		return
	}

	var req labelQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.QueryID <= 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "query_id is required")
		return
	}

	if err := s.labels.InsertLabel(r.Context(), req.QueryID, nil, 0, req.Note); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checks))
	status := "healthy"
	for name, probe := range s.checks {
		if err := probe(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "down"
			status = "unhealthy"
		} else {
			checks[name] = "up"
		}
	}

	httpStatus := http.StatusOK
	if status != "healthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func resultToItem(r *result.Ranked, explain bool) resultItem {
	item := resultItem{
		Rank:            r.Rank,
		ArticleID:       r.ArticleID,
		Score:           r.Score,
		Snippet:         r.Snippet,
		Title:           r.Meta.Title,
		Summary:         r.Meta.Summary,
		URL:             r.Meta.URL,
		ImageURL:        r.Meta.ImageURL,
		PublishedDate:   r.Meta.PublishedDate,
		PrimaryCategory: r.Meta.PrimaryCategory,
		PartnerLabel:    r.Meta.PartnerLabel,
		Categories:      r.Meta.Categories,
		Tags:            r.Meta.Tags,
		Locations:       r.Meta.Locations,
		Contributors:    r.Meta.Contributors,
	}
	if explain {
		f := r.Features
		item.Features = &f
		item.Explanation = r.Explanation
	}
	return item
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrInvalidLabel,
		domain.ErrArticleNotFound,
		domain.ErrRetrievalUnavailable,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
