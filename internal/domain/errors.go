// Package domain holds sentinel errors and contracts shared across layers.
package domain

import "errors"

var (
	// ErrInvalidQuery signals an empty or unparseable query, rejected before any backend call.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrRetrievalUnavailable signals that both retrieval backends failed.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrArticleNotFound signals a missing article in the corpus metadata.
	ErrArticleNotFound = errors.New("article not found")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrInvalidLabel signals an unsupported relevance label value.
	ErrInvalidLabel = errors.New("invalid label")
)
