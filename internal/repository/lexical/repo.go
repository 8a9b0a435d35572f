// Package lexical adapts the RediSearch full-text engine as the lexical
// retrieval backend. Devanagari queries search the Hindi fields, roman-mode
// queries search the romanized index fields; only the returned score and
// article id are interpreted, the engine's relevance model stays opaque.
package lexical

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/khoj-labs/khoj/internal/domain/facet"
	"github.com/khoj-labs/khoj/internal/domain/query"
	searchuc "github.com/khoj-labs/khoj/internal/usecase/search"
)

// Compile-time check: Repo implements the lexical backend contract.
var _ searchuc.LexicalBackend = (*Repo)(nil)

// Field sets per query mode.
var (
	devFields   = "title_hi|summary_hi|content_hi"
	romanFields = "title_roman|summary_roman|content_roman"
)

// Config holds connection and index settings.
type Config struct {
	Addrs    []string
	Username string
	Password string
	Index    string
}

// Repo is a RediSearch-backed lexical backend.
type Repo struct {
	client rueidis.Client
	index  string
}

// New creates the lexical backend.
func New(cfg Config) (*Repo, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("index is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &Repo{client: client, index: cfg.Index}, nil
}

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	cmd := r.client.B().Ping().Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the engine responds or timeout expires.
func (r *Repo) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for lexical backend: %w", ctx.Err())
		case <-ticker.C:
			if err := r.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Close shuts down the client.
func (r *Repo) Close() {
	r.client.Close()
}

// Search runs FT.SEARCH with WITHSCORES and a summary highlight.
func (r *Repo) Search(ctx context.Context, q searchuc.LexicalQuery) ([]searchuc.LexicalHit, error) {
	if q.Text == "" {
		return nil, fmt.Errorf("query text is required")
	}

	queryStr := buildQuery(q.Text, q.Mode, q.Filter)

	topK := q.PageSize
	if topK <= 0 {
		topK = 10
	}

	args := []string{
		r.index, queryStr,
		"WITHSCORES",
		"HIGHLIGHT", "FIELDS", "1", "summary_hi", "TAGS", "<b>", "</b>",
		"RETURN", "2", "article_id", "summary_hi",
		"LIMIT", "0", strconv.Itoa(topK),
		"DIALECT", "2",
	}

	cmd := r.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := r.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("ft.search: %w", err)
	}

	return parseHits(raw)
}

// buildQuery assembles the FT.SEARCH query string: optional tag pre-filters
// plus the escaped text part against the mode's field set.
func buildQuery(text string, mode query.Mode, f facet.Filter) string {
	fields := romanFields
	if mode == query.ModeDev {
		fields = devFields
	}
	textPart := fmt.Sprintf("@%s:(%s)", fields, escapeQuery(text))

	filterStr := buildFilter(f)
	if filterStr == "" {
		return textPart
	}
	return filterStr + " " + textPart
}

// buildFilter translates a facet filter into FT.SEARCH tag conditions. Values
// within a facet are OR-ed, facets are AND-ed.
func buildFilter(f facet.Filter) string {
	var parts []string
	for _, group := range []struct {
		field  string
		values []string
	}{
		{"locations", f.Locations},
		{"categories", f.Categories},
		{"tags", f.Tags},
		{"contributors", f.Contributors},
	} {
		if len(group.values) == 0 {
			continue
		}
		escaped := make([]string, len(group.values))
		for i, v := range group.values {
			escaped[i] = escapeTag(v)
		}
		parts = append(parts, fmt.Sprintf("@%s:{%s}", group.field, strings.Join(escaped, "|")))
	}
	return strings.Join(parts, " ")
}

// parseHits walks the WITHSCORES reply.
// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
func parseHits(raw []rueidis.RedisMessage) ([]searchuc.LexicalHit, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	hits := make([]searchuc.LexicalHit, 0, total)
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}
		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}
		pairs := parseFieldPairs(fields)

		id := pairs["article_id"]
		if id == "" {
			id = articleIDFromKey(key)
		}
		hits = append(hits, searchuc.LexicalHit{
			ArticleID: id,
			Score:     score,
			Highlight: pairs["summary_hi"],
		})
	}
	return hits, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// articleIDFromKey strips the storage key prefix ("khoj:article:<id>").
func articleIDFromKey(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`[`, `\[`,
	`]`, `\]`,
	`|`, `\|`,
	`-`, `\-`,
	`=`, `\=`,
	`~`, `\~`,
	`*`, `\*`,
)

func escapeTag(s string) string {
	return tagEscaper.Replace(strings.TrimSpace(s))
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	`{`, `\{`,
	`}`, `\}`,
	`|`, `\|`,
	` `, `\ `,
	`,`, `\,`,
)
