// Package feedback persists search queries, their ranked candidates and human
// relevance labels for later ranker tuning.
package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/khoj-labs/khoj/internal/domain"
	"github.com/khoj-labs/khoj/internal/domain/result"
	searchuc "github.com/khoj-labs/khoj/internal/usecase/search"
)

// Versions stamped onto every logged query so labels stay comparable across
// ranker changes.
type Versions struct {
	Ranker    string
	Retrieval string
}

// Store is a sqlite-backed feedback log.
type Store struct {
	db       *sql.DB
	versions Versions
}

// Compile-time check: Store implements the search feedback contract.
var _ searchuc.FeedbackLogger = (*Store)(nil)

// Open opens (creating if needed) the feedback database.
func Open(path string, versions Versions) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open feedback db: %w", err)
	}

	// WAL for concurrent readers while the search path writes.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("wal mode: %w", err)
	}

	s := &Store{db: db, versions: versions}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS query_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			query_raw TEXT NOT NULL,
			query_mode TEXT NOT NULL,
			query_used TEXT NOT NULL,
			canonical TEXT NOT NULL,
			filters TEXT,
			degraded INTEGER NOT NULL DEFAULT 0,
			ranker_version TEXT NOT NULL,
			retrieval_version TEXT NOT NULL,
			meta TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS candidate_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query_id INTEGER NOT NULL REFERENCES query_log(id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			article_id TEXT NOT NULL,
			title TEXT,
			published_date TEXT,
			snippet TEXT,
			score REAL NOT NULL,
			features TEXT NOT NULL,
			explanation TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candidate_query_id ON candidate_log(query_id)`,
		`CREATE INDEX IF NOT EXISTS idx_candidate_article_id ON candidate_log(article_id)`,
		`CREATE TABLE IF NOT EXISTS labels (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			query_id INTEGER NOT NULL REFERENCES query_log(id) ON DELETE CASCADE,
			article_id TEXT,
			label INTEGER NOT NULL,
			note TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_labels_query_id ON labels(query_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec ddl: %w", err)
		}
	}
	return nil
}

// LogQuery inserts one search request and returns its query id.
func (s *Store) LogQuery(ctx context.Context, rec searchuc.QueryRecord) (int64, error) {
	canonical, err := json.Marshal(rec.Canonical)
	if err != nil {
		return 0, fmt.Errorf("marshal canonical: %w", err)
	}
	filters, err := json.Marshal(rec.Filter)
	if err != nil {
		return 0, fmt.Errorf("marshal filters: %w", err)
	}
	meta, err := json.Marshal(map[string]int{
		"lex_n":       rec.LexN,
		"sem_art_n":   rec.SemArtN,
		"sem_chunk_n": rec.SemChunkN,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal meta: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log(
			query_raw, query_mode, query_used, canonical, filters,
			degraded, ranker_version, retrieval_version, meta
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Raw, string(rec.Mode), rec.Used, string(canonical), string(filters),
		boolToInt(rec.Degraded), s.versions.Ranker, s.versions.Retrieval, string(meta),
	)
	if err != nil {
		return 0, fmt.Errorf("insert query: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("query id: %w", err)
	}
	return id, nil
}

// LogCandidates inserts the ranked candidates of one query in a single
// transaction.
func (s *Store) LogCandidates(ctx context.Context, queryID int64, ranked []result.Ranked) error {
	if len(ranked) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candidate_log(
			query_id, rank, article_id, title, published_date, snippet,
			score, features, explanation
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range ranked {
		features, err := json.Marshal(r.Features)
		if err != nil {
			return fmt.Errorf("marshal features: %w", err)
		}
		explanation, err := json.Marshal(r.Explanation)
		if err != nil {
			return fmt.Errorf("marshal explanation: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			queryID, r.Rank, r.ArticleID, r.Meta.Title, r.Meta.PublishedDate,
			r.Snippet, r.Score, string(features), string(explanation),
		); err != nil {
			return fmt.Errorf("insert candidate %s: %w", r.ArticleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// InsertLabel records a per-article relevance label (0 or 1) for a logged
// query. A nil articleID records a query-level "nothing relevant" label,
// which only supports label 0.
func (s *Store) InsertLabel(ctx context.Context, queryID int64, articleID *string, label int, note string) error {
	if label != 0 && label != 1 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidLabel, label)
	}
	if articleID == nil && label != 0 {
		return fmt.Errorf("%w: query-level labels must be 0", domain.ErrInvalidLabel)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO labels(query_id, article_id, label, note)
		VALUES (?, ?, ?, ?)`,
		queryID, articleID, label, nullable(note),
	); err != nil {
		return fmt.Errorf("insert label: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
