package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blueprintlabs/blueprint/internal/artifact"
)

// querier is the common interface satisfied by both *pgxpool.Pool and
// pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const versionCols = `id, title, kind, content, user_id, created_at`

const insertVersionSQL = `INSERT INTO documents (id, title, kind, content, user_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

const listVersionsSQL = `SELECT ` + versionCols + `
	FROM documents WHERE id = $1 ORDER BY created_at ASC`

const getLatestSQL = `SELECT ` + versionCols + `
	FROM documents WHERE id = $1 ORDER BY created_at DESC LIMIT 1`

const insertSuggestionSQL = `INSERT INTO suggestions
	(id, document_id, document_created_at, original_text, suggested_text, description, is_resolved, user_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const listSuggestionsSQL = `SELECT id, document_id, document_created_at, original_text,
	suggested_text, description, is_resolved, user_id, created_at
	FROM suggestions WHERE document_id = $1 ORDER BY created_at ASC`

// versionCacheSize bounds the per-process version-list cache. Lists are
// small (a handful of snapshots per document) so this is generous.
const versionCacheSize = 128

// PostgresStore persists versions and suggestions in PostgreSQL and
// caches version lists per document id. The cache entry for an id is
// dropped on every append so readers never see a stale "current".
//
// PostgresStore is safe for concurrent use.
type PostgresStore struct {
	pool   *pgxpool.Pool
	cache  *lru.Cache[string, []Version]
	logger *slog.Logger
}

// NewPostgresStore creates a store over the given pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, []Version](versionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create version cache: %w", err)
	}
	return &PostgresStore{pool: pool, cache: cache, logger: logger}, nil
}

// SaveVersion appends a new version row for v.ID.
func (s *PostgresStore) SaveVersion(ctx context.Context, v Version) error {
	if v.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx, insertVersionSQL,
		v.ID, v.Title, string(v.Kind), v.Content, v.UserID, v.CreatedAt,
	); err != nil {
		return fmt.Errorf("save document %s: %w", v.ID, err)
	}
	s.cache.Remove(v.ID)
	s.logger.Debug("saved document version", "id", v.ID, "title", v.Title, "bytes", len(v.Content))
	return nil
}

// GetByID returns the current (last) version for id.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (Version, error) {
	var v Version
	err := scanVersion(s.pool.QueryRow(ctx, getLatestSQL, id), &v)
	if errors.Is(err, pgx.ErrNoRows) {
		return Version{}, ErrNotFound
	}
	if err != nil {
		return Version{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return v, nil
}

// ListVersions returns every version for id, ascending by creation time.
func (s *PostgresStore) ListVersions(ctx context.Context, id string) ([]Version, error) {
	if cached, ok := s.cache.Get(id); ok {
		out := make([]Version, len(cached))
		copy(out, cached)
		return out, nil
	}

	rows, err := s.pool.Query(ctx, listVersionsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("list versions for %s: %w", id, err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var v Version
		if err := scanVersion(rows, &v); err != nil {
			return nil, fmt.Errorf("scan version for %s: %w", id, err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list versions for %s: %w", id, err)
	}

	s.cache.Add(id, versions)
	out := make([]Version, len(versions))
	copy(out, versions)
	return out, nil
}

// SaveSuggestions appends the given suggestions in one transaction.
func (s *PostgresStore) SaveSuggestions(ctx context.Context, suggestions []Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save suggestions: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, sug := range suggestions {
		if err := insertSuggestion(ctx, tx, sug); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit suggestions: %w", err)
	}
	s.logger.Debug("saved suggestions", "document_id", suggestions[0].DocumentID, "count", len(suggestions))
	return nil
}

// ListSuggestions returns every suggestion for documentID, ascending by
// creation time.
func (s *PostgresStore) ListSuggestions(ctx context.Context, documentID string) ([]Suggestion, error) {
	rows, err := s.pool.Query(ctx, listSuggestionsSQL, documentID)
	if err != nil {
		return nil, fmt.Errorf("list suggestions for %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		var sug Suggestion
		if err := rows.Scan(
			&sug.ID, &sug.DocumentID, &sug.DocumentCreatedAt,
			&sug.OriginalText, &sug.SuggestedText, &sug.Description,
			&sug.IsResolved, &sug.UserID, &sug.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan suggestion for %s: %w", documentID, err)
		}
		out = append(out, sug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list suggestions for %s: %w", documentID, err)
	}
	return out, nil
}

func insertSuggestion(ctx context.Context, q querier, sug Suggestion) error {
	createdAt := sug.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := q.Exec(ctx, insertSuggestionSQL,
		sug.ID, sug.DocumentID, sug.DocumentCreatedAt,
		sug.OriginalText, sug.SuggestedText, sug.Description,
		sug.IsResolved, sug.UserID, createdAt,
	); err != nil {
		return fmt.Errorf("save suggestion %s: %w", sug.ID, err)
	}
	return nil
}

func scanVersion(row pgx.Row, v *Version) error {
	var kind string
	if err := row.Scan(&v.ID, &v.Title, &kind, &v.Content, &v.UserID, &v.CreatedAt); err != nil {
		return err
	}
	v.Kind = artifact.Kind(kind)
	return nil
}
