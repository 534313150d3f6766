// Package postgres implements the hub.DocumentStore capability against
// PostgreSQL via pgx, generalizing the teacher's Database wrapper
// (server/main.go's pgxpool.New call) into the full Load/UpsertCurrent/
// AppendHistory/ListHistory contract the Durability Writer depends on.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sumanthd032/collabhub/internal/hub"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and applies the schema this store depends
// on. Safe to call once at process startup.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS document_history (
			id BIGSERIAL PRIMARY KEY,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			originator_address TEXT NOT NULL,
			timestamp BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS document_history_document_id_idx
			ON document_history (document_id, timestamp DESC);
	`)
	return err
}

// Load returns the persisted current content and last-modified
// timestamp for id, or ok=false if it has never been persisted.
func (s *Store) Load(ctx context.Context, id hub.DocumentId) (content string, lastModified int64, ok bool, err error) {
	row := s.pool.QueryRow(ctx,
		`SELECT content, updated_at FROM documents WHERE id = $1`, id.String())
	err = row.Scan(&content, &lastModified)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	return content, lastModified, true, nil
}

// UpsertCurrent writes the latest current-row content for id.
func (s *Store) UpsertCurrent(ctx context.Context, id hub.DocumentId, content string, updatedAt int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, content, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at
	`, id.String(), content, updatedAt)
	return err
}

// AppendHistory appends one audit-trail entry.
func (s *Store) AppendHistory(ctx context.Context, id hub.DocumentId, content, originatorAddress string, timestamp int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO document_history (document_id, content, originator_address, timestamp)
		VALUES ($1, $2, $3, $4)
	`, id.String(), content, originatorAddress, timestamp)
	return err
}

// Search implements hub.Searcher with a case-insensitive substring
// match over current document rows, generalizing the original Rust
// service's `content ILIKE $1` query (database.rs search_documents).
func (s *Store) Search(ctx context.Context, query string) ([]hub.SearchResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, content, updated_at FROM documents
		WHERE content ILIKE $1
		ORDER BY updated_at DESC
	`, "%"+query+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hub.SearchResult
	for rows.Next() {
		var idStr string
		var res hub.SearchResult
		if err := rows.Scan(&idStr, &res.Content, &res.LastModified); err != nil {
			return nil, err
		}
		id, err := hub.ParseDocumentId(idStr)
		if err != nil {
			continue
		}
		res.DocumentId = id
		out = append(out, res)
	}
	return out, rows.Err()
}

// ListHistory returns persisted history entries newest-first.
func (s *Store) ListHistory(ctx context.Context, id hub.DocumentId) ([]hub.EditRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT content, originator_address, timestamp
		FROM document_history
		WHERE document_id = $1
		ORDER BY timestamp DESC
	`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hub.EditRecord
	for rows.Next() {
		var rec hub.EditRecord
		rec.DocumentId = id
		if err := rows.Scan(&rec.ContentSnapshot, &rec.OriginatorAddress, &rec.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
