package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore stores documents in a single Postgres table keyed by
// (collection, id) with the body held as JSONB.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	collection  text NOT NULL,
	id          text NOT NULL,
	doc         jsonb NOT NULL,
	updated_at  timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_doc_gin ON documents USING gin (doc jsonb_path_ops);`

// EnsureSchema creates the documents table and its containment index.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("docstore: ensure schema: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var doc json.RawMessage
	err := s.pool.QueryRow(ctx,
		"SELECT doc FROM documents WHERE collection = $1 AND id = $2",
		collection, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *PGStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: marshal %s/%s: %w", collection, id, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		collection, id, body)
	if err != nil {
		return fmt.Errorf("docstore: set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM documents WHERE collection = $1 AND id = $2", collection, id)
	if err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PGStore) Query(ctx context.Context, collection string, q Query) ([]json.RawMessage, error) {
	sql := "SELECT doc FROM documents WHERE collection = $1"
	args := []interface{}{collection}
	idx := 2

	for _, f := range q.Filters {
		path := strings.Split(f.Field, ".")
		switch f.Op {
		case OpContains:
			body, err := json.Marshal([]interface{}{f.Value})
			if err != nil {
				return nil, fmt.Errorf("docstore: marshal filter value: %w", err)
			}
			sql += fmt.Sprintf(" AND doc #> $%d @> $%d::jsonb", idx, idx+1)
			args = append(args, path, string(body))
			idx += 2
		default:
			sql += fmt.Sprintf(" AND doc #>> $%d = $%d", idx, idx+1)
			args = append(args, path, fmt.Sprintf("%v", f.Value))
			idx += 2
		}
	}

	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		sql += fmt.Sprintf(" ORDER BY doc #>> $%d %s", idx, dir)
		args = append(args, strings.Split(q.OrderBy, "."))
		idx++
	}
	if q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, q.Limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var doc json.RawMessage
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("docstore: scan %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: query %s: %w", collection, err)
	}
	return docs, nil
}

// SetBatch writes all documents in one pipelined batch. On failure it reports
// how many writes completed before the error so callers can resume.
func (s *PGStore) SetBatch(ctx context.Context, collection string, docs map[string]interface{}) (int, error) {
	batch := &pgx.Batch{}
	for id, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return 0, fmt.Errorf("docstore: marshal %s/%s: %w", collection, id, err)
		}
		batch.Queue(`
			INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
			ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
			collection, id, body)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return written, fmt.Errorf("docstore: batch write %s (%d of %d done): %w",
				collection, written, batch.Len(), err)
		}
		written++
	}
	return written, nil
}
