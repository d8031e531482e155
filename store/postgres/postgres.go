// Package postgres implements pocketrag.Store using PostgreSQL with
// pgvector for native vector similarity search.
//
// Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pocketrag "github.com/shunichi0402/pocket-rag"
)

// Store implements pocketrag.Store backed by PostgreSQL with pgvector.
// Vector search uses HNSW indexes with cosine distance.
type Store struct {
	pool *pgxpool.Pool
	cfg  pgConfig
}

type pgConfig struct {
	embeddingDimension int // 0 = untyped vector
	hnswM              int // 0 = pgvector default (16)
	hnswEFConstruction int // 0 = pgvector default (64)
	hnswEFSearch       int // 0 = pgvector default (40)
}

// Option configures a PostgreSQL Store.
type Option func(*pgConfig)

// WithEmbeddingDimension sets the vector column dimension. When set,
// CREATE TABLE uses vector(N) instead of untyped vector, catching
// dimension mismatches at insert time. Only affects new table creation.
func WithEmbeddingDimension(dim int) Option {
	return func(c *pgConfig) { c.embeddingDimension = dim }
}

// WithHNSWM sets the HNSW m parameter (max connections per node).
// Higher values improve recall at the cost of memory.
func WithHNSWM(m int) Option {
	return func(c *pgConfig) { c.hnswM = m }
}

// WithEFConstruction sets the HNSW ef_construction parameter (build-time
// candidate list size).
func WithEFConstruction(ef int) Option {
	return func(c *pgConfig) { c.hnswEFConstruction = ef }
}

// WithEFSearch sets the HNSW ef_search parameter (query-time candidate
// list size). Applied via SET during Init().
func WithEFSearch(ef int) Option {
	return func(c *pgConfig) { c.hnswEFSearch = ef }
}

var _ pocketrag.Store = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	var cfg pgConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &Store{pool: pool, cfg: cfg}
}

func (s *Store) vectorType() string {
	if s.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", s.cfg.embeddingDimension)
	}
	return "vector"
}

func (s *Store) hnswWithClause() string {
	var parts []string
	if s.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", s.cfg.hnswM))
	}
	if s.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", s.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

// Init creates the pgvector extension, all required tables, and indexes.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	vtype := s.vectorType()
	hnswWith := s.hnswWithClause()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS project_info (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS documents (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			name TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			unit_count INTEGER NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS text_units (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			content TEXT NOT NULL,
			content_type TEXT NOT NULL,
			embedding %s,
			UNIQUE (document_id, sequence)
		)`, vtype),
		`CREATE INDEX IF NOT EXISTS text_units_document_idx ON text_units(document_id)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS text_units_embedding_idx ON text_units USING hnsw (embedding vector_cosine_ops)%s`, hnswWith),
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}

	if s.cfg.hnswEFSearch > 0 {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf(`SET hnsw.ef_search = %d`, s.cfg.hnswEFSearch)); err != nil {
			return fmt.Errorf("postgres: set ef_search: %w", err)
		}
	}
	return nil
}

// SetProjectInfo upserts project metadata key/value pairs.
func (s *Store) SetProjectInfo(ctx context.Context, info map[string]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for k, v := range info {
		_, err := tx.Exec(ctx,
			`INSERT INTO project_info (key, value) VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, k, v)
		if err != nil {
			return fmt.Errorf("postgres: set project info %q: %w", k, err)
		}
	}
	return tx.Commit(ctx)
}

// ProjectInfo returns all project metadata.
func (s *Store) ProjectInfo(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM project_info`)
	if err != nil {
		return nil, fmt.Errorf("postgres: project info: %w", err)
	}
	defer rows.Close()

	info := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("postgres: scan project info: %w", err)
		}
		info[k] = v
	}
	return info, rows.Err()
}

// InsertDocument inserts a document and its text units in a single
// transaction. embeddings is aligned with units by index.
func (s *Store) InsertDocument(ctx context.Context, doc pocketrag.Document, units []pocketrag.TextUnit, embeddings [][]float32) (int64, error) {
	if len(embeddings) != 0 && len(embeddings) != len(units) {
		return 0, fmt.Errorf("postgres: %d embeddings for %d units", len(embeddings), len(units))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var docID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO documents (name, path, content, unit_count, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		doc.Name, doc.Path, doc.Content, len(units), doc.CreatedAt,
	).Scan(&docID)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert document: %w", err)
	}

	for i, u := range units {
		var emb *string
		if i < len(embeddings) && len(embeddings[i]) > 0 {
			v := serializeEmbedding(embeddings[i])
			emb = &v
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO text_units (document_id, sequence, content, content_type, embedding)
			 VALUES ($1, $2, $3, $4, $5::vector)`,
			docID, u.Sequence, u.Content, u.ContentType, emb)
		if err != nil {
			return 0, fmt.Errorf("postgres: insert text unit %d: %w", u.Sequence, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit tx: %w", err)
	}
	return docID, nil
}

// Document returns a single document by id.
func (s *Store) Document(ctx context.Context, id int64) (pocketrag.Document, error) {
	var d pocketrag.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, path, content, unit_count, created_at FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.Path, &d.Content, &d.UnitCount, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pocketrag.Document{}, pocketrag.ErrNotFound
	}
	if err != nil {
		return pocketrag.Document{}, fmt.Errorf("postgres: get document: %w", err)
	}
	return d, nil
}

// Documents returns all documents ordered by id.
func (s *Store) Documents(ctx context.Context) ([]pocketrag.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, path, content, unit_count, created_at FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list documents: %w", err)
	}
	defer rows.Close()

	var docs []pocketrag.Document
	for rows.Next() {
		var d pocketrag.Document
		if err := rows.Scan(&d.ID, &d.Name, &d.Path, &d.Content, &d.UnitCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and, via cascade, its text units.
// Deleting an absent id is not an error.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete document: %w", err)
	}
	return nil
}

// TextUnits returns all text units of a document ordered by sequence.
func (s *Store) TextUnits(ctx context.Context, documentID int64) ([]pocketrag.TextUnit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, sequence, content, content_type
		 FROM text_units WHERE document_id = $1 ORDER BY sequence`, documentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list text units: %w", err)
	}
	defer rows.Close()

	var units []pocketrag.TextUnit
	for rows.Next() {
		var u pocketrag.TextUnit
		if err := rows.Scan(&u.ID, &u.DocumentID, &u.Sequence, &u.Content, &u.ContentType); err != nil {
			return nil, fmt.Errorf("postgres: scan text unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// TextUnit returns one text unit addressed by document id and sequence.
func (s *Store) TextUnit(ctx context.Context, documentID int64, sequence int) (pocketrag.TextUnit, error) {
	var u pocketrag.TextUnit
	err := s.pool.QueryRow(ctx,
		`SELECT id, document_id, sequence, content, content_type
		 FROM text_units WHERE document_id = $1 AND sequence = $2`, documentID, sequence,
	).Scan(&u.ID, &u.DocumentID, &u.Sequence, &u.Content, &u.ContentType)
	if errors.Is(err, pgx.ErrNoRows) {
		return pocketrag.TextUnit{}, pocketrag.ErrNotFound
	}
	if err != nil {
		return pocketrag.TextUnit{}, fmt.Errorf("postgres: get text unit: %w", err)
	}
	return u, nil
}

// SearchByVector returns the k nearest text units by cosine distance,
// ascending, using the HNSW index.
func (s *Store) SearchByVector(ctx context.Context, embedding []float32, k int) ([]pocketrag.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	embStr := serializeEmbedding(embedding)

	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.content, u.embedding <=> $1::vector AS distance, d.content
		 FROM text_units u
		 JOIN documents d ON d.id = u.document_id
		 WHERE u.embedding IS NOT NULL
		 ORDER BY u.embedding <=> $1::vector, u.id
		 LIMIT $2`, embStr, k)
	if err != nil {
		return nil, fmt.Errorf("postgres: vector search: %w", err)
	}
	defer rows.Close()

	var hits []pocketrag.VectorHit
	for rows.Next() {
		var h pocketrag.VectorHit
		if err := rows.Scan(&h.TextUnitID, &h.Content, &h.Distance, &h.DocumentContent); err != nil {
			return nil, fmt.Errorf("postgres: scan vector hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SearchByKeywords returns text units whose content contains any of the
// keywords as a case-sensitive substring (strpos). An empty keyword list
// matches nothing.
func (s *Store) SearchByKeywords(ctx context.Context, keywords []string) ([]pocketrag.KeywordHit, error) {
	conds := make([]string, 0, len(keywords))
	args := make([]any, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		args = append(args, kw)
		conds = append(conds, fmt.Sprintf(`strpos(content, $%d) > 0`, len(args)))
	}
	if len(conds) == 0 {
		return nil, nil
	}

	query := `SELECT id, document_id, sequence, content, content_type
		 FROM text_units WHERE ` + strings.Join(conds, " OR ") + ` ORDER BY id`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: keyword search: %w", err)
	}
	defer rows.Close()

	var hits []pocketrag.KeywordHit
	for rows.Next() {
		var h pocketrag.KeywordHit
		if err := rows.Scan(&h.ID, &h.DocumentID, &h.Sequence, &h.Content, &h.ContentType); err != nil {
			return nil, fmt.Errorf("postgres: scan keyword hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Close is a no-op; the caller owns the pool.
func (s *Store) Close() error { return nil }

// serializeEmbedding converts []float32 to a string like "[0.1,0.2,0.3]"
// suitable for pgvector's text input format.
func serializeEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
