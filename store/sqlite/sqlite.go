// Package sqlite implements pocketrag.Store using pure-Go SQLite
// with in-process brute-force vector search. Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	pocketrag "github.com/shunichi0402/pocket-rag"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing, row counts, and key parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements pocketrag.Store backed by a local SQLite file.
// Embeddings are stored as little-endian float32 blobs and vector search is
// done in-process using brute-force cosine distance.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ pocketrag.Store = (*Store)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates all required tables.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("sqlite: init started")
	tables := []string{
		`CREATE TABLE IF NOT EXISTS project_info (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			unit_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS text_units (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL,
			sequence INTEGER NOT NULL,
			content TEXT NOT NULL,
			content_type TEXT NOT NULL,
			UNIQUE (document_id, sequence)
		)`,
		`CREATE TABLE IF NOT EXISTS text_unit_vectors (
			text_unit_id INTEGER PRIMARY KEY,
			embedding BLOB NOT NULL
		)`,
	}
	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_text_units_document ON text_units(document_id)`); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.logger.Debug("sqlite: init ok", "duration", time.Since(start))
	return nil
}

// SetProjectInfo upserts project metadata key/value pairs.
func (s *Store) SetProjectInfo(ctx context.Context, info map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for k, v := range info {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO project_info (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("set project info %q: %w", k, err)
		}
	}
	return tx.Commit()
}

// ProjectInfo returns all project metadata.
func (s *Store) ProjectInfo(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM project_info`)
	if err != nil {
		return nil, fmt.Errorf("project info: %w", err)
	}
	defer rows.Close()

	info := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan project info: %w", err)
		}
		info[k] = v
	}
	return info, rows.Err()
}

// InsertDocument inserts a document, its text units, and their vectors in a
// single transaction. embeddings is aligned with units by index; a nil entry
// leaves that unit without a vector.
func (s *Store) InsertDocument(ctx context.Context, doc pocketrag.Document, units []pocketrag.TextUnit, embeddings [][]float32) (int64, error) {
	start := time.Now()
	s.logger.Debug("sqlite: insert document", "name", doc.Name, "units", len(units))

	if len(embeddings) != 0 && len(embeddings) != len(units) {
		return 0, fmt.Errorf("insert document: %d embeddings for %d units", len(embeddings), len(units))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (name, path, content, unit_count, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		doc.Name, doc.Path, doc.Content, len(units), doc.CreatedAt,
	)
	if err != nil {
		s.logger.Error("sqlite: insert document failed", "name", doc.Name, "error", err)
		return 0, fmt.Errorf("insert document: %w", err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("document id: %w", err)
	}

	for i, u := range units {
		unitRes, err := tx.ExecContext(ctx,
			`INSERT INTO text_units (document_id, sequence, content, content_type)
			 VALUES (?, ?, ?, ?)`,
			docID, u.Sequence, u.Content, u.ContentType,
		)
		if err != nil {
			s.logger.Error("sqlite: insert text unit failed", "document_id", docID, "sequence", u.Sequence, "error", err)
			return 0, fmt.Errorf("insert text unit %d: %w", u.Sequence, err)
		}
		unitID, err := unitRes.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("text unit id: %w", err)
		}
		if i < len(embeddings) && len(embeddings[i]) > 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO text_unit_vectors (text_unit_id, embedding) VALUES (?, ?)`,
				unitID, pocketrag.EncodeVector(embeddings[i]),
			); err != nil {
				return 0, fmt.Errorf("insert vector for unit %d: %w", u.Sequence, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("sqlite: insert document commit failed", "name", doc.Name, "error", err)
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	s.logger.Debug("sqlite: insert document ok", "id", docID, "units", len(units), "duration", time.Since(start))
	return docID, nil
}

// Document returns a single document by id. Returns pocketrag.ErrNotFound
// when no document has that id.
func (s *Store) Document(ctx context.Context, id int64) (pocketrag.Document, error) {
	var d pocketrag.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, content, unit_count, created_at FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.Path, &d.Content, &d.UnitCount, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return pocketrag.Document{}, pocketrag.ErrNotFound
	}
	if err != nil {
		return pocketrag.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// Documents returns all documents ordered by id.
func (s *Store) Documents(ctx context.Context) ([]pocketrag.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, content, unit_count, created_at FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []pocketrag.Document
	for rows.Next() {
		var d pocketrag.Document
		if err := rows.Scan(&d.ID, &d.Name, &d.Path, &d.Content, &d.UnitCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document, its text units, and their vectors.
// Deleting an absent id is not an error.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	start := time.Now()
	s.logger.Debug("sqlite: delete document", "id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM text_unit_vectors WHERE text_unit_id IN (SELECT id FROM text_units WHERE document_id = ?)`, id); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM text_units WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("delete text units: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("sqlite: delete document commit failed", "id", id, "error", err)
		return err
	}
	s.logger.Debug("sqlite: delete document ok", "id", id, "duration", time.Since(start))
	return nil
}

// TextUnits returns all text units of a document ordered by sequence.
func (s *Store) TextUnits(ctx context.Context, documentID int64) ([]pocketrag.TextUnit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, sequence, content, content_type
		 FROM text_units WHERE document_id = ? ORDER BY sequence`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list text units: %w", err)
	}
	defer rows.Close()

	var units []pocketrag.TextUnit
	for rows.Next() {
		var u pocketrag.TextUnit
		if err := rows.Scan(&u.ID, &u.DocumentID, &u.Sequence, &u.Content, &u.ContentType); err != nil {
			return nil, fmt.Errorf("scan text unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// TextUnit returns one text unit addressed by document id and sequence.
func (s *Store) TextUnit(ctx context.Context, documentID int64, sequence int) (pocketrag.TextUnit, error) {
	var u pocketrag.TextUnit
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, sequence, content, content_type
		 FROM text_units WHERE document_id = ? AND sequence = ?`, documentID, sequence,
	).Scan(&u.ID, &u.DocumentID, &u.Sequence, &u.Content, &u.ContentType)
	if err == sql.ErrNoRows {
		return pocketrag.TextUnit{}, pocketrag.ErrNotFound
	}
	if err != nil {
		return pocketrag.TextUnit{}, fmt.Errorf("get text unit: %w", err)
	}
	return u, nil
}

// SearchByVector scans all stored vectors and returns the k nearest text
// units by cosine distance, ascending. Rows whose stored vector cannot be
// decoded or whose dimensions mismatch the query are skipped.
func (s *Store) SearchByVector(ctx context.Context, embedding []float32, k int) ([]pocketrag.VectorHit, error) {
	start := time.Now()
	s.logger.Debug("sqlite: vector search", "k", k, "embedding_dim", len(embedding))

	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.content, v.embedding, d.content
		 FROM text_unit_vectors v
		 JOIN text_units u ON u.id = v.text_unit_id
		 JOIN documents d ON d.id = u.document_id`)
	if err != nil {
		s.logger.Error("sqlite: vector search failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []pocketrag.VectorHit
	scanned := 0
	for rows.Next() {
		var hit pocketrag.VectorHit
		var blob []byte
		if err := rows.Scan(&hit.TextUnitID, &hit.Content, &blob, &hit.DocumentContent); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		scanned++
		stored, err := pocketrag.DecodeVector(blob)
		if err != nil || len(stored) != len(embedding) {
			continue
		}
		hit.Distance = cosineDistance(embedding, stored)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vectors: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].TextUnitID < hits[j].TextUnitID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	s.logger.Debug("sqlite: vector search ok", "scanned", scanned, "returned", len(hits), "duration", time.Since(start))
	return hits, nil
}

// SearchByKeywords returns text units whose content contains any of the
// keywords as a case-sensitive substring. SQLite LIKE folds ASCII case, so
// matching goes through instr() instead. An empty keyword list matches
// nothing.
func (s *Store) SearchByKeywords(ctx context.Context, keywords []string) ([]pocketrag.KeywordHit, error) {
	start := time.Now()
	s.logger.Debug("sqlite: keyword search", "keywords", len(keywords))

	if len(keywords) == 0 {
		return nil, nil
	}

	conds := make([]string, 0, len(keywords))
	args := make([]any, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		conds = append(conds, `instr(content, ?) > 0`)
		args = append(args, kw)
	}
	if len(conds) == 0 {
		return nil, nil
	}

	query := `SELECT id, document_id, sequence, content, content_type
		 FROM text_units WHERE ` + strings.Join(conds, " OR ") + ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("sqlite: keyword search failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var hits []pocketrag.KeywordHit
	for rows.Next() {
		var h pocketrag.KeywordHit
		if err := rows.Scan(&h.ID, &h.DocumentID, &h.Sequence, &h.Content, &h.ContentType); err != nil {
			return nil, fmt.Errorf("scan keyword row: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword rows: %w", err)
	}
	s.logger.Debug("sqlite: keyword search ok", "returned", len(hits), "duration", time.Since(start))
	return hits, nil
}

// DB exposes the underlying database handle for tests and migrations.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error {
	s.logger.Debug("sqlite: store closed")
	return s.db.Close()
}

// cosineDistance returns 1 - cosine similarity. Zero vectors are treated as
// maximally distant.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
