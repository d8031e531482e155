package pocketrag

import "context"

// Store abstracts persistence for one project: a document record, its
// ordered text units, and one embedding per unit.
//
// InsertDocument and DeleteDocument are single logical transactions: either
// every row is committed or none is. Implementations must surface partial
// failure as an error, never commit a truncated unit list.
type Store interface {
	// Init creates all required tables. Safe to call multiple times.
	Init(ctx context.Context) error

	// --- Project info ---
	SetProjectInfo(ctx context.Context, params map[string]string) error
	ProjectInfo(ctx context.Context) (map[string]string, error)

	// --- Documents + text units ---

	// InsertDocument stores doc, its text units (in slice order, sequences
	// already assigned), and one embedding per unit, atomically. It returns
	// the new document id.
	InsertDocument(ctx context.Context, doc Document, units []TextUnit, embeddings [][]float32) (int64, error)
	// Document returns the document with the given id, or ErrNotFound.
	Document(ctx context.Context, id int64) (Document, error)
	Documents(ctx context.Context) ([]Document, error)
	// DeleteDocument removes the document, its text units, and their
	// embeddings atomically. Deleting an absent id is not an error.
	DeleteDocument(ctx context.Context, id int64) error

	// TextUnits returns all units of a document ordered by sequence.
	TextUnits(ctx context.Context, documentID int64) ([]TextUnit, error)
	// TextUnit returns one unit by document id and sequence, or ErrNotFound.
	TextUnit(ctx context.Context, documentID int64, sequence int) (TextUnit, error)

	// --- Search ---

	// SearchByVector returns up to k hits ordered by ascending distance.
	SearchByVector(ctx context.Context, embedding []float32, k int) ([]VectorHit, error)
	// SearchByKeywords returns all units whose content contains any keyword
	// as a case-sensitive substring (logical OR). An empty keyword list
	// yields no hits.
	SearchByKeywords(ctx context.Context, keywords []string) ([]KeywordHit, error)

	// --- Lifecycle ---
	Close() error
}
