// Package project composes the ingest and retrieval layers into
// self-contained knowledge-base projects, each backed by its own store.
package project

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	pocketrag "github.com/shunichi0402/pocket-rag"
	"github.com/shunichi0402/pocket-rag/ingest"
)

// Project is one knowledge base: a store plus the ingest pipeline and
// hybrid searcher bound to it. Writes serialize through a per-project
// mutex so concurrent document updates cannot interleave.
type Project struct {
	id       string
	store    pocketrag.Store
	ingestor *ingest.Ingestor
	searcher *pocketrag.HybridSearcher
	logger   *slog.Logger

	mu sync.Mutex
}

// ID returns the project identifier.
func (p *Project) ID() string { return p.id }

// Info returns the project metadata (name, id, creation time).
func (p *Project) Info(ctx context.Context) (map[string]string, error) {
	return p.store.ProjectInfo(ctx)
}

// AddMarkdown ingests markdown content as a new document and returns it.
func (p *Project) AddMarkdown(ctx context.Context, name, markdown string) (pocketrag.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.ingestor.IngestMarkdown(ctx, name, markdown)
	if err != nil {
		return pocketrag.Document{}, fmt.Errorf("add markdown %q: %w", name, err)
	}
	return res.Document, nil
}

// AddFile ingests raw file content, detecting the format from the filename
// extension, and returns the stored document.
func (p *Project) AddFile(ctx context.Context, content []byte, filename string) (pocketrag.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.ingestor.IngestFile(ctx, content, filename)
	if err != nil {
		return pocketrag.Document{}, fmt.Errorf("add file %q: %w", filename, err)
	}
	return res.Document, nil
}

// AddPath reads a file from disk and ingests it as a new document.
func (p *Project) AddPath(ctx context.Context, path string) (pocketrag.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return pocketrag.Document{}, fmt.Errorf("add path %q: %w", path, err)
	}
	return p.AddFile(ctx, content, path)
}

// UpdateDocument replaces a document's content. The new content is ingested
// under the same name and receives a new id; the old document is removed
// only after the new generation is committed, so a failed update leaves the
// old document intact. Returns pocketrag.ErrNotFound when the id does not
// exist.
func (p *Project) UpdateDocument(ctx context.Context, id int64, markdown string) (pocketrag.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	old, err := p.store.Document(ctx, id)
	if err != nil {
		return pocketrag.Document{}, err
	}
	res, err := p.ingestor.IngestMarkdown(ctx, old.Name, markdown)
	if err != nil {
		return pocketrag.Document{}, fmt.Errorf("update document %d: %w", id, err)
	}
	if err := p.store.DeleteDocument(ctx, id); err != nil {
		_ = p.store.DeleteDocument(ctx, res.DocumentID)
		return pocketrag.Document{}, fmt.Errorf("update document %d: %w", id, err)
	}
	p.logger.Info("document updated", "project", p.id, "old_id", id, "new_id", res.DocumentID)
	return res.Document, nil
}

// RemoveDocument deletes a document and its text units. Removing an absent
// id is not an error.
func (p *Project) RemoveDocument(ctx context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.DeleteDocument(ctx, id)
}

// Documents returns all documents in the project.
func (p *Project) Documents(ctx context.Context) ([]pocketrag.Document, error) {
	return p.store.Documents(ctx)
}

// Document returns a single document by id.
func (p *Project) Document(ctx context.Context, id int64) (pocketrag.Document, error) {
	return p.store.Document(ctx, id)
}

// TextUnits returns a document's text units in sequence order.
func (p *Project) TextUnits(ctx context.Context, documentID int64) ([]pocketrag.TextUnit, error) {
	return p.store.TextUnits(ctx, documentID)
}

// SearchByVector runs semantic-only retrieval.
func (p *Project) SearchByVector(ctx context.Context, query string, k int) ([]pocketrag.VectorHit, error) {
	return p.searcher.SearchByVector(ctx, query, k)
}

// SearchByKeyword runs keyword-only retrieval.
func (p *Project) SearchByKeyword(ctx context.Context, query string) ([]pocketrag.KeywordHit, error) {
	return p.searcher.SearchByKeyword(ctx, query)
}

// SearchHybrid runs fused vector plus keyword retrieval and returns the
// top k hits by hybrid score.
func (p *Project) SearchHybrid(ctx context.Context, query string, k int) ([]pocketrag.SearchHit, error) {
	return p.searcher.Search(ctx, query, k)
}

// Close releases the underlying store.
func (p *Project) Close() error {
	return p.store.Close()
}
