package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	pocketrag "github.com/shunichi0402/pocket-rag"
)

// IngestResult holds the outcome of an ingest operation.
type IngestResult struct {
	DocumentID int64
	Document   pocketrag.Document
	UnitCount  int
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithSizeGuard replaces the default size guard.
func WithSizeGuard(g *SizeGuard) Option {
	return func(ing *Ingestor) { ing.guard = g }
}

// WithExtractor registers or replaces the extractor for a content type.
func WithExtractor(ct ContentType, e Extractor) Option {
	return func(ing *Ingestor) { ing.extractors[ct] = e }
}

// WithBatchSize sets the embedding batch size (default 64).
func WithBatchSize(n int) Option {
	return func(ing *Ingestor) { ing.batchSize = n }
}

// WithLogger sets a structured logger for ingest operations.
func WithLogger(l *slog.Logger) Option {
	return func(ing *Ingestor) { ing.logger = l }
}

// WithTracer sets a tracer for ingest operations.
func WithTracer(t pocketrag.Tracer) Option {
	return func(ing *Ingestor) { ing.tracer = t }
}

// Ingestor provides end-to-end ingestion: extract, decompose along the
// heading structure, enforce the size ceiling, embed, and store. A document
// either lands fully indexed or not at all; the store's insert is atomic.
type Ingestor struct {
	store      pocketrag.Store
	embedding  pocketrag.EmbeddingProvider
	decomposer *Decomposer
	guard      *SizeGuard
	extractors map[ContentType]Extractor
	batchSize  int
	logger     *slog.Logger
	tracer     pocketrag.Tracer
}

// NewIngestor creates an Ingestor. The splitter handles blocks that exceed
// the size ceiling; pass an LLMSplitter for semantic splits or a
// SliceSplitter when no chat model is available.
func NewIngestor(store pocketrag.Store, emb pocketrag.EmbeddingProvider, splitter Splitter, opts ...Option) *Ingestor {
	ing := &Ingestor{
		store:      store,
		embedding:  emb,
		decomposer: NewDecomposer(),
		guard:      NewSizeGuard(splitter),
		extractors: map[ContentType]Extractor{
			TypePlainText: PlainTextExtractor{},
			TypeMarkdown:  PlainTextExtractor{},
			TypeHTML:      HTMLExtractor{},
			TypePDF:       PDFExtractor{},
		},
		batchSize: 64,
		logger:    slog.New(discardHandler{}),
	}
	for _, o := range opts {
		o(ing)
	}
	return ing
}

// IngestMarkdown ingests markdown content under the given document name.
func (ing *Ingestor) IngestMarkdown(ctx context.Context, name, markdown string) (IngestResult, error) {
	return ing.ingest(ctx, name, "", markdown)
}

// IngestFile ingests file content, detecting the content type from the
// filename extension.
func (ing *Ingestor) IngestFile(ctx context.Context, content []byte, filename string) (IngestResult, error) {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	ct := ContentTypeFromExtension(ext)

	extractor, ok := ing.extractors[ct]
	if !ok {
		extractor = PlainTextExtractor{}
	}
	text, err := extractor.Extract(content)
	if err != nil {
		return IngestResult{}, fmt.Errorf("extract %s: %w", ct, err)
	}
	return ing.ingest(ctx, filepath.Base(filename), filename, text)
}

// IngestReader reads all content from r and ingests it, detecting the
// content type from filename.
func (ing *Ingestor) IngestReader(ctx context.Context, r io.Reader, filename string) (IngestResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return IngestResult{}, fmt.Errorf("read: %w", err)
	}
	return ing.IngestFile(ctx, data, filename)
}

func (ing *Ingestor) ingest(ctx context.Context, name, path, markdown string) (IngestResult, error) {
	if ing.tracer != nil {
		var span pocketrag.Span
		ctx, span = ing.tracer.Start(ctx, "ingest.document",
			pocketrag.StringAttr("document.name", name))
		defer span.End()
	}
	opID := pocketrag.NewID()

	units, err := ing.decomposeAndBound(ctx, markdown)
	if err != nil {
		return IngestResult{}, err
	}
	units = Sequence(units)

	embeddings, err := ing.batchEmbed(ctx, units)
	if err != nil {
		return IngestResult{}, err
	}

	doc := pocketrag.Document{
		Name:      name,
		Path:      path,
		Content:   markdown,
		UnitCount: len(units),
		CreatedAt: pocketrag.NowUnix(),
	}
	docID, err := ing.store.InsertDocument(ctx, doc, units, embeddings)
	if err != nil {
		return IngestResult{}, fmt.Errorf("store: %w", err)
	}
	doc.ID = docID

	ing.logger.Info("document ingested",
		"op_id", opID, "document_id", docID, "name", name, "units", len(units))
	return IngestResult{DocumentID: docID, Document: doc, UnitCount: len(units)}, nil
}

// decomposeAndBound walks the structural blocks in document order and
// expands any oversized block into its split units.
func (ing *Ingestor) decomposeAndBound(ctx context.Context, markdown string) ([]pocketrag.TextUnit, error) {
	blocks := ing.decomposer.Decompose(markdown)
	var units []pocketrag.TextUnit
	for _, b := range blocks {
		bounded, err := ing.guard.Bound(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("bound block under %q: %w", strings.TrimSpace(b.HeadingPath), err)
		}
		units = append(units, bounded...)
	}
	return units, nil
}

// batchEmbed embeds unit contents in batches and returns one vector per
// unit, aligned by index.
func (ing *Ingestor) batchEmbed(ctx context.Context, units []pocketrag.TextUnit) ([][]float32, error) {
	if len(units) == 0 {
		return nil, nil
	}
	embeddings := make([][]float32, 0, len(units))
	for i := 0; i < len(units); i += ing.batchSize {
		end := i + ing.batchSize
		if end > len(units) {
			end = len(units)
		}
		texts := make([]string, end-i)
		for j := i; j < end; j++ {
			texts[j-i] = units[j].Content
		}
		vecs, err := ing.embedding.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", i, end, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embed batch %d-%d: got %d vectors for %d texts", i, end, len(vecs), len(texts))
		}
		embeddings = append(embeddings, vecs...)
	}
	return embeddings, nil
}
