package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	pocketrag "github.com/shunichi0402/pocket-rag"
)

// recordingStore captures InsertDocument calls.
type recordingStore struct {
	doc        pocketrag.Document
	units      []pocketrag.TextUnit
	embeddings [][]float32
	inserts    int
	insertErr  error
}

func (r *recordingStore) Init(context.Context) error                              { return nil }
func (r *recordingStore) SetProjectInfo(context.Context, map[string]string) error { return nil }
func (r *recordingStore) ProjectInfo(context.Context) (map[string]string, error)  { return nil, nil }

func (r *recordingStore) InsertDocument(_ context.Context, doc pocketrag.Document, units []pocketrag.TextUnit, embeddings [][]float32) (int64, error) {
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	r.inserts++
	r.doc = doc
	r.units = units
	r.embeddings = embeddings
	return 42, nil
}

func (r *recordingStore) Document(context.Context, int64) (pocketrag.Document, error) {
	return pocketrag.Document{}, pocketrag.ErrNotFound
}
func (r *recordingStore) Documents(context.Context) ([]pocketrag.Document, error) { return nil, nil }
func (r *recordingStore) DeleteDocument(context.Context, int64) error             { return nil }
func (r *recordingStore) TextUnits(context.Context, int64) ([]pocketrag.TextUnit, error) {
	return nil, nil
}
func (r *recordingStore) TextUnit(context.Context, int64, int) (pocketrag.TextUnit, error) {
	return pocketrag.TextUnit{}, pocketrag.ErrNotFound
}
func (r *recordingStore) SearchByVector(context.Context, []float32, int) ([]pocketrag.VectorHit, error) {
	return nil, nil
}
func (r *recordingStore) SearchByKeywords(context.Context, []string) ([]pocketrag.KeywordHit, error) {
	return nil, nil
}
func (r *recordingStore) Close() error { return nil }

type countingEmbedding struct {
	batches [][]string
	err     error
}

func (c *countingEmbedding) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.batches = append(c.batches, texts)
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(len(texts[i])), 0}
	}
	return vecs, nil
}

func (c *countingEmbedding) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *countingEmbedding) Dimensions() int { return 2 }
func (c *countingEmbedding) Name() string    { return "counting" }

func TestSequenceAssignsContiguousNumbers(t *testing.T) {
	units := []pocketrag.TextUnit{{Content: "a"}, {Content: "b"}, {Content: "c"}}
	units = Sequence(units)
	for i, u := range units {
		if u.Sequence != i {
			t.Errorf("unit %d has sequence %d", i, u.Sequence)
		}
	}
}

func TestIngestMarkdown(t *testing.T) {
	store := &recordingStore{}
	emb := &countingEmbedding{}
	ing := NewIngestor(store, emb, SliceSplitter{MaxLen: DefaultMaxUnitLen})

	md := "# A\n\npara1\n\n## B\n\npara2\n"
	res, err := ing.IngestMarkdown(context.Background(), "guide.md", md)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.DocumentID != 42 || res.UnitCount != 2 {
		t.Fatalf("result = %+v", res)
	}
	if store.doc.Name != "guide.md" || store.doc.Content != md {
		t.Errorf("stored document = %+v", store.doc)
	}
	if store.doc.UnitCount != 2 {
		t.Errorf("unit count = %d", store.doc.UnitCount)
	}
	if len(store.units) != 2 || len(store.embeddings) != 2 {
		t.Fatalf("stored %d units, %d embeddings", len(store.units), len(store.embeddings))
	}
	for i, u := range store.units {
		if u.Sequence != i {
			t.Errorf("unit %d has sequence %d", i, u.Sequence)
		}
		if u.ContentType != pocketrag.ContentTypeText {
			t.Errorf("unit %d content type %q", i, u.ContentType)
		}
	}
	if store.units[0].Content != "# A\npara1" {
		t.Errorf("unit 0 = %q", store.units[0].Content)
	}
}

func TestIngestEmbedsInBatches(t *testing.T) {
	store := &recordingStore{}
	emb := &countingEmbedding{}
	ing := NewIngestor(store, emb, SliceSplitter{}, WithBatchSize(2))

	var md strings.Builder
	for _, s := range []string{"One", "Two", "Three", "Four", "Five"} {
		md.WriteString("# " + s + "\n\ntext for " + s + "\n\n")
	}
	if _, err := ing.IngestMarkdown(context.Background(), "doc", md.String()); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(emb.batches) != 3 {
		t.Fatalf("expected 3 batches of size <= 2, got %d", len(emb.batches))
	}
	if len(store.embeddings) != 5 {
		t.Errorf("expected 5 embeddings, got %d", len(store.embeddings))
	}
}

func TestIngestEmbeddingFailureSkipsStore(t *testing.T) {
	store := &recordingStore{}
	emb := &countingEmbedding{err: errors.New("embed down")}
	ing := NewIngestor(store, emb, SliceSplitter{})

	_, err := ing.IngestMarkdown(context.Background(), "doc", "# A\n\nbody\n")
	if err == nil {
		t.Fatal("expected an error")
	}
	if store.inserts != 0 {
		t.Error("nothing must be stored when embedding fails")
	}
}

func TestIngestOversizedBlockFailsDocument(t *testing.T) {
	store := &recordingStore{}
	emb := &countingEmbedding{}
	// A splitter that always drops text makes every oversized block fatal.
	bad := &stubSplitter{chunks: []string{"x"}}
	ing := NewIngestor(store, emb, bad,
		WithSizeGuard(NewSizeGuard(bad, WithMaxUnitLen(10))))

	md := "# A\n\n" + strings.Repeat("long ", 10) + "\n"
	if _, err := ing.IngestMarkdown(context.Background(), "doc", md); !errors.Is(err, ErrSplitInvalid) {
		t.Fatalf("expected ErrSplitInvalid, got %v", err)
	}
	if store.inserts != 0 {
		t.Error("failed documents must not be stored")
	}
}

func TestIngestFileDetectsContentType(t *testing.T) {
	store := &recordingStore{}
	ing := NewIngestor(store, &countingEmbedding{}, SliceSplitter{})

	res, err := ing.IngestFile(context.Background(), []byte("# T\n\nbody\n"), "/tmp/notes.md")
	if err != nil {
		t.Fatalf("ingest file: %v", err)
	}
	if res.Document.Name != "notes.md" || res.Document.Path != "/tmp/notes.md" {
		t.Errorf("document = %+v", res.Document)
	}
	if len(store.units) != 1 || store.units[0].Content != "# T\nbody" {
		t.Errorf("units = %+v", store.units)
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	store := &recordingStore{}
	ing := NewIngestor(store, &countingEmbedding{}, SliceSplitter{})

	res, err := ing.IngestMarkdown(context.Background(), "empty", "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.UnitCount != 0 {
		t.Errorf("expected 0 units, got %d", res.UnitCount)
	}
	if store.inserts != 1 {
		t.Error("an empty document should still be recorded")
	}
}
