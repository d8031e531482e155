package pocketrag

// --- Domain types (database records) ---

// Document is a persisted source document. Content holds the full original
// text; UnitCount is the number of text units produced at ingestion.
type Document struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	Content   string `json:"content"`
	UnitCount int    `json:"unit_count"`
	CreatedAt int64  `json:"created_at"`
}

// TextUnit is the smallest persisted, independently retrievable slice of a
// document. Content carries the heading-path prefix followed by the body
// text. Sequence values are contiguous 0..n-1 per document and are the only
// mechanism for reconstructing original document order.
type TextUnit struct {
	ID          int64     `json:"id"`
	DocumentID  int64     `json:"document_id"`
	Sequence    int       `json:"sequence"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	Embedding   []float32 `json:"-"`
}

// ContentTypeText is the content type tag for plain text units.
const ContentTypeText = "text"

// --- Search result types ---

// VectorHit is one row returned by a vector search, ordered by ascending
// distance. TextUnitID shares an identifier domain with KeywordHit.ID.
type VectorHit struct {
	TextUnitID      int64   `json:"text_unit_id"`
	Distance        float64 `json:"distance"`
	Content         string  `json:"text_unit_content"`
	DocumentContent string  `json:"document_content"`
}

// KeywordHit is one row returned by a keyword search. ID shares an
// identifier domain with VectorHit.TextUnitID.
type KeywordHit struct {
	ID          int64  `json:"id"`
	DocumentID  int64  `json:"document_id"`
	Sequence    int    `json:"sequence"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// SearchHit is one fused, scored retrieval result. Content fields come from
// the vector hit when one exists for the identifier, else from the keyword
// hit.
type SearchHit struct {
	ID              int64   `json:"id"`
	Content         string  `json:"content"`
	DocumentContent string  `json:"document_content,omitempty"`
	DocumentID      int64   `json:"document_id,omitempty"`
	Sequence        int     `json:"sequence,omitempty"`
	ContentType     string  `json:"content_type,omitempty"`
	VectorScore     float64 `json:"vector_score"`
	KeywordScore    float64 `json:"keyword_score"`
	HybridScore     float64 `json:"hybrid_score"`
}
