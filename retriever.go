package pocketrag

import (
	"context"
	"fmt"
	"log/slog"
)

// SearcherOption configures a HybridSearcher.
type SearcherOption func(*searcherConfig)

type searcherConfig struct {
	vectorWeight  float64
	keywordWeight float64
	overfetch     int
	logger        *slog.Logger
	tracer        Tracer
}

// WithVectorWeight sets the weight applied to the distance-derived vector
// score. Default is DefaultVectorWeight.
func WithVectorWeight(w float64) SearcherOption {
	return func(c *searcherConfig) { c.vectorWeight = w }
}

// WithKeywordWeight sets the weight applied to the binary keyword-presence
// score. Default is DefaultKeywordWeight.
func WithKeywordWeight(w float64) SearcherOption {
	return func(c *searcherConfig) { c.keywordWeight = w }
}

// WithOverfetch sets the multiplier for over-fetching vector candidates
// before fusion. Search fetches k*multiplier vector hits, fuses, then trims
// to k. Default is 2.
func WithOverfetch(n int) SearcherOption {
	return func(c *searcherConfig) { c.overfetch = n }
}

// WithSearcherLogger sets a structured logger for search operations.
func WithSearcherLogger(l *slog.Logger) SearcherOption {
	return func(c *searcherConfig) { c.logger = l }
}

// WithSearcherTracer sets an optional Tracer; each Search call becomes one span.
func WithSearcherTracer(t Tracer) SearcherOption {
	return func(c *searcherConfig) { c.tracer = t }
}

// HybridSearcher composes query embedding, vector search, keyword extraction,
// keyword search, and weighted-score fusion into a single Search call.
type HybridSearcher struct {
	store     Store
	embedding EmbeddingProvider
	keywords  *KeywordExtractor
	cfg       searcherConfig
}

// NewHybridSearcher creates a searcher over the given store. The keyword
// extractor may be nil, in which case queries are served vector-only.
func NewHybridSearcher(store Store, embedding EmbeddingProvider, keywords *KeywordExtractor, opts ...SearcherOption) *HybridSearcher {
	cfg := searcherConfig{
		vectorWeight:  DefaultVectorWeight,
		keywordWeight: DefaultKeywordWeight,
		overfetch:     2,
		logger:        nopLogger,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &HybridSearcher{store: store, embedding: embedding, keywords: keywords, cfg: cfg}
}

// SearchByVector embeds the query and returns up to k vector hits ordered by
// ascending distance.
func (h *HybridSearcher) SearchByVector(ctx context.Context, query string, k int) ([]VectorHit, error) {
	vec, err := h.embedding.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := h.store.SearchByVector(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

// SearchByKeyword extracts keywords from the query and returns every unit
// containing any of them. Malformed or unreachable extraction degrades to an
// empty result rather than failing the call.
func (h *HybridSearcher) SearchByKeyword(ctx context.Context, query string) ([]KeywordHit, error) {
	if h.keywords == nil {
		return nil, nil
	}
	res, err := h.keywords.Extract(ctx, query)
	if err != nil || len(res.Keywords) == 0 {
		// Degraded per the keyword-degradation contract; the caller still
		// gets the vector signal.
		h.cfg.logger.Warn("keyword search degraded to empty set", "status", res.Status, "error", err)
		return nil, nil
	}
	hits, err := h.store.SearchByKeywords(ctx, res.Keywords)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return hits, nil
}

// Search runs the full hybrid retrieval: vector search with overfetch,
// keyword search, and weighted-score fusion, returning at most k hits.
// Vector-path failures are fatal; only the keyword path degrades silently.
func (h *HybridSearcher) Search(ctx context.Context, query string, k int) ([]SearchHit, error) {
	if h.cfg.tracer != nil {
		var span Span
		ctx, span = h.cfg.tracer.Start(ctx, "pocketrag.search",
			StringAttr("query", query), IntAttr("k", k))
		defer span.End()
	}

	if k <= 0 {
		return nil, nil
	}

	fetchK := k * h.cfg.overfetch
	if fetchK < k {
		fetchK = k
	}

	vectorHits, err := h.SearchByVector(ctx, query, fetchK)
	if err != nil {
		return nil, err
	}

	keywordHits, err := h.SearchByKeyword(ctx, query)
	if err != nil {
		return nil, err
	}

	results := Fuse(vectorHits, keywordHits, k, h.cfg.vectorWeight, h.cfg.keywordWeight)
	h.cfg.logger.Debug("hybrid search completed",
		"vector_hits", len(vectorHits), "keyword_hits", len(keywordHits), "results", len(results))
	return results, nil
}
