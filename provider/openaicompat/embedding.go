package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	pocketrag "github.com/shunichi0402/pocket-rag"
)

// EmbeddingProvider implements pocketrag.EmbeddingProvider for any
// OpenAI-compatible embeddings API.
type EmbeddingProvider struct {
	provider   *Provider
	dimensions int
}

// NewEmbeddingProvider creates an OpenAI-compatible embedding provider.
// dimensions is the vector size the model produces; values < 1 use
// pocketrag.DefaultDimensions.
func NewEmbeddingProvider(apiKey, model, baseURL string, dimensions int, opts ...ProviderOption) *EmbeddingProvider {
	if dimensions < 1 {
		dimensions = pocketrag.DefaultDimensions
	}
	return &EmbeddingProvider{
		provider:   NewProvider(apiKey, model, baseURL, opts...),
		dimensions: dimensions,
	}
}

// Name returns the provider name.
func (e *EmbeddingProvider) Name() string { return e.provider.name }

// Dimensions returns the vector size this provider produces.
func (e *EmbeddingProvider) Dimensions() int { return e.dimensions }

// EmbedDocuments embeds a batch of texts and returns one vector per text,
// aligned by index.
func (e *EmbeddingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.provider.post(ctx, "/embeddings", embeddingRequest{
		Model: e.provider.model,
		Input: texts,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.provider.httpErr(resp)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &pocketrag.ErrLLM{Provider: e.provider.name, Message: fmt.Sprintf("decode embeddings: %v", err)}
	}
	if len(parsed.Data) != len(texts) {
		return nil, &pocketrag.ErrLLM{
			Provider: e.provider.name,
			Message:  fmt.Sprintf("got %d embeddings for %d inputs", len(parsed.Data), len(texts)),
		}
	}

	// The API may return data out of order; index is authoritative.
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (e *EmbeddingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

var _ pocketrag.EmbeddingProvider = (*EmbeddingProvider)(nil)
