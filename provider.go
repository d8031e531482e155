package pocketrag

import "context"

// --- LLM protocol types ---

type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	// JSONResponse asks the provider to constrain output to a single JSON
	// object (response_format json_object on OpenAI-compatible APIs).
	JSONResponse bool `json:"-"`
}

type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// UserMessage builds a user-role chat message.
func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

// SystemMessage builds a system-role chat message.
func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

// Provider abstracts the chat LLM backend used for semantic splitting and
// keyword extraction. Handles are injected into the components that need
// them; there is no package-level client.
type Provider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// Name returns the provider name (e.g. "openai").
	Name() string
}

// EmbeddingProvider abstracts text embedding. Document and query texts may be
// encoded differently by the underlying model, so the two paths are separate
// methods.
type EmbeddingProvider interface {
	// EmbedDocuments returns one embedding vector per input text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery returns the search-side embedding for a query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}
