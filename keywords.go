package pocketrag

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// KeywordStatus classifies the outcome of a keyword extraction call so
// callers can distinguish a usable keyword list from the two degraded modes.
type KeywordStatus int

const (
	// KeywordsOK means the collaborator returned a usable keyword list.
	KeywordsOK KeywordStatus = iota
	// KeywordsDegraded means the collaborator answered but its output was
	// malformed (unparsable JSON or a missing/mistyped "keywords" field).
	// The keyword list is empty and retrieval proceeds vector-only.
	KeywordsDegraded
	// KeywordsUnreachable means the collaborator could not be reached at
	// all. Callers may retry; Extract also returns the transport error.
	KeywordsUnreachable
)

// KeywordResult is the outcome of one extraction call.
type KeywordResult struct {
	Keywords []string
	Status   KeywordStatus
}

const keywordPrompt = `You are a keyword extraction AI for a RAG (Retrieval-Augmented Generation) system. Capture exactly what the user wants to know and extract around 5 keywords useful for search.
The keywords must include the subject of the question and the essence of what the user wants to know.
Respond strictly with a JSON object of this shape:
{"keywords": ["AI", "autonomous driving", "product name"]}`

// KeywordExtractor turns a natural-language query into search keywords using
// a chat LLM. Malformed output degrades to an empty keyword list instead of
// propagating a fatal error.
type KeywordExtractor struct {
	provider Provider
	logger   *slog.Logger
}

// KeywordOption configures a KeywordExtractor.
type KeywordOption func(*KeywordExtractor)

// WithKeywordLogger sets a structured logger for extraction outcomes.
func WithKeywordLogger(l *slog.Logger) KeywordOption {
	return func(e *KeywordExtractor) { e.logger = l }
}

// NewKeywordExtractor creates a KeywordExtractor backed by the given provider.
func NewKeywordExtractor(provider Provider, opts ...KeywordOption) *KeywordExtractor {
	e := &KeywordExtractor{provider: provider, logger: nopLogger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns the keywords for query. The error is non-nil only when the
// collaborator is unreachable (Status KeywordsUnreachable); malformed output
// is recovered locally as KeywordsDegraded with an empty list.
func (e *KeywordExtractor) Extract(ctx context.Context, query string) (KeywordResult, error) {
	resp, err := e.provider.Chat(ctx, ChatRequest{
		Messages: []ChatMessage{
			SystemMessage(keywordPrompt),
			UserMessage(norm.NFC.String(query)),
		},
		JSONResponse: true,
	})
	if err != nil {
		e.logger.Warn("keyword extraction unreachable", "provider", e.provider.Name(), "error", err)
		return KeywordResult{Status: KeywordsUnreachable}, err
	}

	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		e.logger.Warn("keyword extraction returned malformed JSON, degrading to empty set", "error", err)
		return KeywordResult{Status: KeywordsDegraded}, nil
	}

	keywords := parsed.Keywords[:0:0]
	for _, kw := range parsed.Keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return KeywordResult{Status: KeywordsDegraded}, nil
	}

	e.logger.Debug("keywords extracted", "count", len(keywords))
	return KeywordResult{Keywords: keywords, Status: KeywordsOK}, nil
}
