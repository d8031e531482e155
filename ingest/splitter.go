package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pocketrag "github.com/shunichi0402/pocket-rag"
)

const splitPrompt = `You split long documents into smaller semantically coherent chunks.

Rules:
- Split the given text into chunks of at most %d characters each.
- Prefer boundaries at sentence or clause ends.
- Concatenating the chunks in order must reproduce the input text exactly,
  byte for byte. Do not add, drop, or reorder characters.
- Respond with JSON only, in this exact shape:
  {"chunks": [{"text": "..."}, {"text": "..."}]}

Text:
%s`

// LLMSplitter delegates semantic splitting of oversized bodies to a chat
// model. The model is asked for a JSON chunk list; the SizeGuard verifies
// the reconstruction contract afterward, so a misbehaving model surfaces as
// ErrSplitInvalid rather than silent data loss.
type LLMSplitter struct {
	provider pocketrag.Provider
	maxLen   int
}

// NewLLMSplitter creates a splitter backed by the given chat provider.
// maxLen is the per-chunk ceiling communicated in the prompt; values < 1
// use DefaultMaxUnitLen.
func NewLLMSplitter(provider pocketrag.Provider, maxLen int) *LLMSplitter {
	if maxLen < 1 {
		maxLen = DefaultMaxUnitLen
	}
	return &LLMSplitter{provider: provider, maxLen: maxLen}
}

type splitResponse struct {
	Chunks []struct {
		Text string `json:"text"`
	} `json:"chunks"`
}

// Split asks the model for sub-chunks in the {"chunks": [{"text": ...}]}
// contract. Transport failures and malformed responses are returned as
// errors; the caller decides the degradation policy.
func (s *LLMSplitter) Split(ctx context.Context, text string) ([]string, error) {
	resp, err := s.provider.Chat(ctx, pocketrag.ChatRequest{
		Messages:     []pocketrag.ChatMessage{pocketrag.UserMessage(fmt.Sprintf(splitPrompt, s.maxLen, text))},
		JSONResponse: true,
	})
	if err != nil {
		return nil, fmt.Errorf("split request: %w", err)
	}

	var parsed splitResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content)), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSplitInvalid, err)
	}
	chunks := make([]string, len(parsed.Chunks))
	for i, c := range parsed.Chunks {
		chunks[i] = c.Text
	}
	return chunks, nil
}

// SliceSplitter cuts text into fixed-length rune slices. It is lossless by
// construction and needs no model, at the cost of ignoring semantics. Used
// as the SizeGuard fallback when enabled.
type SliceSplitter struct {
	MaxLen int
}

func (s SliceSplitter) Split(_ context.Context, text string) ([]string, error) {
	maxLen := s.MaxLen
	if maxLen < 1 {
		maxLen = DefaultMaxUnitLen
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+maxLen-1)/maxLen)
	for start := 0; start < len(runes); start += maxLen {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}
