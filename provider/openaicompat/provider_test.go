package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pocketrag "github.com/shunichi0402/pocket-rag"
)

func TestChat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hello back"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3}
		}`))
	}))
	defer srv.Close()

	p := NewProvider("test-key", "test-model", srv.URL, WithTemperature(0.2))
	resp, err := p.Chat(context.Background(), pocketrag.ChatRequest{
		Messages: []pocketrag.ChatMessage{pocketrag.UserMessage("hello")},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "hello back" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 3 {
		t.Errorf("usage = %+v", resp.Usage)
	}

	if got["model"] != "test-model" {
		t.Errorf("model = %v", got["model"])
	}
	if got["temperature"] != 0.2 {
		t.Errorf("temperature = %v", got["temperature"])
	}
	if _, ok := got["response_format"]; ok {
		t.Error("response_format must be absent without JSONResponse")
	}
}

func TestChatJSONResponseFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices": [{"message": {"content": "{}"}}]}`))
	}))
	defer srv.Close()

	p := NewProvider("k", "m", srv.URL)
	if _, err := p.Chat(context.Background(), pocketrag.ChatRequest{
		Messages:     []pocketrag.ChatMessage{pocketrag.UserMessage("x")},
		JSONResponse: true,
	}); err != nil {
		t.Fatalf("chat: %v", err)
	}

	rf, ok := got["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_object" {
		t.Errorf("response_format = %v", got["response_format"])
	}
}

func TestChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	p := NewProvider("k", "m", srv.URL)
	_, err := p.Chat(context.Background(), pocketrag.ChatRequest{
		Messages: []pocketrag.ChatMessage{pocketrag.UserMessage("x")},
	})

	var httpErr *pocketrag.ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *ErrHTTP, got %v", err)
	}
	if httpErr.Status != http.StatusTooManyRequests || httpErr.Body != "slow down" {
		t.Errorf("err = %+v", httpErr)
	}
	if httpErr.RetryAfter != 7*time.Second {
		t.Errorf("retry after = %v", httpErr.RetryAfter)
	}
}

func TestChatEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	p := NewProvider("k", "m", srv.URL)
	_, err := p.Chat(context.Background(), pocketrag.ChatRequest{
		Messages: []pocketrag.ChatMessage{pocketrag.UserMessage("x")},
	})

	var llmErr *pocketrag.ErrLLM
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected *ErrLLM, got %v", err)
	}
}

func TestEmbedDocumentsSortsByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if inputs, _ := req["input"].([]any); len(inputs) != 2 {
			t.Errorf("input = %v", req["input"])
		}
		// Out of order on purpose.
		w.Write([]byte(`{"data": [
			{"index": 1, "embedding": [0, 1]},
			{"index": 0, "embedding": [1, 0]}
		]}`))
	}))
	defer srv.Close()

	e := NewEmbeddingProvider("k", "m", srv.URL, 2)
	vecs, err := e.EmbedDocuments(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Fatalf("vectors = %v", vecs)
	}
}

func TestEmbedDocumentsCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"index": 0, "embedding": [1]}]}`))
	}))
	defer srv.Close()

	e := NewEmbeddingProvider("k", "m", srv.URL, 1)
	if _, err := e.EmbedDocuments(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected an error for truncated embedding batch")
	}
}

func TestEmbedDocumentsEmptyInput(t *testing.T) {
	e := NewEmbeddingProvider("k", "m", "http://unused", 4)
	vecs, err := e.EmbedDocuments(context.Background(), nil)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vecs != nil {
		t.Errorf("vectors = %v", vecs)
	}
}

func TestEmbedQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"index": 0, "embedding": [0.5, 0.5]}]}`))
	}))
	defer srv.Close()

	e := NewEmbeddingProvider("k", "m", srv.URL, 2)
	vec, err := e.EmbedQuery(context.Background(), "question")
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("vector = %v", vec)
	}
}

func TestDimensionsDefault(t *testing.T) {
	e := NewEmbeddingProvider("k", "m", "http://unused", 0)
	if e.Dimensions() != pocketrag.DefaultDimensions {
		t.Errorf("dimensions = %d", e.Dimensions())
	}
}
