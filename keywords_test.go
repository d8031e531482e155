package pocketrag

import (
	"context"
	"errors"
	"testing"
)

// fakeProvider returns canned chat responses, or an error when err is set.
type fakeProvider struct {
	content  string
	err      error
	requests []ChatRequest
}

func (f *fakeProvider) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return ChatResponse{}, f.err
	}
	return ChatResponse{Content: f.content}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func TestKeywordExtractorOK(t *testing.T) {
	p := &fakeProvider{content: `{"keywords": ["AI", " autonomous driving ", ""]}`}
	e := NewKeywordExtractor(p)

	res, err := e.Extract(context.Background(), "what does the AI do?")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Status != KeywordsOK {
		t.Fatalf("status = %v, want KeywordsOK", res.Status)
	}
	want := []string{"AI", "autonomous driving"}
	if len(res.Keywords) != len(want) {
		t.Fatalf("keywords = %v, want %v", res.Keywords, want)
	}
	for i := range want {
		if res.Keywords[i] != want[i] {
			t.Errorf("keyword %d = %q, want %q", i, res.Keywords[i], want[i])
		}
	}
	if len(p.requests) != 1 || !p.requests[0].JSONResponse {
		t.Error("extraction should request a JSON response")
	}
}

func TestKeywordExtractorMalformedDegrades(t *testing.T) {
	for _, content := range []string{
		"not json at all",
		`{"keywords": "oops"}`,
		`{"other": []}`,
		`{"keywords": []}`,
	} {
		p := &fakeProvider{content: content}
		res, err := NewKeywordExtractor(p).Extract(context.Background(), "query")
		if err != nil {
			t.Errorf("%q: degraded extraction must not return an error, got %v", content, err)
		}
		if res.Status != KeywordsDegraded {
			t.Errorf("%q: status = %v, want KeywordsDegraded", content, res.Status)
		}
		if len(res.Keywords) != 0 {
			t.Errorf("%q: keywords = %v, want empty", content, res.Keywords)
		}
	}
}

func TestKeywordExtractorUnreachable(t *testing.T) {
	transportErr := errors.New("connection refused")
	p := &fakeProvider{err: transportErr}

	res, err := NewKeywordExtractor(p).Extract(context.Background(), "query")
	if !errors.Is(err, transportErr) {
		t.Fatalf("expected the transport error, got %v", err)
	}
	if res.Status != KeywordsUnreachable {
		t.Errorf("status = %v, want KeywordsUnreachable", res.Status)
	}
}
