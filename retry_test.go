package pocketrag

import (
	"context"
	"errors"
	"testing"
	"time"
)

// countingProvider fails with errs[i] on attempt i, then succeeds.
type countingProvider struct {
	errs  []error
	calls int
}

func (c *countingProvider) Chat(context.Context, ChatRequest) (ChatResponse, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return ChatResponse{}, c.errs[i]
	}
	return ChatResponse{Content: "ok"}, nil
}

func (c *countingProvider) Name() string { return "counting" }

func TestRetryTransientThenSuccess(t *testing.T) {
	inner := &countingProvider{errs: []error{
		&ErrHTTP{Status: 429},
		&ErrHTTP{Status: 503},
	}}
	p := WithRetry(inner, RetryBaseDelay(time.Millisecond))

	resp, err := p.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q", resp.Content)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestRetryNonTransientFailsImmediately(t *testing.T) {
	inner := &countingProvider{errs: []error{&ErrHTTP{Status: 400}}}
	p := WithRetry(inner, RetryBaseDelay(time.Millisecond))

	_, err := p.Chat(context.Background(), ChatRequest{})
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) || httpErr.Status != 400 {
		t.Fatalf("expected the 400 error, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("non-transient errors must not retry, got %d attempts", inner.calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	inner := &countingProvider{errs: []error{
		&ErrHTTP{Status: 429}, &ErrHTTP{Status: 429}, &ErrHTTP{Status: 429},
	}}
	p := WithRetry(inner, RetryBaseDelay(time.Millisecond), RetryMaxAttempts(3))

	if _, err := p.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestRetryHonorsRetryAfter(t *testing.T) {
	after := 30 * time.Millisecond
	inner := &countingProvider{errs: []error{&ErrHTTP{Status: 429, RetryAfter: after}}}
	p := WithRetry(inner, RetryBaseDelay(time.Millisecond))

	start := time.Now()
	if _, err := p.Chat(context.Background(), ChatRequest{}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if elapsed := time.Since(start); elapsed < after {
		t.Errorf("expected at least %v of delay, got %v", after, elapsed)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&ErrHTTP{Status: 429}, true},
		{&ErrHTTP{Status: 503}, true},
		{&ErrHTTP{Status: 500}, false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := isTransient(c.err); got != c.want {
			t.Errorf("isTransient(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := ParseRetryAfter("5"); d != 5*time.Second {
		t.Errorf("ParseRetryAfter(5) = %v", d)
	}
	if d := ParseRetryAfter(""); d != 0 {
		t.Errorf("ParseRetryAfter(empty) = %v", d)
	}
	if d := ParseRetryAfter("soon"); d != 0 {
		t.Errorf("ParseRetryAfter(garbage) = %v", d)
	}
}

type flakyEmbedding struct {
	fakeEmbedding
	failures int
	calls    int
}

func (f *flakyEmbedding) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &ErrHTTP{Status: 503}
	}
	return f.fakeEmbedding.EmbedDocuments(ctx, texts)
}

func TestEmbeddingRetry(t *testing.T) {
	inner := &flakyEmbedding{failures: 1}
	p := WithEmbeddingRetry(inner, RetryBaseDelay(time.Millisecond))

	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", inner.calls)
	}
}
