package observer

import (
	"context"
	"testing"

	pocketrag "github.com/shunichi0402/pocket-rag"

	"go.opentelemetry.io/otel/attribute"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type stubChat struct{}

func (stubChat) Chat(context.Context, pocketrag.ChatRequest) (pocketrag.ChatResponse, error) {
	return pocketrag.ChatResponse{
		Content: "ok",
		Usage:   pocketrag.Usage{InputTokens: 3, OutputTokens: 1},
	}, nil
}

func (stubChat) Name() string { return "stub" }

type stubEmbed struct{}

func (stubEmbed) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

func (stubEmbed) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

func (stubEmbed) Dimensions() int { return 1 }
func (stubEmbed) Name() string    { return "stub" }

func newTestInstruments(t *testing.T) (*Instruments, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	lp := sdklog.NewLoggerProvider()
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })

	meter := mp.Meter("test")
	tokenUsage, err := meter.Int64Counter("llm.token.usage")
	if err != nil {
		t.Fatalf("token counter: %v", err)
	}
	llmRequests, err := meter.Int64Counter("llm.requests")
	if err != nil {
		t.Fatalf("request counter: %v", err)
	}
	embedRequests, err := meter.Int64Counter("embedding.requests")
	if err != nil {
		t.Fatalf("embed counter: %v", err)
	}
	llmDuration, err := meter.Float64Histogram("llm.duration")
	if err != nil {
		t.Fatalf("llm histogram: %v", err)
	}
	embedDuration, err := meter.Float64Histogram("embedding.duration")
	if err != nil {
		t.Fatalf("embed histogram: %v", err)
	}

	return &Instruments{
		Tracer:        tp.Tracer("test"),
		Meter:         meter,
		Logger:        lp.Logger("test"),
		TokenUsage:    tokenUsage,
		LLMRequests:   llmRequests,
		EmbedRequests: embedRequests,
		LLMDuration:   llmDuration,
		EmbedDuration: embedDuration,
	}, exp
}

func attrValue(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestWrapProviderChatSpan(t *testing.T) {
	inst, exp := newTestInstruments(t)
	p := WrapProvider(stubChat{}, "test-model", inst)

	if _, err := p.Chat(context.Background(), pocketrag.ChatRequest{}); err != nil {
		t.Fatalf("chat: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "llm.chat" {
		t.Fatalf("spans = %+v", spans)
	}
	if v, ok := attrValue(spans[0].Attributes, AttrLLMMethod); !ok || v.AsString() != "chat" {
		t.Errorf("llm.method attr = %v (present %v)", v.AsString(), ok)
	}
	if v, ok := attrValue(spans[0].Attributes, AttrLLMModel); !ok || v.AsString() != "test-model" {
		t.Errorf("llm.model attr = %v (present %v)", v.AsString(), ok)
	}
	if v, ok := attrValue(spans[0].Attributes, AttrTokensInput); !ok || v.AsInt64() != 3 {
		t.Errorf("token attr = %v (present %v)", v.AsInt64(), ok)
	}
}

func TestWrapEmbeddingSpans(t *testing.T) {
	inst, exp := newTestInstruments(t)
	e := WrapEmbedding(stubEmbed{}, "embed-model", inst)
	ctx := context.Background()

	if _, err := e.EmbedDocuments(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("embed documents: %v", err)
	}
	if _, err := e.EmbedQuery(ctx, "q"); err != nil {
		t.Fatalf("embed query: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans", len(spans))
	}
	wantMethods := map[string]string{
		"llm.embed_documents": "embed_documents",
		"llm.embed_query":     "embed_query",
	}
	for _, s := range spans {
		want, ok := wantMethods[s.Name]
		if !ok {
			t.Errorf("unexpected span %q", s.Name)
			continue
		}
		if v, ok := attrValue(s.Attributes, AttrLLMMethod); !ok || v.AsString() != want {
			t.Errorf("%s llm.method attr = %v (present %v)", s.Name, v.AsString(), ok)
		}
	}
	docSpan := spans[0]
	if v, ok := attrValue(docSpan.Attributes, AttrEmbedTextCount); !ok || v.AsInt64() != 2 {
		t.Errorf("text count attr = %v (present %v)", v.AsInt64(), ok)
	}
}
