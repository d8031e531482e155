package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	pocketrag "github.com/shunichi0402/pocket-rag"
)

// Provider implements pocketrag.Provider for any OpenAI-compatible API.
type Provider struct {
	apiKey      string
	model       string
	baseURL     string
	client      *http.Client
	name        string
	temperature *float64
	topP        *float64
	maxTokens   int
	seed        *int
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithName overrides the provider name reported by Name().
func WithName(name string) ProviderOption {
	return func(p *Provider) { p.name = name }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) { p.client = c }
}

// WithTemperature sets the sampling temperature (0.0-2.0).
func WithTemperature(t float64) ProviderOption {
	return func(p *Provider) { p.temperature = &t }
}

// WithTopP sets nucleus sampling top-p (0.0-1.0).
func WithTopP(tp float64) ProviderOption {
	return func(p *Provider) { p.topP = &tp }
}

// WithMaxTokens sets the maximum number of output tokens.
func WithMaxTokens(n int) ProviderOption {
	return func(p *Provider) { p.maxTokens = n }
}

// WithSeed sets a deterministic seed for reproducible outputs.
func WithSeed(s int) ProviderOption {
	return func(p *Provider) { p.seed = &s }
}

// NewProvider creates an OpenAI-compatible chat provider.
//
// baseURL is the API base (e.g. "https://api.openai.com/v1",
// "http://localhost:11434/v1"). The /chat/completions path is appended
// automatically.
func NewProvider(apiKey, model, baseURL string, opts ...ProviderOption) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
		name:    "openai",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name (default "openai", configurable via WithName).
func (p *Provider) Name() string { return p.name }

// Chat sends a non-streaming chat request and returns the complete response.
// Non-2xx responses surface as *pocketrag.ErrHTTP so retry middleware can
// classify them.
func (p *Provider) Chat(ctx context.Context, req pocketrag.ChatRequest) (pocketrag.ChatResponse, error) {
	body := chatRequest{
		Model:       p.model,
		Messages:    make([]message, len(req.Messages)),
		Temperature: p.temperature,
		TopP:        p.topP,
		MaxTokens:   p.maxTokens,
		Seed:        p.seed,
	}
	for i, m := range req.Messages {
		body.Messages[i] = message{Role: m.Role, Content: m.Content}
	}
	if req.JSONResponse {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	resp, err := p.post(ctx, "/chat/completions", body)
	if err != nil {
		return pocketrag.ChatResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pocketrag.ChatResponse{}, p.httpErr(resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return pocketrag.ChatResponse{}, &pocketrag.ErrLLM{Provider: p.name, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil {
		return pocketrag.ChatResponse{}, &pocketrag.ErrLLM{Provider: p.name, Message: "response contains no choices"}
	}

	out := pocketrag.ChatResponse{Content: parsed.Choices[0].Message.Content}
	if parsed.Usage != nil {
		out.Usage = pocketrag.Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		}
	}
	return out, nil
}

// post marshals body and sends it to baseURL+path with auth headers.
func (p *Provider) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &pocketrag.ErrLLM{Provider: p.name, Message: fmt.Sprintf("marshal request: %v", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &pocketrag.ErrLLM{Provider: p.name, Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return p.client.Do(httpReq)
}

// httpErr reads the response body and returns an ErrHTTP for retry
// middleware. Parses the Retry-After header when present (429/503).
func (p *Provider) httpErr(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &pocketrag.ErrHTTP{
		Status:     resp.StatusCode,
		Body:       string(body),
		RetryAfter: pocketrag.ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

var _ pocketrag.Provider = (*Provider)(nil)
