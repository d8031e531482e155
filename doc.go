// Package pocketrag is a small retrieval-augmented-generation toolkit for Go.
//
// It ingests markdown documents into bounded-size, heading-scoped text units
// and serves ranked retrieval results that fuse a semantic (vector) signal
// with a lexical (keyword) signal.
//
// # Quick Start
//
// Open a project, ingest a document, and search:
//
//	chatLLM := openaicompat.NewProvider(apiKey, model, baseURL)
//	embedding := openaicompat.NewEmbeddingProvider(apiKey, embedModel, baseURL, 2048)
//
//	mgr, _ := project.NewManager(dir, pocketrag.WithRetry(chatLLM), embedding)
//	p, _ := mgr.AddProject(ctx, "notes", "My Notes", "")
//	doc, _ := p.AddMarkdown(ctx, "guide.md", markdown)
//	hits, _ := p.SearchHybrid(ctx, "how do I configure logging?", 10)
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [Provider]: chat LLM backend used for semantic splitting and keyword extraction
//   - [EmbeddingProvider]: text-to-vector embedding for documents and queries
//   - [Store]: persistence with vector and keyword search
//   - [Tracer]: optional span creation for ingest and search operations
//
// # Included Implementations
//
// Providers: provider/openaicompat (any OpenAI-compatible API).
// Storage: store/sqlite (local file, default), store/postgres (pgvector).
// Ingestion: ingest (markdown decomposer, size guard, sequencer, extractors).
//
// See the cmd/pocket-rag directory for a complete reference CLI.
package pocketrag
