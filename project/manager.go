package project

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pocketrag "github.com/shunichi0402/pocket-rag"
	"github.com/shunichi0402/pocket-rag/ingest"
	"github.com/shunichi0402/pocket-rag/store/sqlite"
)

const dbExt = ".sqlite3"

// Keys stored in each project's info table.
const (
	InfoKeyID          = "id"
	InfoKeyName        = "name"
	InfoKeyDescription = "description"
	InfoKeyCreatedAt   = "created_at"
	InfoKeyUpdatedAt   = "updated_at"
)

// Summary identifies a project without opening it fully.
type Summary struct {
	ID   string
	Name string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets a structured logger shared by the manager and the
// projects it opens.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithTracer sets a tracer propagated to ingest and search.
func WithTracer(t pocketrag.Tracer) ManagerOption {
	return func(m *Manager) { m.tracer = t }
}

// WithSearcherOptions sets options applied to every project's searcher.
func WithSearcherOptions(opts ...pocketrag.SearcherOption) ManagerOption {
	return func(m *Manager) { m.searcherOpts = opts }
}

// WithIngestOptions sets options applied to every project's ingestor.
func WithIngestOptions(opts ...ingest.Option) ManagerOption {
	return func(m *Manager) { m.ingestOpts = opts }
}

// WithMaxUnitLen sets the text unit size ceiling in runes, applied to both
// the size guard and the semantic splitter prompt. Values < 1 keep the
// default.
func WithMaxUnitLen(n int) ManagerOption {
	return func(m *Manager) {
		if n >= 1 {
			m.maxUnitLen = n
		}
	}
}

// WithFallbackSlicer enables the degraded split mode: oversized blocks the
// semantic splitter cannot handle are re-split with a fixed-length rune
// slicer instead of failing the document.
func WithFallbackSlicer() ManagerOption {
	return func(m *Manager) { m.fallbackSlicer = true }
}

// Manager owns a directory of projects, one SQLite file per project named
// <id>.sqlite3. Projects are opened lazily and cached; RemoveProject
// deletes the file.
type Manager struct {
	dir       string
	provider  pocketrag.Provider
	embedding pocketrag.EmbeddingProvider

	logger         *slog.Logger
	tracer         pocketrag.Tracer
	searcherOpts   []pocketrag.SearcherOption
	ingestOpts     []ingest.Option
	maxUnitLen     int
	fallbackSlicer bool

	mu   sync.Mutex
	open map[string]*Project
}

// NewManager creates a Manager rooted at dir, creating the directory when
// missing. provider powers keyword extraction and semantic splitting;
// embedding powers vector search.
func NewManager(dir string, provider pocketrag.Provider, embedding pocketrag.EmbeddingProvider, opts ...ManagerOption) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create projects dir: %w", err)
	}
	m := &Manager{
		dir:        dir,
		provider:   provider,
		embedding:  embedding,
		logger:     slog.New(discardHandler{}),
		maxUnitLen: ingest.DefaultMaxUnitLen,
		open:       make(map[string]*Project),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// AddProject creates the project with the given id, or opens it when it
// already exists. Empty name and description default from the id; metadata
// of an existing project is left untouched.
func (m *Manager) AddProject(ctx context.Context, id, name, description string) (*Project, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("invalid project id %q", id)
	}
	_, statErr := os.Stat(m.path(id))
	isNew := os.IsNotExist(statErr)

	p, err := m.openProject(ctx, id, isNew)
	if err != nil {
		return nil, err
	}
	if !isNew {
		return p, nil
	}

	if name == "" {
		name = id
	}
	if description == "" {
		description = "Project: " + id
	}
	now := fmt.Sprintf("%d", pocketrag.NowUnix())
	info := map[string]string{
		InfoKeyID:          id,
		InfoKeyName:        name,
		InfoKeyDescription: description,
		InfoKeyCreatedAt:   now,
		InfoKeyUpdatedAt:   now,
	}
	if err := p.store.SetProjectInfo(ctx, info); err != nil {
		p.Close()
		return nil, fmt.Errorf("set project info: %w", err)
	}
	m.logger.Info("project created", "id", id, "name", name)
	return p, nil
}

// Project opens an existing project by id. Returns pocketrag.ErrNotFound
// when no project file exists for the id.
func (m *Manager) Project(ctx context.Context, id string) (*Project, error) {
	if _, err := os.Stat(m.path(id)); err != nil {
		return nil, pocketrag.ErrNotFound
	}
	return m.openProject(ctx, id, false)
}

// Projects lists all projects in the directory.
func (m *Manager) Projects(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read projects dir: %w", err)
	}

	var summaries []Summary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), dbExt) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), dbExt)
		p, err := m.openProject(ctx, id, false)
		if err != nil {
			m.logger.Warn("skipping unreadable project", "id", id, "error", err)
			continue
		}
		info, err := p.Info(ctx)
		if err != nil {
			m.logger.Warn("skipping project without info", "id", id, "error", err)
			continue
		}
		summaries = append(summaries, Summary{ID: id, Name: info[InfoKeyName]})
	}
	return summaries, nil
}

// RemoveProject closes the project if open and deletes its database file.
// Returns pocketrag.ErrNotFound when no project file exists for the id.
func (m *Manager) RemoveProject(_ context.Context, id string) error {
	m.mu.Lock()
	if p, ok := m.open[id]; ok {
		_ = p.Close()
		delete(m.open, id)
	}
	m.mu.Unlock()

	err := os.Remove(m.path(id))
	if os.IsNotExist(err) {
		return pocketrag.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("remove project %s: %w", id, err)
	}
	m.logger.Info("project removed", "id", id)
	return nil
}

// Close closes all open projects.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for id, p := range m.open {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.open, id)
	}
	return firstErr
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+dbExt)
}

// openProject returns the cached project or opens the store and wires the
// ingest pipeline and searcher around it.
func (m *Manager) openProject(ctx context.Context, id string, create bool) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.open[id]; ok {
		return p, nil
	}

	store := sqlite.New(m.path(id), sqlite.WithLogger(m.logger))
	if err := store.Init(ctx); err != nil {
		store.Close()
		if create {
			_ = os.Remove(m.path(id))
		}
		return nil, fmt.Errorf("init project store: %w", err)
	}

	splitter := ingest.NewLLMSplitter(m.provider, m.maxUnitLen)
	guardOpts := []ingest.GuardOption{
		ingest.WithMaxUnitLen(m.maxUnitLen),
		ingest.WithGuardLogger(m.logger),
	}
	if m.fallbackSlicer {
		guardOpts = append(guardOpts, ingest.WithFallbackSlicer())
	}
	ingestOpts := append([]ingest.Option{
		ingest.WithLogger(m.logger),
		ingest.WithTracer(m.tracer),
		ingest.WithSizeGuard(ingest.NewSizeGuard(splitter, guardOpts...)),
	}, m.ingestOpts...)

	keywords := pocketrag.NewKeywordExtractor(m.provider, pocketrag.WithKeywordLogger(m.logger))
	searcherOpts := append([]pocketrag.SearcherOption{
		pocketrag.WithSearcherLogger(m.logger),
		pocketrag.WithSearcherTracer(m.tracer),
	}, m.searcherOpts...)

	p := &Project{
		id:       id,
		store:    store,
		ingestor: ingest.NewIngestor(store, m.embedding, splitter, ingestOpts...),
		searcher: pocketrag.NewHybridSearcher(store, m.embedding, keywords, searcherOpts...),
		logger:   m.logger,
	}
	m.open[id] = p
	return p, nil
}
