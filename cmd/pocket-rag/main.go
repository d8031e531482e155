// Command pocket-rag manages markdown knowledge-base projects and runs
// hybrid retrieval against them from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	pocketrag "github.com/shunichi0402/pocket-rag"
	"github.com/shunichi0402/pocket-rag/internal/config"
	"github.com/shunichi0402/pocket-rag/observer"
	"github.com/shunichi0402/pocket-rag/project"
	"github.com/shunichi0402/pocket-rag/provider/openaicompat"
)

const usage = `usage: pocket-rag <command> [arguments]

commands:
  projects                         list projects
  add-project [-name s] [-description s] <id>
                                   create a project (opens it when it exists)
  remove-project <id>              delete a project and its data
  docs -project <id>               list documents in a project
  add -project <id> <file>         ingest a file as a document
  remove -project <id> <doc-id>    remove a document
  search -project <id> [-k n] [-mode hybrid|vector|keyword] <query>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load(os.Getenv("POCKETRAG_CONFIG"))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	var chatLLM pocketrag.Provider = openaicompat.NewProvider(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
	var embedding pocketrag.EmbeddingProvider = openaicompat.NewEmbeddingProvider(
		cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimensions)

	mgrOpts := []project.ManagerOption{
		project.WithLogger(logger),
		project.WithMaxUnitLen(cfg.Ingest.MaxUnitLen),
		project.WithSearcherOptions(
			pocketrag.WithVectorWeight(cfg.Search.VectorWeight),
			pocketrag.WithKeywordWeight(cfg.Search.KeywordWeight),
			pocketrag.WithOverfetch(cfg.Search.Overfetch),
		),
	}
	if cfg.Ingest.FallbackSlicer {
		mgrOpts = append(mgrOpts, project.WithFallbackSlicer())
	}
	if cfg.Observer.Enabled {
		inst, shutdown, err := observer.Init(ctx)
		if err != nil {
			fatal("init observer: %v", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
		chatLLM = observer.WrapProvider(chatLLM, cfg.LLM.Model, inst)
		embedding = observer.WrapEmbedding(embedding, cfg.Embedding.Model, inst)
		mgrOpts = append(mgrOpts, project.WithTracer(observer.NewTracer()))
	}

	chatLLM = pocketrag.WithRetry(chatLLM, pocketrag.RetryLogger(logger))
	embedding = pocketrag.WithEmbeddingRetry(embedding, pocketrag.RetryLogger(logger))

	mgr, err := project.NewManager(cfg.Projects.Dir, chatLLM, embedding, mgrOpts...)
	if err != nil {
		fatal("open projects dir: %v", err)
	}
	defer mgr.Close()

	switch os.Args[1] {
	case "projects":
		runProjects(ctx, mgr)
	case "add-project":
		runAddProject(ctx, mgr, os.Args[2:])
	case "remove-project":
		runRemoveProject(ctx, mgr, os.Args[2:])
	case "docs":
		runDocs(ctx, mgr, os.Args[2:])
	case "add":
		runAdd(ctx, mgr, os.Args[2:])
	case "remove":
		runRemove(ctx, mgr, os.Args[2:])
	case "search":
		runSearch(ctx, mgr, cfg, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func runProjects(ctx context.Context, mgr *project.Manager) {
	summaries, err := mgr.Projects(ctx)
	if err != nil {
		fatal("list projects: %v", err)
	}
	for _, s := range summaries {
		fmt.Printf("%s\t%s\n", s.ID, s.Name)
	}
}

func runAddProject(ctx context.Context, mgr *project.Manager, args []string) {
	fs := flag.NewFlagSet("add-project", flag.ExitOnError)
	name := fs.String("name", "", "project name")
	description := fs.String("description", "", "project description")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fatal("add-project needs a project id")
	}
	p, err := mgr.AddProject(ctx, fs.Arg(0), *name, *description)
	if err != nil {
		fatal("add project: %v", err)
	}
	fmt.Println(p.ID())
}

func runRemoveProject(ctx context.Context, mgr *project.Manager, args []string) {
	if len(args) != 1 {
		fatal("remove-project needs a project id")
	}
	if err := mgr.RemoveProject(ctx, args[0]); err != nil {
		fatal("remove project: %v", err)
	}
}

func runDocs(ctx context.Context, mgr *project.Manager, args []string) {
	fs := flag.NewFlagSet("docs", flag.ExitOnError)
	projectID := fs.String("project", "", "project id")
	_ = fs.Parse(args)
	p := openProject(ctx, mgr, *projectID)

	docs, err := p.Documents(ctx)
	if err != nil {
		fatal("list documents: %v", err)
	}
	for _, d := range docs {
		fmt.Printf("%d\t%s\t%d units\n", d.ID, d.Name, d.UnitCount)
	}
}

func runAdd(ctx context.Context, mgr *project.Manager, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	projectID := fs.String("project", "", "project id")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fatal("add needs a file path")
	}
	p := openProject(ctx, mgr, *projectID)

	doc, err := p.AddPath(ctx, fs.Arg(0))
	if err != nil {
		fatal("add document: %v", err)
	}
	fmt.Printf("%d\t%s\t%d units\n", doc.ID, doc.Name, doc.UnitCount)
}

func runRemove(ctx context.Context, mgr *project.Manager, args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	projectID := fs.String("project", "", "project id")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fatal("remove needs a document id")
	}
	p := openProject(ctx, mgr, *projectID)

	var docID int64
	if _, err := fmt.Sscanf(fs.Arg(0), "%d", &docID); err != nil {
		fatal("invalid document id %q", fs.Arg(0))
	}
	if err := p.RemoveDocument(ctx, docID); err != nil {
		fatal("remove document: %v", err)
	}
}

func runSearch(ctx context.Context, mgr *project.Manager, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	projectID := fs.String("project", "", "project id")
	k := fs.Int("k", cfg.Search.TopK, "number of results")
	mode := fs.String("mode", "hybrid", "hybrid, vector, or keyword")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fatal("search needs a query")
	}
	p := openProject(ctx, mgr, *projectID)
	query := fs.Arg(0)

	switch *mode {
	case "hybrid":
		hits, err := p.SearchHybrid(ctx, query, *k)
		if err != nil {
			fatal("search: %v", err)
		}
		for _, h := range hits {
			fmt.Printf("score=%.4f unit=%d\n%s\n\n", h.HybridScore, h.ID, h.Content)
		}
	case "vector":
		hits, err := p.SearchByVector(ctx, query, *k)
		if err != nil {
			fatal("search: %v", err)
		}
		for _, h := range hits {
			fmt.Printf("distance=%.4f unit=%d\n%s\n\n", h.Distance, h.TextUnitID, h.Content)
		}
	case "keyword":
		hits, err := p.SearchByKeyword(ctx, query)
		if err != nil {
			fatal("search: %v", err)
		}
		for _, h := range hits {
			fmt.Printf("unit=%d doc=%d seq=%d\n%s\n\n", h.ID, h.DocumentID, h.Sequence, h.Content)
		}
	default:
		fatal("unknown search mode %q", *mode)
	}
}

func openProject(ctx context.Context, mgr *project.Manager, id string) *project.Project {
	if id == "" {
		fatal("missing -project flag")
	}
	p, err := mgr.Project(ctx, id)
	if err != nil {
		fatal("open project %s: %v", id, err)
	}
	return p
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "pocket-rag: "+format+"\n", args...)
	os.Exit(1)
}
