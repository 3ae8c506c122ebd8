package main

import (
	"fmt"
	"os"

	"github.com/nestor-ai/nestor/pkg/agent"
	"github.com/nestor-ai/nestor/pkg/config"
	"github.com/nestor-ai/nestor/pkg/llms"
	"github.com/nestor-ai/nestor/pkg/orchestrator"
	"github.com/nestor-ai/nestor/pkg/rag"
	"github.com/nestor-ai/nestor/pkg/sqldb"
	"github.com/nestor-ai/nestor/pkg/store"
	"github.com/nestor-ai/nestor/pkg/tools"
	"github.com/nestor-ai/nestor/pkg/websearch"
)

// defaultToolUser is the identity bound to the agent-side schema tool. The
// per-user schema path lives in the HTTP API, which carries the caller's
// X-User-ID; the tool itself answers for the environment default.
const defaultToolUser = "anonymous"

// runtime holds the assembled core components shared by the CLI commands.
type runtime struct {
	cfg    *config.Config
	store  *store.Store
	cache  *rag.Cache
	sql    *sqldb.Service
	agents *agent.Registry
	orch   *orchestrator.Orchestrator
}

// buildRuntime wires the full stack from configuration: persistence,
// retrieval cache, SQL toolkit, model catalog, agents, and orchestrator.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	cache, err := rag.NewCache(cfg.Uploads.Dir)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating retrieval cache: %w", err)
	}

	resolver := sqldb.NewResolver(st, cfg.Database)
	sqlService := sqldb.NewService(resolver)

	searchClient := websearch.NewClient(os.Getenv("TAVILY_API_KEY"),
		websearch.WithBaseURL(cfg.Search.BaseURL),
		websearch.WithMaxResults(cfg.Search.MaxResults),
		websearch.WithDepth(cfg.Search.Depth))

	catalog := llms.NewCatalog(nil)
	providers := llms.NewLLMRegistry()

	agents := agent.NewRegistry(catalog, providers,
		tools.NewSearchPDFTool(cache),
		tools.NewDatabaseSchemaTool(sqlService, defaultToolUser),
		tools.NewWebSearchTool(searchClient))

	return &runtime{
		cfg:    cfg,
		store:  st,
		cache:  cache,
		sql:    sqlService,
		agents: agents,
		orch:   orchestrator.New(agents),
	}, nil
}

func (rt *runtime) close() {
	rt.sql.Close()
	rt.store.Close()
}
