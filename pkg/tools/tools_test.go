package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/nestor-ai/nestor/pkg/config"
	"github.com/nestor-ai/nestor/pkg/rag"
	"github.com/nestor-ai/nestor/pkg/sqldb"
	"github.com/nestor-ai/nestor/pkg/websearch"
)

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()

	result := r.Execute(context.Background(), "run_sql_query", nil)
	if result.Success {
		t.Error("unknown tool reported success")
	}
	if !strings.Contains(result.Content, "run_sql_query") {
		t.Errorf("content = %q, want the tool name", result.Content)
	}
}

func TestArgsSchemaReflectsQuery(t *testing.T) {
	schema := argsSchema[searchPDFArgs]()

	if schema["type"] != "object" {
		t.Errorf("type = %v", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties missing: %v", schema)
	}
	if _, ok := props["query"]; !ok {
		t.Errorf("query property missing: %v", props)
	}
	required, _ := schema["required"].([]any)
	if len(required) != 1 || required[0] != "query" {
		t.Errorf("required = %v, want [query]", required)
	}
}

func TestDecodeArgsWeakTyping(t *testing.T) {
	args, err := decodeArgs[searchPDFArgs](map[string]any{"query": "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if args.Query != "hello" {
		t.Errorf("Query = %q", args.Query)
	}

	if _, err := decodeArgs[searchPDFArgs](map[string]any{"query": map[string]any{"bad": true}}); err == nil {
		t.Error("expected a decode error for a non-string query")
	}
}

func TestSearchPDFEmptyCorpusBecomesText(t *testing.T) {
	cache, err := rag.NewCache(t.TempDir(),
		rag.WithCredentialLookup(func(string) string { return "" }))
	if err != nil {
		t.Fatal(err)
	}

	tool := NewSearchPDFTool(cache)
	result, err := tool.Execute(context.Background(), map[string]any{"query": "anything"})
	if err != nil {
		t.Fatalf("tool errors must become text, got %v", err)
	}
	if !strings.Contains(result.Content, "PDF search is unavailable") {
		t.Errorf("content = %q", result.Content)
	}
}

func TestDatabaseSchemaToolConvertsErrors(t *testing.T) {
	service := sqldb.NewService(sqldb.NewResolver(nil, config.DatabaseConfig{},
		sqldb.WithEnvLookup(func(string) string { return "" })))
	defer service.Close()

	result, err := NewDatabaseSchemaTool(service, "nobody").Execute(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Content, "Could not inspect the database schema") {
		t.Errorf("content = %q", result.Content)
	}
}

func TestWebSearchToolMissingCredential(t *testing.T) {
	tool := NewWebSearchTool(websearch.NewClient(""))

	result, err := tool.Execute(context.Background(), map[string]any{"query": "news"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Content, "Web search failed") {
		t.Errorf("content = %q", result.Content)
	}
}

func TestFormatMatchesTruncates(t *testing.T) {
	long := strings.Repeat("x", excerptLimit+50)
	out := formatMatches([]rag.SearchResult{
		{Source: "a.pdf", Locator: "3", Content: long},
		{Source: "b.pdf", Locator: "Sheet1", Content: "short"},
	})

	if !strings.Contains(out, "**Match 1** (Source: a.pdf, Page: 3):") {
		t.Errorf("missing match label:\n%s", out)
	}
	if !strings.Contains(out, matchSeparator) {
		t.Error("matches not separated")
	}
	if strings.Contains(out, long) {
		t.Error("long excerpt not truncated")
	}
	if !strings.Contains(out, strings.Repeat("x", excerptLimit)+"...") {
		t.Error("truncation marker missing")
	}
}
