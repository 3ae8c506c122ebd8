package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nestor-ai/nestor/pkg/rag"
)

const (
	// excerptLimit truncates each match so tool output stays prompt-sized.
	excerptLimit = 500

	// matchSeparator joins formatted matches.
	matchSeparator = "\n\n---\n\n"
)

// SearchPDFTool retrieves the most relevant passages from the user's
// uploaded documents.
type SearchPDFTool struct {
	cache *rag.Cache
}

type searchPDFArgs struct {
	Query string `json:"query" jsonschema:"required,description=What to look for in the uploaded documents"`
}

// NewSearchPDFTool creates the retrieval tool over the given cache.
func NewSearchPDFTool(cache *rag.Cache) *SearchPDFTool {
	return &SearchPDFTool{cache: cache}
}

func (t *SearchPDFTool) GetName() string { return "search_pdf" }

func (t *SearchPDFTool) GetDescription() string {
	return "Search the user's uploaded documents (PDF, DOCX, XLSX) for passages relevant to a query."
}

func (t *SearchPDFTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters:  argsSchema[searchPDFArgs](),
	}
}

// Execute builds the index on demand and formats the top matches. Build and
// lookup failures become text: an empty corpus or a missing embedding
// credential is something the model should relay, not a crash.
func (t *SearchPDFTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	decoded, err := decodeArgs[searchPDFArgs](args)
	if err != nil {
		return ToolResult{}, err
	}

	index, err := t.cache.BuildOrGet(ctx, "", false)
	if err != nil {
		if errors.Is(err, rag.ErrNoDocuments) {
			return ToolResult{Success: true, Content: "PDF search is unavailable: no documents have been uploaded yet."}, nil
		}
		return ToolResult{Success: true, Content: fmt.Sprintf("PDF search is unavailable: %v", err)}, nil
	}

	results, err := index.Search(ctx, decoded.Query, rag.DefaultTopK)
	if err != nil {
		return ToolResult{Success: true, Content: fmt.Sprintf("Search error: %v", err)}, nil
	}
	if len(results) == 0 {
		return ToolResult{Success: true, Content: "No relevant content found in the uploaded PDF documents."}, nil
	}

	return ToolResult{Success: true, Content: formatMatches(results)}, nil
}

func formatMatches(results []rag.SearchResult) string {
	parts := make([]string, 0, len(results))
	for i, r := range results {
		content := r.Content
		if len(content) > excerptLimit {
			content = content[:excerptLimit] + "..."
		}
		parts = append(parts, fmt.Sprintf("**Match %d** (Source: %s, Page: %s):\n%s", i+1, r.Source, r.Locator, content))
	}
	return strings.Join(parts, matchSeparator)
}
