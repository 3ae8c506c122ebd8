package tools

import (
	"context"
	"fmt"

	"github.com/nestor-ai/nestor/pkg/websearch"
)

// WebSearchTool answers queries with live web results.
type WebSearchTool struct {
	client *websearch.Client
}

type webSearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=The search query"`
}

// NewWebSearchTool creates the web search tool over the given client.
func NewWebSearchTool(client *websearch.Client) *WebSearchTool {
	return &WebSearchTool{client: client}
}

func (t *WebSearchTool) GetName() string { return "web_search" }

func (t *WebSearchTool) GetDescription() string {
	return "Search the web for current information beyond the uploaded documents."
}

func (t *WebSearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters:  argsSchema[webSearchArgs](),
	}
}

// Execute runs the search, converting failures (including a permanently
// missing credential) to text.
func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	decoded, err := decodeArgs[webSearchArgs](args)
	if err != nil {
		return ToolResult{}, err
	}

	out, err := t.client.Search(ctx, decoded.Query)
	if err != nil {
		return ToolResult{Success: true, Content: fmt.Sprintf("Web search failed: %v", err)}, nil
	}
	return ToolResult{Success: true, Content: out}, nil
}
