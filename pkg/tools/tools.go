// Package tools defines the string-in/string-out capabilities the agent can
// call: document retrieval, database schema description, and web search.
// Every tool converts its internal failures to descriptive text, since the
// consumer is the model. SQL execution is deliberately not a tool.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/nestor-ai/nestor/pkg/metrics"
	"github.com/nestor-ai/nestor/pkg/registry"
)

// ToolInfo describes a tool to the provider. Parameters is a JSON-schema
// object reflected from the tool's typed args struct.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	Success       bool          `json:"success"`
	Content       string        `json:"content,omitempty"`
	Error         string        `json:"error,omitempty"`
	ToolName      string        `json:"tool_name"`
	ExecutionTime time.Duration `json:"execution_time,omitempty"`
}

// Tool is a named capability callable by the agent.
type Tool interface {
	GetInfo() ToolInfo
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
	GetName() string
	GetDescription() string
}

// Registry holds an agent's fixed tool set.
type Registry struct {
	*registry.BaseRegistry[Tool]
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Tool]()}
}

// Definitions lists the registered tools in name order, for the provider's
// tool-call contract.
func (r *Registry) Definitions() []ToolInfo {
	names := r.Keys()
	infos := make([]ToolInfo, 0, len(names))
	for _, name := range names {
		if tool, ok := r.Get(name); ok {
			infos = append(infos, tool.GetInfo())
		}
	}
	return infos
}

// Execute dispatches one call by name, recording duration and outcome. An
// unknown tool name is an error result, not a hard failure: the model sees
// text and can recover.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) ToolResult {
	tool, ok := r.Get(name)
	if !ok {
		return ToolResult{
			Success:  false,
			Error:    fmt.Sprintf("unknown tool %q", name),
			Content:  fmt.Sprintf("No tool named %q is available.", name),
			ToolName: name,
		}
	}

	start := time.Now()
	result, err := tool.Execute(ctx, args)
	result.ToolName = name
	result.ExecutionTime = time.Since(start)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		result.Success = false
		result.Error = err.Error()
		if result.Content == "" {
			result.Content = fmt.Sprintf("Tool %s failed: %v", name, err)
		}
	}
	metrics.RecordToolCall(name, outcome, result.ExecutionTime)
	return result
}
