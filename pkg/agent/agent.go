// Package agent binds an LLM provider to the fixed capability tool set and
// a conversational memory store, and runs the tool-selection loop. The
// registry caches one agent per model id with credential-based fallback.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nestor-ai/nestor/pkg/llms"
	"github.com/nestor-ai/nestor/pkg/metrics"
	"github.com/nestor-ai/nestor/pkg/tools"
	"github.com/nestor-ai/nestor/pkg/utils"
)

const (
	// defaultMaxTurns bounds the tool-selection loop per invocation.
	defaultMaxTurns = 8

	// memoryTokenBudget caps the conversation window sent to the provider.
	memoryTokenBudget = 6000
)

const systemPrompt = `You are Nestor, an assistant that answers questions using the user's
uploaded documents, their database schema, and live web search.

Tools:
- search_pdf: retrieve relevant passages from the uploaded documents.
- get_database_schema: read the tables, columns, and types of the user's database.
- web_search: look up current information on the web.

Database policy: you can read the schema and propose SQL, but you cannot run
queries. When the user asks for data, call get_database_schema, then suggest
one query in a fenced code block tagged sql and explain what it does. Make
clear the query awaits their approval; never claim it was executed or invent
its results.

Ground answers in tool output. If the tools return nothing useful, say so.`

// Agent is an LLM bound to the fixed tool set and a memory store. One agent
// exists per model id; its tool set never includes SQL execution.
type Agent struct {
	spec     llms.ModelSpec
	provider llms.LLMProvider
	tools    *tools.Registry
	memory   *MemoryStore
	counter  *utils.TokenCounter
	maxTurns int
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithMaxTurns overrides the tool-selection turn budget.
func WithMaxTurns(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// NewAgent constructs an agent over the given provider and tool registry.
// The registry is taken as-is: callers control exactly which capabilities
// the model can reach.
func NewAgent(spec llms.ModelSpec, provider llms.LLMProvider, toolSet *tools.Registry, opts ...AgentOption) (*Agent, error) {
	counter, err := utils.NewTokenCounter(spec.ModelName)
	if err != nil {
		return nil, fmt.Errorf("creating token counter: %w", err)
	}

	a := &Agent{
		spec:     spec,
		provider: provider,
		tools:    toolSet,
		memory:   NewMemoryStore(),
		counter:  counter,
		maxTurns: defaultMaxTurns,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Spec returns the catalog entry the agent serves.
func (a *Agent) Spec() llms.ModelSpec { return a.spec }

// Provider exposes the underlying LLM client for non-agentic generation,
// such as SQL suggestion drafting. Nothing reached through it can invoke
// tools.
func (a *Agent) Provider() llms.LLMProvider { return a.provider }

// ToolNames returns the agent's tool set in name order.
func (a *Agent) ToolNames() []string { return a.tools.Keys() }

// Memory exposes the agent's memory store.
func (a *Agent) Memory() *MemoryStore { return a.memory }

// Invoke runs one non-interactive agent invocation under the given
// conversation id: prior thread state is loaded, the model selects tools
// until it produces a final answer, and the updated thread is stored back.
// Exhausting the turn budget is an error.
func (a *Agent) Invoke(ctx context.Context, conversationID string, msgs []llms.Message) (llms.MessageContent, error) {
	working := append(a.memory.Thread(conversationID), msgs...)

	for turn := 0; turn < a.maxTurns; turn++ {
		metrics.RecordAgentTurn()

		result, err := a.generate(ctx, working)
		if err != nil {
			return llms.MessageContent{}, err
		}

		working = append(working, llms.Message{
			Role:      llms.RoleAssistant,
			Content:   result.Content.Flatten(),
			ToolCalls: result.ToolCalls,
		})

		if len(result.ToolCalls) == 0 {
			a.memory.Replace(conversationID, working)
			return result.Content, nil
		}
		working = a.runTools(ctx, working, result.ToolCalls)
	}

	return llms.MessageContent{}, fmt.Errorf("turn budget of %d exhausted without a final answer", a.maxTurns)
}

// InvokeStreaming is the incremental counterpart: text chunks are forwarded
// as they arrive, tool calls accumulated during a round are executed between
// rounds. The returned channel is finite and closed after a done or error
// chunk.
func (a *Agent) InvokeStreaming(ctx context.Context, conversationID string, msgs []llms.Message) (<-chan llms.StreamChunk, error) {
	out := make(chan llms.StreamChunk)

	go func() {
		defer close(out)
		working := append(a.memory.Thread(conversationID), msgs...)

		for turn := 0; turn < a.maxTurns; turn++ {
			metrics.RecordAgentTurn()

			ch, err := a.provider.GenerateStreaming(ctx, a.assemble(working), a.definitions())
			if err != nil {
				out <- llms.StreamChunk{Type: llms.ChunkError, Err: err}
				return
			}

			var text strings.Builder
			var calls []llms.ToolCall
			for chunk := range ch {
				switch chunk.Type {
				case llms.ChunkText:
					text.WriteString(chunk.Text)
					out <- chunk
				case llms.ChunkToolCall:
					if chunk.ToolCall != nil {
						calls = append(calls, *chunk.ToolCall)
					}
				case llms.ChunkError:
					out <- chunk
					return
				}
			}

			working = append(working, llms.Message{
				Role:      llms.RoleAssistant,
				Content:   text.String(),
				ToolCalls: calls,
			})

			if len(calls) == 0 {
				a.memory.Replace(conversationID, working)
				out <- llms.StreamChunk{Type: llms.ChunkDone}
				return
			}
			working = a.runTools(ctx, working, calls)
		}

		out <- llms.StreamChunk{
			Type: llms.ChunkError,
			Err:  fmt.Errorf("turn budget of %d exhausted without a final answer", a.maxTurns),
		}
	}()

	return out, nil
}

func (a *Agent) generate(ctx context.Context, working []llms.Message) (*llms.Result, error) {
	// Request and token metrics are recorded by the provider itself.
	result, err := a.provider.Generate(ctx, a.assemble(working), a.definitions())
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", a.spec.ID, err)
	}
	return result, nil
}

func (a *Agent) runTools(ctx context.Context, working []llms.Message, calls []llms.ToolCall) []llms.Message {
	for _, call := range calls {
		result := a.tools.Execute(ctx, call.Name, call.Args)
		working = append(working, llms.Message{
			Role:       llms.RoleTool,
			Content:    result.Content,
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})
	}
	return working
}

// assemble prepends the system prompt and trims the thread to the memory
// token budget, dropping the oldest turns first. The newest message always
// survives.
func (a *Agent) assemble(working []llms.Message) []llms.Message {
	window := make([]utils.Message, len(working))
	for i, m := range working {
		window[i] = utils.Message{Role: m.Role, Content: m.Content}
	}

	kept := a.counter.FitWithinLimit(window, memoryTokenBudget)
	start := len(working) - len(kept)
	if start == len(working) && len(working) > 0 {
		// Even the newest message alone exceeds the budget; send it anyway.
		start = len(working) - 1
	}

	out := make([]llms.Message, 0, len(working)-start+1)
	out = append(out, llms.Message{Role: llms.RoleSystem, Content: systemPrompt})
	return append(out, working[start:]...)
}

func (a *Agent) definitions() []llms.ToolDefinition {
	infos := a.tools.Definitions()
	defs := make([]llms.ToolDefinition, 0, len(infos))
	for _, info := range infos {
		defs = append(defs, llms.ToolDefinition{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  info.Parameters,
		})
	}
	return defs
}
