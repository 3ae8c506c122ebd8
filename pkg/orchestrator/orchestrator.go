// Package orchestrator is the entry point of the conversational core: it
// assembles the message sequence for one request, drives a single agent
// invocation, normalizes the heterogeneous response shapes, and degrades
// gracefully when the invocation fails.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"

	"github.com/nestor-ai/nestor/pkg/agent"
	"github.com/nestor-ai/nestor/pkg/llms"
	"github.com/nestor-ai/nestor/pkg/metrics"
)

// FallbackResponse is returned when nothing better is available: empty
// prompts and context-free failures.
const FallbackResponse = "Sorry, I could not generate a response right now."

// contextSeparator joins the document and web parts of the combined context
// message, and the parts of a degraded fallback.
const contextSeparator = "\n\n---\n\n"

// Turn is one prior conversation turn supplied by the caller.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one generation request.
type Request struct {
	Prompt          string
	History         []Turn
	DocumentContext string
	ExternalContext string
	Model           string
}

// Orchestrator drives agent invocations against the model/agent registry.
type Orchestrator struct {
	agents *agent.Registry
}

// New creates an orchestrator over the registry.
func New(agents *agent.Registry) *Orchestrator {
	return &Orchestrator{agents: agents}
}

// GenerateResponse produces one assistant reply. It never returns an error:
// agent acquisition and invocation failures are logged and replaced by the
// best available fallback, preferring the supplied context over the fixed
// apology. Each call runs under a fresh conversation id, so concurrent
// requests never share working memory.
func (o *Orchestrator) GenerateResponse(ctx context.Context, req Request) string {
	if strings.TrimSpace(req.Prompt) == "" {
		return FallbackResponse
	}

	a, err := o.agents.GetAgent(req.Model)
	if err != nil {
		return o.fallback(req, err)
	}

	content, err := a.Invoke(ctx, uuid.NewString(), assembleMessages(req))
	if err != nil {
		return o.fallback(req, err)
	}

	if text, ok := normalizeContent(content); ok {
		metrics.RecordChatRequest(metrics.OutcomeSuccess)
		return text
	}
	return o.fallback(req, fmt.Errorf("agent returned empty content"))
}

// StreamResponse drives the current model's agent in streaming mode for
// callers that manage their own message lists. Unlike GenerateResponse it
// performs no context injection and no degraded fallback, and runs under the
// fixed accumulating "default" thread. The returned channel is lazy, finite,
// and non-restartable.
func (o *Orchestrator) StreamResponse(ctx context.Context, messages []llms.Message) (<-chan string, error) {
	a, err := o.agents.GetAgent("")
	if err != nil {
		return nil, err
	}

	chunks, err := a.InvokeStreaming(ctx, "default", messages)
	if err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for chunk := range chunks {
			if chunk.Type == llms.ChunkError {
				slog.Error("Streaming response failed", "error", chunk.Err)
				return
			}
			if text, ok := normalizeIncrement(chunk); ok {
				out <- text
			}
		}
	}()
	return out, nil
}

// assembleMessages builds the provider message sequence. Order is exact and
// load-bearing: history turns first in original order, then one combined
// context message when any context was supplied, then the new prompt.
func assembleMessages(req Request) []llms.Message {
	messages := make([]llms.Message, 0, len(req.History)+2)
	for _, turn := range req.History {
		switch turn.Role {
		case llms.RoleUser, llms.RoleAssistant:
			messages = append(messages, llms.Message{Role: turn.Role, Content: turn.Content})
		}
	}

	if context := combinedContext(req); context != "" {
		messages = append(messages, llms.Message{Role: llms.RoleSystem, Content: context})
	}

	return append(messages, llms.Message{Role: llms.RoleUser, Content: req.Prompt})
}

// combinedContext renders the single context message, document part first.
func combinedContext(req Request) string {
	var parts []string
	if req.DocumentContext != "" {
		parts = append(parts, "Use the following excerpts from the user's uploaded documents as trusted context:\n\n"+req.DocumentContext)
	}
	if req.ExternalContext != "" {
		parts = append(parts, "The following information was retrieved from the web:\n\n"+req.ExternalContext)
	}
	return strings.Join(parts, contextSeparator)
}

// fallback logs the failure with a stack trace and synthesizes the degraded
// reply: supplied context clearly labeled as such, or the fixed apology.
func (o *Orchestrator) fallback(req Request, err error) string {
	slog.Error("Response generation failed, serving fallback",
		"error", err,
		"stack", string(debug.Stack()))
	metrics.RecordChatRequest(metrics.OutcomeError)

	var parts []string
	if req.DocumentContext != "" {
		parts = append(parts, "I couldn't process your request, but here are excerpts from your documents:\n\n"+req.DocumentContext)
	}
	if req.ExternalContext != "" {
		parts = append(parts, "I couldn't process your request, but here are insights from web search:\n\n"+req.ExternalContext)
	}
	if len(parts) == 0 {
		return FallbackResponse
	}
	return strings.Join(parts, contextSeparator)
}
