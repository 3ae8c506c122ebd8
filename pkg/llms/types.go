// Package llms defines the provider-neutral LLM surface: messages, tool
// definitions, the response content union, streaming chunks, the model
// catalog with credential fallback, and the OpenAI and Gemini providers.
package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single conversation turn sent to a provider.
type Message struct {
	Role    string
	Content string

	// ToolCalls carries the calls an assistant turn requested.
	ToolCalls []ToolCall

	// ToolCallID and ToolName identify the call a tool turn answers.
	ToolCallID string
	ToolName   string
}

// ToolCall is a provider-requested tool invocation.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolDefinition describes a callable tool to the provider. Parameters is a
// JSON-schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage reports token consumption for one request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is a provider's complete answer to one generation request.
type Result struct {
	Content   MessageContent
	ToolCalls []ToolCall
	Usage     Usage
}

// ContentKind discriminates the shapes provider content arrives in.
type ContentKind int

const (
	// ContentText is a plain string.
	ContentText ContentKind = iota

	// ContentBlocks is a list of content blocks, each carrying text.
	ContentBlocks

	// ContentRaw is any other decoded JSON value.
	ContentRaw
)

// ContentBlock is one element of block-shaped content.
type ContentBlock struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// UnmarshalJSON accepts both object blocks and bare strings, which some
// providers mix within one array.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = ContentBlock{Text: s}
		return nil
	}

	type plain ContentBlock
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = ContentBlock(p)
	return nil
}

// MessageContent is the tagged union of the shapes assistant content takes
// on the wire: a plain string, a list of blocks, or an arbitrary JSON value.
type MessageContent struct {
	Kind   ContentKind
	Text   string
	Blocks []ContentBlock
	Raw    any
}

// TextContent wraps a plain string.
func TextContent(s string) MessageContent {
	return MessageContent{Kind: ContentText, Text: s}
}

// BlocksContent wraps a block list.
func BlocksContent(blocks ...ContentBlock) MessageContent {
	return MessageContent{Kind: ContentBlocks, Blocks: blocks}
}

// RawContent wraps an arbitrary decoded value.
func RawContent(v any) MessageContent {
	return MessageContent{Kind: ContentRaw, Raw: v}
}

// UnmarshalJSON accepts the three wire shapes: string, block array, or any
// other JSON value. null decodes as empty text.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = TextContent("")
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = TextContent(s)
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err == nil {
		*c = BlocksContent(blocks...)
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode message content: %w", err)
	}
	*c = RawContent(raw)
	return nil
}

// Flatten renders the union as display text: plain text verbatim, block
// lists joined with newlines, raw values stringified. Both the batch and
// streaming normalizers build on this single decode.
func (c MessageContent) Flatten() string {
	switch c.Kind {
	case ContentText:
		return c.Text

	case ContentBlocks:
		parts := make([]string, 0, len(c.Blocks))
		for _, b := range c.Blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")

	case ContentRaw:
		if c.Raw == nil {
			return ""
		}
		return fmt.Sprintf("%v", c.Raw)

	default:
		return ""
	}
}

// StreamChunk types.
const (
	ChunkText     = "text"
	ChunkToolCall = "tool_call"
	ChunkDone     = "done"
	ChunkError    = "error"
)

// StreamChunk is one increment of a streaming generation.
type StreamChunk struct {
	Type     string
	Text     string
	ToolCall *ToolCall
	Usage    Usage
	Err      error
}

// LLMProvider is the interface every model backend implements.
type LLMProvider interface {
	// Generate produces a complete response for the conversation.
	Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (*Result, error)

	// GenerateStreaming produces a finite chunk sequence. The channel is
	// closed after a done or error chunk.
	GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error)

	// GetModelName returns the concrete model identifier.
	GetModelName() string

	// Close releases provider resources.
	Close() error
}
