package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestOpenAIProvider(serverURL string) *OpenAIProvider {
	return NewOpenAIProvider("sk-test-key", "gpt-4o", WithOpenAIBaseURL(serverURL))
}

func TestOpenAIGenerateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test-key" {
			t.Errorf("Authorization = %q", auth)
		}

		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("model = %s, want gpt-4o", req.Model)
		}
		if req.Stream {
			t.Error("stream = true, want false")
		}
		if len(req.Messages) != 2 {
			t.Errorf("messages = %d, want 2", len(req.Messages))
		}
		if req.ToolChoice != "auto" {
			t.Errorf("tool_choice = %q, want auto", req.ToolChoice)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "search_pdf" {
			t.Errorf("tools = %+v", req.Tools)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{"message": {"role": "assistant", "content": "Hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer server.Close()

	provider := newTestOpenAIProvider(server.URL)

	messages := []Message{
		{Role: RoleSystem, Content: "You are helpful."},
		{Role: RoleUser, Content: "Hello"},
	}
	tools := []ToolDefinition{{Name: "search_pdf", Description: "search", Parameters: map[string]any{"type": "object"}}}

	result, err := provider.Generate(context.Background(), messages, tools)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if result.Content.Kind != ContentText || result.Content.Text != "Hello there" {
		t.Errorf("Content = %+v", result.Content)
	}
	if len(result.ToolCalls) != 0 {
		t.Errorf("ToolCalls = %d, want 0", len(result.ToolCalls))
	}
	if result.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", result.Usage.TotalTokens)
	}
}

func TestOpenAIGenerateToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{"message": {"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "search_pdf", "arguments": "{\"query\": \"revenue\"}"}}
			]}, "finish_reason": "tool_calls"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 8, "total_tokens": 28}
		}`)
	}))
	defer server.Close()

	provider := newTestOpenAIProvider(server.URL)

	result, err := provider.Generate(context.Background(), []Message{{Role: RoleUser, Content: "revenue?"}}, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(result.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(result.ToolCalls))
	}
	tc := result.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "search_pdf" {
		t.Errorf("ToolCall = %+v", tc)
	}
	if tc.Args["query"] != "revenue" {
		t.Errorf("Args = %v", tc.Args)
	}
	if result.Content.Text != "" {
		t.Errorf("Content.Text = %q, want empty for null content", result.Content.Text)
	}
}

func TestOpenAIGenerateBlockContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{"message": {"role": "assistant", "content": [
				{"type": "text", "text": "part one"},
				{"type": "text", "text": "part two"}
			]}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 5, "total_tokens": 10}
		}`)
	}))
	defer server.Close()

	provider := newTestOpenAIProvider(server.URL)

	result, err := provider.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if result.Content.Kind != ContentBlocks {
		t.Fatalf("Kind = %v, want ContentBlocks", result.Content.Kind)
	}
	if len(result.Content.Blocks) != 2 {
		t.Errorf("Blocks = %d, want 2", len(result.Content.Blocks))
	}
}

func TestOpenAIGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`)
	}))
	defer server.Close()

	provider := newTestOpenAIProvider(server.URL)

	_, err := provider.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("Generate() error = nil, want API error")
	}
	if !strings.Contains(err.Error(), "Incorrect API key provided") {
		t.Errorf("error = %v, want API message included", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %v, want status code included", err)
	}
}

func TestOpenAIGenerateStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Error("stream = false, want true")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":2,"total_tokens":6}}`,
		}
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := newTestOpenAIProvider(server.URL)

	ch, err := provider.GenerateStreaming(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("GenerateStreaming() error = %v", err)
	}

	var texts []string
	var done bool
	for chunk := range ch {
		switch chunk.Type {
		case ChunkText:
			texts = append(texts, chunk.Text)
		case ChunkDone:
			done = true
			if chunk.Usage.TotalTokens != 6 {
				t.Errorf("done usage = %+v, want total 6", chunk.Usage)
			}
		case ChunkError:
			t.Fatalf("unexpected error chunk: %v", chunk.Err)
		}
	}

	if strings.Join(texts, "") != "Hello" {
		t.Errorf("streamed text = %q, want %q", strings.Join(texts, ""), "Hello")
	}
	if !done {
		t.Error("no done chunk received")
	}
}

func TestOpenAIGenerateStreamingToolCallDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"search_pdf","arguments":""}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"query\":"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"sales\"}"}}]}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		}
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := newTestOpenAIProvider(server.URL)

	ch, err := provider.GenerateStreaming(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("GenerateStreaming() error = %v", err)
	}

	var toolCalls []ToolCall
	for chunk := range ch {
		if chunk.Type == ChunkToolCall {
			toolCalls = append(toolCalls, *chunk.ToolCall)
		}
		if chunk.Type == ChunkError {
			t.Fatalf("unexpected error chunk: %v", chunk.Err)
		}
	}

	if len(toolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(toolCalls))
	}
	if toolCalls[0].ID != "call_a" || toolCalls[0].Name != "search_pdf" {
		t.Errorf("tool call = %+v", toolCalls[0])
	}
	if toolCalls[0].Args["query"] != "sales" {
		t.Errorf("args = %v, want accumulated arguments parsed", toolCalls[0].Args)
	}
}

func TestOpenAIToolMessageConversion(t *testing.T) {
	p := NewOpenAIProvider("sk", "gpt-4o")

	req := p.buildRequest([]Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "web_search", Args: map[string]any{"query": "go"}}}},
		{Role: RoleTool, Content: "result text", ToolCallID: "call_1", ToolName: "web_search"},
	}, false, nil)

	if len(req.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(req.Messages))
	}

	assistant := req.Messages[0]
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].ID != "call_1" {
		t.Errorf("assistant tool calls = %+v", assistant.ToolCalls)
	}
	if assistant.ToolCalls[0].Function.Arguments != `{"query":"go"}` {
		t.Errorf("arguments = %q", assistant.ToolCalls[0].Function.Arguments)
	}

	tool := req.Messages[1]
	if tool.Role != "tool" || tool.ToolCallID != "call_1" {
		t.Errorf("tool message = %+v", tool)
	}
	if tool.Content != "result text" {
		t.Errorf("tool content = %v", tool.Content)
	}
}
