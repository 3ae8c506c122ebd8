package llms

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/nestor-ai/nestor/pkg/metrics"
)

// GeminiProvider talks to Google Gemini through the official genai SDK.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewGeminiProvider creates a provider for the given model.
func NewGeminiProvider(apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	// Constructors shouldn't require a context; the SDK only uses it for
	// credential discovery we don't rely on.
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		temperature: 0.7,
		maxTokens:   4096,
	}, nil
}

// Generate implements LLMProvider.
func (p *GeminiProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (*Result, error) {
	contents, systemInstruction := convertGeminiMessages(messages)
	config := p.buildConfig(systemInstruction, tools)

	genResp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		metrics.RecordLLMRequest("gemini", metrics.OutcomeError)
		return nil, fmt.Errorf("Gemini generation failed: %w", err)
	}

	result, err := parseGeminiResponse(genResp)
	if err != nil {
		metrics.RecordLLMRequest("gemini", metrics.OutcomeError)
		return nil, err
	}

	metrics.RecordLLMRequest("gemini", metrics.OutcomeSuccess)
	metrics.RecordLLMTokens("gemini", result.Usage.PromptTokens, result.Usage.CompletionTokens)
	return result, nil
}

// GenerateStreaming implements LLMProvider.
func (p *GeminiProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	contents, systemInstruction := convertGeminiMessages(messages)
	config := p.buildConfig(systemInstruction, tools)

	chunks := make(chan StreamChunk, 100)

	go func() {
		defer close(chunks)

		usage := Usage{}
		emittedCallIDs := make(map[string]bool)
		callCount := 0

		for genResp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, config) {
			if err != nil {
				metrics.RecordLLMRequest("gemini", metrics.OutcomeError)
				chunks <- StreamChunk{Type: ChunkError, Err: fmt.Errorf("Gemini streaming error: %w", err)}
				return
			}

			if genResp.UsageMetadata != nil {
				usage = geminiUsage(genResp)
			}

			if len(genResp.Candidates) == 0 || genResp.Candidates[0].Content == nil {
				continue
			}

			for _, part := range genResp.Candidates[0].Content.Parts {
				if part.Text != "" && !part.Thought {
					chunks <- StreamChunk{Type: ChunkText, Text: part.Text}
				}

				if part.FunctionCall == nil {
					continue
				}
				callID := part.FunctionCall.ID
				if callID == "" {
					callID = fmt.Sprintf("call_%d", callCount)
				}
				// Gemini may repeat a function-call part across chunks.
				if emittedCallIDs[callID] {
					continue
				}
				emittedCallIDs[callID] = true
				callCount++

				chunks <- StreamChunk{Type: ChunkToolCall, ToolCall: &ToolCall{
					ID:   callID,
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				}}
			}
		}

		metrics.RecordLLMRequest("gemini", metrics.OutcomeSuccess)
		metrics.RecordLLMTokens("gemini", usage.PromptTokens, usage.CompletionTokens)
		chunks <- StreamChunk{Type: ChunkDone, Usage: usage}
	}()

	return chunks, nil
}

// GetModelName implements LLMProvider.
func (p *GeminiProvider) GetModelName() string {
	return p.model
}

// Close implements LLMProvider.
func (p *GeminiProvider) Close() error {
	return nil
}

func (p *GeminiProvider) buildConfig(systemInstruction *genai.Content, tools []ToolDefinition) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		MaxOutputTokens:   int32(p.maxTokens),
	}
	if p.temperature > 0 {
		config.Temperature = genai.Ptr(float32(p.temperature))
	}

	if len(tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, len(tools))
		for i, t := range tools {
			declarations[i] = &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(t.Parameters),
			}
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	return config
}

// convertGeminiMessages maps conversation turns to genai contents. System
// turns are gathered into the system instruction; assistant turns become
// "model" contents carrying any function calls; tool turns become function
// responses.
func convertGeminiMessages(messages []Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemParts []*genai.Part

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if msg.Content != "" {
				systemParts = append(systemParts, &genai.Part{Text: msg.Content})
			}

		case RoleTool:
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       msg.ToolCallID,
						Name:     msg.ToolName,
						Response: map[string]any{"result": msg.Content},
					},
				}},
			})

		case RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: tc.Args,
					},
				})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}

		default:
			if msg.Content != "" {
				contents = append(contents, &genai.Content{
					Role:  "user",
					Parts: []*genai.Part{{Text: msg.Content}},
				})
			}
		}
	}

	var systemInstruction *genai.Content
	if len(systemParts) > 0 {
		systemInstruction = &genai.Content{Role: "user", Parts: systemParts}
	}

	return contents, systemInstruction
}

// toGenaiSchema converts a JSON-schema object to the SDK schema type.
func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}

	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if required, ok := schema["required"].([]string); ok {
		s.Required = append(s.Required, required...)
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}

	return s
}

func geminiUsage(genResp *genai.GenerateContentResponse) Usage {
	if genResp.UsageMetadata == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     int(genResp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(genResp.UsageMetadata.TotalTokenCount),
	}
}

// parseGeminiResponse maps an SDK response to a Result. A single text part
// keeps the plain-text shape; multiple parts keep the block-list shape so the
// normalizer sees what the wire produced.
func parseGeminiResponse(genResp *genai.GenerateContentResponse) (*Result, error) {
	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	candidate := genResp.Candidates[0]

	var textParts []string
	var toolCalls []ToolCall

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				textParts = append(textParts, part.Text)
			}
			if part.FunctionCall != nil {
				id := part.FunctionCall.ID
				if id == "" {
					id = fmt.Sprintf("call_%d", len(toolCalls))
				}
				toolCalls = append(toolCalls, ToolCall{
					ID:   id,
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				})
			}
		}
	}

	var content MessageContent
	switch len(textParts) {
	case 0:
		content = TextContent("")
	case 1:
		content = TextContent(textParts[0])
	default:
		blocks := make([]ContentBlock, len(textParts))
		for i, t := range textParts {
			blocks[i] = ContentBlock{Type: "text", Text: t}
		}
		content = BlocksContent(blocks...)
	}

	result := &Result{
		Content:   content,
		ToolCalls: toolCalls,
	}
	result.Usage = geminiUsage(genResp)

	return result, nil
}
