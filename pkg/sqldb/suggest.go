package sqldb

import (
	"context"
	"fmt"
	"strings"

	"github.com/nestor-ai/nestor/pkg/llms"
)

const suggestSystemPrompt = `You are a SQL assistant. Given a database schema and a user request,
write one SQL query that answers the request.

Rules:
- Respond with exactly one fenced code block tagged sql, followed by a short
  explanation of what the query does.
- Use only tables and columns present in the schema.
- Never claim the query was executed. It is a suggestion pending the user's
  approval.`

// GenerateSQLSuggestions produces candidate query text for user review. The
// result is text only; nothing in this path executes SQL.
func (s *Service) GenerateSQLSuggestions(ctx context.Context, llm llms.LLMProvider, details ConnectionDetails, request string) (string, error) {
	if strings.TrimSpace(request) == "" {
		return "", fmt.Errorf("empty suggestion request")
	}

	schema, err := s.DescribeSchema(ctx, details)
	if err != nil {
		return "", fmt.Errorf("describing schema for suggestion: %w", err)
	}

	messages := []llms.Message{
		{Role: llms.RoleSystem, Content: suggestSystemPrompt},
		{Role: llms.RoleUser, Content: fmt.Sprintf("Schema:\n%s\n\nRequest: %s", schema, request)},
	}

	result, err := llm.Generate(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("generating suggestion: %w", err)
	}

	text := strings.TrimSpace(result.Content.Flatten())
	if text == "" {
		return "", fmt.Errorf("model returned an empty suggestion")
	}
	return text, nil
}
