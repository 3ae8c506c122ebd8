// Package embedders provides the embedding providers behind the retrieval
// index. Selection is credential-driven: OpenAI when OPENAI_API_KEY is set,
// otherwise Gemini when GEMINI_API_KEY is set.
package embedders

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrNoCredential reports that no embedding provider has a usable API key.
var ErrNoCredential = errors.New("no embedding credential available")

// Embedder computes vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	GetDimension() int
	GetModelName() string
	Close() error
}

// Select returns the embedder for the first provider with a credential.
// lookup defaults to os.Getenv when nil.
func Select(lookup func(string) string) (Embedder, error) {
	if lookup == nil {
		lookup = os.Getenv
	}

	if key := lookup("OPENAI_API_KEY"); key != "" {
		return NewOpenAIEmbedder(key, ""), nil
	}
	if key := lookup("GEMINI_API_KEY"); key != "" {
		return NewGeminiEmbedder(key, ""), nil
	}

	return nil, fmt.Errorf("%w: set OPENAI_API_KEY or GEMINI_API_KEY", ErrNoCredential)
}
