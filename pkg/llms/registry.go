package llms

import (
	"fmt"
	"os"

	"github.com/nestor-ai/nestor/pkg/registry"
)

// LLMRegistry caches one provider per logical model id.
type LLMRegistry struct {
	*registry.BaseRegistry[LLMProvider]
	lookup func(string) string
}

// LLMRegistryOption configures an LLMRegistry.
type LLMRegistryOption func(*LLMRegistry)

// WithCredentialLookup overrides how credentials are read (os.Getenv by
// default).
func WithCredentialLookup(lookup func(string) string) LLMRegistryOption {
	return func(r *LLMRegistry) {
		r.lookup = lookup
	}
}

// NewLLMRegistry creates an empty provider cache.
func NewLLMRegistry(opts ...LLMRegistryOption) *LLMRegistry {
	r := &LLMRegistry{
		BaseRegistry: registry.NewBaseRegistry[LLMProvider](),
		lookup:       os.Getenv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateFromSpec returns the cached provider for the spec's id, constructing
// and caching one when absent. Concurrent callers may construct twice; the
// last writer's provider stays cached and both work.
func (r *LLMRegistry) CreateFromSpec(spec ModelSpec) (LLMProvider, error) {
	if provider, ok := r.Get(spec.ID); ok {
		return provider, nil
	}

	provider, err := r.newProvider(spec)
	if err != nil {
		return nil, err
	}

	r.Set(spec.ID, provider)
	return provider, nil
}

func (r *LLMRegistry) newProvider(spec ModelSpec) (LLMProvider, error) {
	apiKey := r.lookup(spec.EnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %q requires %s", ErrModelUnavailable, spec.ID, spec.EnvVar)
	}

	switch spec.Provider {
	case "openai":
		return NewOpenAIProvider(apiKey, spec.ModelName), nil
	case "gemini":
		return NewGeminiProvider(apiKey, spec.ModelName)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: openai, gemini)", spec.Provider)
	}
}

// Evict drops the cached provider for a model id, closing it.
func (r *LLMRegistry) Evict(id string) {
	if provider, ok := r.Get(id); ok {
		_ = provider.Close()
	}
	_ = r.Remove(id)
}
