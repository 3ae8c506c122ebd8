package agent

import (
	"fmt"

	"github.com/nestor-ai/nestor/pkg/llms"
	"github.com/nestor-ai/nestor/pkg/registry"
	"github.com/nestor-ai/nestor/pkg/tools"
)

// Registry is the model/agent registry: it maps a logical model id to a
// live, tool-equipped agent, constructing one lazily per id and caching it
// for the process lifetime. Construction wires exactly the three capability
// tools given at registry creation; no path adds a SQL-execution tool.
type Registry struct {
	catalog   *llms.Catalog
	providers *llms.LLMRegistry
	agents    *registry.BaseRegistry[*Agent]
	toolSet   []tools.Tool
	opts      []AgentOption
}

// NewRegistry creates the registry over the catalog and provider cache. The
// search, schema, and webSearch tools form every agent's complete tool set.
func NewRegistry(catalog *llms.Catalog, providers *llms.LLMRegistry, search, schema, webSearch tools.Tool, opts ...AgentOption) *Registry {
	return &Registry{
		catalog:   catalog,
		providers: providers,
		agents:    registry.NewBaseRegistry[*Agent](),
		toolSet:   []tools.Tool{search, schema, webSearch},
		opts:      opts,
	}
}

// GetAgent returns a ready agent for the requested model, or for the current
// selection when model is empty. An unavailable credential falls back to the
// first available catalog entry; no available credential at all is a hard
// configuration error. A construction race may build twice; the last writer
// stays cached and both results work.
func (r *Registry) GetAgent(model string) (*Agent, error) {
	spec, err := r.catalog.Resolve(model)
	if err != nil {
		return nil, err
	}

	if agent, ok := r.agents.Get(spec.ID); ok {
		return agent, nil
	}

	provider, err := r.providers.CreateFromSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("constructing agent for %s: %w", spec.ID, err)
	}

	toolReg := tools.NewRegistry()
	for _, tool := range r.toolSet {
		toolReg.Set(tool.GetName(), tool)
	}

	agent, err := NewAgent(spec, provider, toolReg, r.opts...)
	if err != nil {
		return nil, err
	}
	r.agents.Set(spec.ID, agent)
	return agent, nil
}

// ResetAgent evicts one cached agent and its memory, plus its provider, so
// the next GetAgent reconstructs from current configuration. An empty model
// resets everything.
func (r *Registry) ResetAgent(model string) {
	if model == "" {
		r.ResetAll()
		return
	}

	if agent, ok := r.agents.Get(model); ok {
		agent.Memory().Clear()
	}
	_ = r.agents.Remove(model)
	r.providers.Evict(model)
}

// ResetAll evicts every cached agent and provider.
func (r *Registry) ResetAll() {
	for _, id := range r.agents.Keys() {
		r.ResetAgent(id)
	}
}

// SetCurrentModel changes the process-wide selection. Failure leaves the
// previous selection intact.
func (r *Registry) SetCurrentModel(id string) error {
	return r.catalog.SetCurrent(id)
}

// CurrentModel returns the current selection.
func (r *Registry) CurrentModel() llms.ModelSpec {
	return r.catalog.Current()
}

// Models lists the catalog in enumeration order.
func (r *Registry) Models() []llms.ModelSpec {
	return r.catalog.List()
}
