package agent

import (
	"errors"
	"strings"
	"testing"

	"github.com/nestor-ai/nestor/pkg/llms"
	"github.com/nestor-ai/nestor/pkg/tools"
)

func envWith(keys ...string) func(string) string {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return func(key string) string {
		if set[key] {
			return "test-key"
		}
		return ""
	}
}

func newTestRegistry(t *testing.T, lookup func(string) string) *Registry {
	t.Helper()

	catalog := llms.NewCatalog(lookup)
	providers := llms.NewLLMRegistry(llms.WithCredentialLookup(lookup))
	// Pre-seed fake providers so construction never touches real backends.
	for _, spec := range catalog.List() {
		providers.Set(spec.ID, &fakeProvider{})
	}

	return NewRegistry(catalog, providers,
		&echoTool{name: "search_pdf"},
		&echoTool{name: "get_database_schema"},
		&echoTool{name: "web_search"})
}

func TestGetAgentFallsBackToAvailableModel(t *testing.T) {
	// Only OpenAI has a credential; requesting gemini must fall back.
	r := newTestRegistry(t, envWith("OPENAI_API_KEY"))

	agent, err := r.GetAgent("gemini")
	if err != nil {
		t.Fatal(err)
	}
	if agent.Spec().ID != "openai" {
		t.Errorf("resolved model = %q, want openai", agent.Spec().ID)
	}

	if err := r.SetCurrentModel("gemini"); err == nil {
		t.Error("SetCurrentModel for an unavailable model must fail")
	}
	if got := r.CurrentModel().ID; got != "openai" {
		t.Errorf("current model changed to %q after failed SetCurrentModel", got)
	}
}

func TestGetAgentNoCredentials(t *testing.T) {
	r := newTestRegistry(t, envWith())

	_, err := r.GetAgent("gemini")
	if !errors.Is(err, llms.ErrNoModelAvailable) {
		t.Fatalf("err = %v, want ErrNoModelAvailable", err)
	}
	for _, envVar := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY"} {
		if !strings.Contains(err.Error(), envVar) {
			t.Errorf("error %q does not name %s", err, envVar)
		}
	}
}

func TestGetAgentUnknownModel(t *testing.T) {
	r := newTestRegistry(t, envWith("GEMINI_API_KEY"))
	if _, err := r.GetAgent("claude"); !errors.Is(err, llms.ErrUnknownModel) {
		t.Errorf("err = %v, want ErrUnknownModel", err)
	}
}

func TestGetAgentCachesPerModel(t *testing.T) {
	r := newTestRegistry(t, envWith("GEMINI_API_KEY", "OPENAI_API_KEY"))

	first, err := r.GetAgent("gemini")
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.GetAgent("gemini")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("agent not cached per model id")
	}

	other, err := r.GetAgent("openai")
	if err != nil {
		t.Fatal(err)
	}
	if other == first {
		t.Error("distinct models share an agent")
	}
}

func TestResetAgentForcesReconstruction(t *testing.T) {
	lookup := envWith("GEMINI_API_KEY", "OPENAI_API_KEY")
	catalog := llms.NewCatalog(lookup)
	providers := llms.NewLLMRegistry(llms.WithCredentialLookup(lookup))
	for _, spec := range catalog.List() {
		providers.Set(spec.ID, &fakeProvider{})
	}
	r := NewRegistry(catalog, providers,
		&echoTool{name: "search_pdf"},
		&echoTool{name: "get_database_schema"},
		&echoTool{name: "web_search"})

	first, err := r.GetAgent("gemini")
	if err != nil {
		t.Fatal(err)
	}

	r.ResetAgent("gemini")
	providers.Set("gemini", &fakeProvider{}) // reset also evicted the provider

	second, err := r.GetAgent("gemini")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("ResetAgent did not evict the cached agent")
	}
}

// The core safety invariant: for every model id, the constructed tool set is
// exactly the three capabilities, never SQL execution.
func TestToolSetNeverIncludesSQLExecution(t *testing.T) {
	r := newTestRegistry(t, envWith("GEMINI_API_KEY", "OPENAI_API_KEY"))

	want := []string{"get_database_schema", "search_pdf", "web_search"}
	for _, spec := range r.Models() {
		agent, err := r.GetAgent(spec.ID)
		if err != nil {
			t.Fatalf("GetAgent(%s): %v", spec.ID, err)
		}

		names := agent.ToolNames()
		if len(names) != len(want) {
			t.Fatalf("model %s has tools %v, want exactly %v", spec.ID, names, want)
		}
		for i, name := range want {
			if names[i] != name {
				t.Errorf("model %s tool %d = %q, want %q", spec.ID, i, names[i], name)
			}
		}
		for _, name := range names {
			if name == "run_sql_query" || name == "execute_raw_sql_query" {
				t.Fatalf("model %s exposes SQL execution", spec.ID)
			}
		}
	}
}

var _ tools.Tool = (*echoTool)(nil)
