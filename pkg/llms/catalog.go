package llms

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Catalog errors.
var (
	// ErrUnknownModel is returned for model ids outside the catalog.
	ErrUnknownModel = errors.New("unknown model")

	// ErrModelUnavailable is returned when a known model's credential is
	// not configured.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrNoModelAvailable is returned when no catalog entry has a
	// configured credential.
	ErrNoModelAvailable = errors.New("no model available")
)

// ModelSpec describes one catalog entry.
type ModelSpec struct {
	// ID is the logical model id users select ("gemini", "openai").
	ID string `json:"id"`

	// DisplayName is the human-readable label.
	DisplayName string `json:"display_name"`

	// Provider selects the backend implementation.
	Provider string `json:"provider"`

	// ModelName is the concrete model passed to the provider.
	ModelName string `json:"model"`

	// EnvVar holds the credential environment variable name.
	EnvVar string `json:"env_var"`

	// Default marks the entry selected at startup.
	Default bool `json:"default"`

	// Available reports whether the credential was configured at startup.
	Available bool `json:"available"`
}

// catalogSpecs is the fixed model enumeration. Order matters: credential
// fallback picks the first available entry.
func catalogSpecs() []ModelSpec {
	return []ModelSpec{
		{
			ID:          "gemini",
			DisplayName: "Gemini 2.0 Flash",
			Provider:    "gemini",
			ModelName:   "gemini-2.0-flash",
			EnvVar:      "GEMINI_API_KEY",
			Default:     true,
		},
		{
			ID:          "openai",
			DisplayName: "GPT-4o",
			Provider:    "openai",
			ModelName:   "gpt-4o",
			EnvVar:      "OPENAI_API_KEY",
		},
	}
}

// Catalog holds the fixed model table and the process-wide current
// selection. Availability is fixed at construction: a credential added or
// removed later is not observed until restart.
type Catalog struct {
	mu      sync.Mutex
	specs   []ModelSpec
	current string
}

// NewCatalog builds the catalog, probing each entry's credential through
// lookup (nil means os.Getenv). The current selection starts at the default
// entry when available, else the first available entry, else the default.
func NewCatalog(lookup func(string) string) *Catalog {
	if lookup == nil {
		lookup = os.Getenv
	}

	specs := catalogSpecs()
	for i := range specs {
		specs[i].Available = lookup(specs[i].EnvVar) != ""
	}

	current := ""
	for _, s := range specs {
		if s.Default {
			current = s.ID
			break
		}
	}
	if spec, ok := findSpec(specs, current); !ok || !spec.Available {
		for _, s := range specs {
			if s.Available {
				current = s.ID
				break
			}
		}
	}

	return &Catalog{specs: specs, current: current}
}

func findSpec(specs []ModelSpec, id string) (ModelSpec, bool) {
	for _, s := range specs {
		if s.ID == id {
			return s, true
		}
	}
	return ModelSpec{}, false
}

// resolveSpec implements the fallback policy as a pure function of the
// table: a known available id wins; a known unavailable id falls back to the
// first available entry in enumeration order; an unknown id is an error, as
// is an empty table.
func resolveSpec(specs []ModelSpec, requested string) (ModelSpec, error) {
	spec, ok := findSpec(specs, requested)
	if !ok {
		return ModelSpec{}, fmt.Errorf("%w: %q", ErrUnknownModel, requested)
	}

	if spec.Available {
		return spec, nil
	}

	for _, s := range specs {
		if s.Available {
			return s, nil
		}
	}

	missing := make([]string, 0, len(specs))
	for _, s := range specs {
		missing = append(missing, s.EnvVar)
	}
	return ModelSpec{}, fmt.Errorf("%w: set %s", ErrNoModelAvailable, strings.Join(missing, " or "))
}

// Resolve maps a requested model id to the entry that will serve it. An
// empty request resolves the current selection.
func (c *Catalog) Resolve(requested string) (ModelSpec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if requested == "" {
		requested = c.current
	}
	return resolveSpec(c.specs, requested)
}

// SetCurrent changes the process-wide selection. It fails without side
// effects for unknown ids and for entries whose credential is missing.
func (c *Catalog) SetCurrent(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	spec, ok := findSpec(c.specs, id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	if !spec.Available {
		return fmt.Errorf("%w: %q requires %s", ErrModelUnavailable, id, spec.EnvVar)
	}

	c.current = id
	return nil
}

// Current returns the currently selected entry. The selection may be
// unavailable when no credential is configured at all; Resolve handles the
// fallback.
func (c *Catalog) Current() ModelSpec {
	c.mu.Lock()
	defer c.mu.Unlock()

	spec, _ := findSpec(c.specs, c.current)
	return spec
}

// List returns the enumeration in fixed order.
func (c *Catalog) List() []ModelSpec {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ModelSpec, len(c.specs))
	copy(out, c.specs)
	return out
}
