package llms

import (
	"errors"
	"strings"
	"testing"
)

func lookupWith(vars map[string]string) func(string) string {
	return func(key string) string {
		return vars[key]
	}
}

func TestNewCatalogCurrentSelection(t *testing.T) {
	tests := []struct {
		name        string
		vars        map[string]string
		wantCurrent string
	}{
		{
			name:        "default available",
			vars:        map[string]string{"GEMINI_API_KEY": "gm", "OPENAI_API_KEY": "sk"},
			wantCurrent: "gemini",
		},
		{
			name:        "default unavailable falls to first available",
			vars:        map[string]string{"OPENAI_API_KEY": "sk"},
			wantCurrent: "openai",
		},
		{
			name:        "nothing available keeps default selection",
			vars:        map[string]string{},
			wantCurrent: "gemini",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalog(lookupWith(tt.vars))
			if got := c.Current().ID; got != tt.wantCurrent {
				t.Errorf("Current().ID = %q, want %q", got, tt.wantCurrent)
			}
		})
	}
}

func TestCatalogResolve(t *testing.T) {
	tests := []struct {
		name      string
		vars      map[string]string
		requested string
		wantID    string
		wantErr   error
	}{
		{
			name:      "requested available",
			vars:      map[string]string{"GEMINI_API_KEY": "gm", "OPENAI_API_KEY": "sk"},
			requested: "openai",
			wantID:    "openai",
		},
		{
			name:      "empty request resolves current selection",
			vars:      map[string]string{"GEMINI_API_KEY": "gm"},
			requested: "",
			wantID:    "gemini",
		},
		{
			name:      "unavailable requested falls back to first available",
			vars:      map[string]string{"OPENAI_API_KEY": "sk"},
			requested: "gemini",
			wantID:    "openai",
		},
		{
			name:      "unknown id",
			vars:      map[string]string{"GEMINI_API_KEY": "gm"},
			requested: "claude",
			wantErr:   ErrUnknownModel,
		},
		{
			name:      "nothing available",
			vars:      map[string]string{},
			requested: "gemini",
			wantErr:   ErrNoModelAvailable,
		},
		{
			name:      "nothing available with empty request",
			vars:      map[string]string{},
			requested: "",
			wantErr:   ErrNoModelAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalog(lookupWith(tt.vars))
			spec, err := c.Resolve(tt.requested)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve(%q) error = %v, want %v", tt.requested, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.requested, err)
			}
			if spec.ID != tt.wantID {
				t.Errorf("Resolve(%q) = %q, want %q", tt.requested, spec.ID, tt.wantID)
			}
		})
	}
}

func TestCatalogResolveNamesMissingCredentials(t *testing.T) {
	c := NewCatalog(lookupWith(nil))

	_, err := c.Resolve("gemini")
	if err == nil {
		t.Fatal("Resolve() error = nil, want ErrNoModelAvailable")
	}
	for _, envVar := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY"} {
		if !strings.Contains(err.Error(), envVar) {
			t.Errorf("error %q does not name %s", err, envVar)
		}
	}
}

func TestCatalogSetCurrent(t *testing.T) {
	tests := []struct {
		name        string
		vars        map[string]string
		set         string
		wantErr     error
		wantCurrent string
	}{
		{
			name:        "available id",
			vars:        map[string]string{"GEMINI_API_KEY": "gm", "OPENAI_API_KEY": "sk"},
			set:         "openai",
			wantCurrent: "openai",
		},
		{
			name:        "unknown id leaves selection intact",
			vars:        map[string]string{"GEMINI_API_KEY": "gm"},
			set:         "claude",
			wantErr:     ErrUnknownModel,
			wantCurrent: "gemini",
		},
		{
			name:        "unavailable id leaves selection intact",
			vars:        map[string]string{"GEMINI_API_KEY": "gm"},
			set:         "openai",
			wantErr:     ErrModelUnavailable,
			wantCurrent: "gemini",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalog(lookupWith(tt.vars))
			err := c.SetCurrent(tt.set)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SetCurrent(%q) error = %v, want %v", tt.set, err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("SetCurrent(%q) error = %v", tt.set, err)
			}

			if got := c.Current().ID; got != tt.wantCurrent {
				t.Errorf("Current().ID = %q, want %q", got, tt.wantCurrent)
			}
		})
	}
}

func TestCatalogList(t *testing.T) {
	c := NewCatalog(lookupWith(map[string]string{"OPENAI_API_KEY": "sk"}))

	specs := c.List()
	if len(specs) != 2 {
		t.Fatalf("List() returned %d specs, want 2", len(specs))
	}
	if specs[0].ID != "gemini" || specs[1].ID != "openai" {
		t.Errorf("List() order = [%s, %s], want [gemini, openai]", specs[0].ID, specs[1].ID)
	}
	if specs[0].Available {
		t.Error("gemini reported available without credential")
	}
	if !specs[1].Available {
		t.Error("openai reported unavailable with credential set")
	}
	if !specs[0].Default {
		t.Error("gemini not marked default")
	}
}
