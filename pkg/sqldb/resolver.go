package sqldb

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nestor-ai/nestor/pkg/config"
)

// ConnectionSource looks up a user's stored connection descriptor. Absence
// is signalled with ErrNotFound. Implemented by the persistence store.
type ConnectionSource interface {
	GetConnection(ctx context.Context, userID string) (*ConnectionDetails, error)
}

// Resolver maps a user to their single active connection descriptor, falling
// back to the environment-provided default when none is stored.
type Resolver struct {
	source   ConnectionSource
	defaults config.DatabaseConfig
	lookup   func(string) string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithEnvLookup overrides how environment defaults are read.
func WithEnvLookup(lookup func(string) string) ResolverOption {
	return func(r *Resolver) {
		r.lookup = lookup
	}
}

// NewResolver builds a resolver. source may be nil when no persistence layer
// is wired, in which case every user resolves to the environment default.
func NewResolver(source ConnectionSource, defaults config.DatabaseConfig, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source:   source,
		defaults: defaults,
		lookup:   os.Getenv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveConnectionDetails returns the user's stored descriptor, or the
// environment default when none is configured for them.
func (r *Resolver) ResolveConnectionDetails(ctx context.Context, userID string) (ConnectionDetails, error) {
	if r.source != nil && userID != "" {
		details, err := r.source.GetConnection(ctx, userID)
		switch {
		case err == nil:
			return *details, nil
		case !errors.Is(err, ErrNotFound):
			return ConnectionDetails{}, fmt.Errorf("looking up connection for %q: %w", userID, err)
		}
	}

	return r.defaultDetails()
}

func (r *Resolver) defaultDetails() (ConnectionDetails, error) {
	switch r.defaults.Mode {
	case config.DatabaseModeSQLite:
		return ConnectionDetails{
			Mode:        ModeSQLite,
			SQLitePath:  r.defaults.SQLitePath,
			DisplayName: displayNameOr(r.defaults.DisplayName),
		}, nil
	case config.DatabaseModeURL:
		return ConnectionDetails{
			Mode:          ModeURL,
			ConnectionURL: r.defaults.URL,
			DisplayName:   displayNameOr(r.defaults.DisplayName),
		}, nil
	}

	if dbURL := r.lookup("DATABASE_URL"); dbURL != "" {
		return ConnectionDetails{
			Mode:          ModeURL,
			ConnectionURL: dbURL,
			DisplayName:   "Environment database",
		}, nil
	}

	return ConnectionDetails{}, fmt.Errorf("%w: no connection configured and DATABASE_URL is unset", ErrNotFound)
}

func displayNameOr(name string) string {
	if name != "" {
		return name
	}
	return "Environment database"
}
