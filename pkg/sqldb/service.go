package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	// Drivers for the three supported connection targets.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Service owns the per-connection toolkit cache: one verified *sql.DB handle
// per descriptor fingerprint. Handles are opened on first use and must be
// evicted with ClearToolkitCache when a user's descriptor changes, so stale
// schema state is never served.
type Service struct {
	resolver *Resolver

	mu      sync.Mutex
	handles map[string]*sql.DB
}

// NewService creates a service over the given resolver.
func NewService(resolver *Resolver) *Service {
	return &Service{
		resolver: resolver,
		handles:  make(map[string]*sql.DB),
	}
}

// Resolver exposes the underlying connection resolver.
func (s *Service) Resolver() *Resolver { return s.resolver }

// db returns the cached handle for the descriptor, opening and ping-verifying
// one when absent.
func (s *Service) db(ctx context.Context, details ConnectionDetails) (*sql.DB, error) {
	key := details.Fingerprint()

	s.mu.Lock()
	if handle, ok := s.handles[key]; ok {
		s.mu.Unlock()
		return handle, nil
	}
	s.mu.Unlock()

	driver, dsn, err := details.driverAndDSN()
	if err != nil {
		return nil, err
	}

	handle, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", driver, err)
	}
	if err := handle.PingContext(ctx); err != nil {
		handle.Close()
		return nil, fmt.Errorf("connecting to %s: %w", details.DisplayName, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.handles[key]; ok {
		// A concurrent caller won the open race; keep their handle.
		handle.Close()
		return existing, nil
	}
	s.handles[key] = handle
	return handle, nil
}

// ClearToolkitCache evicts and closes the handles for the given fingerprints,
// or every handle when none are given.
func (s *Service) ClearToolkitCache(fingerprints ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(fingerprints) == 0 {
		for key, handle := range s.handles {
			handle.Close()
			delete(s.handles, key)
		}
		return
	}

	for _, key := range fingerprints {
		if handle, ok := s.handles[key]; ok {
			handle.Close()
			delete(s.handles, key)
		}
	}
}

// TestConnection reports whether the target is reachable. It never mutates
// connection state beyond caching the verified handle.
func (s *Service) TestConnection(ctx context.Context, details ConnectionDetails) bool {
	handle, err := s.db(ctx, details)
	if err != nil {
		slog.Debug("Connection test failed", "target", details.DisplayName, "error", err)
		return false
	}
	return handle.PingContext(ctx) == nil
}

// Close releases every cached handle.
func (s *Service) Close() {
	s.ClearToolkitCache()
}
