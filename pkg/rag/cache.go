package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nestor-ai/nestor/pkg/embedders"
	"github.com/nestor-ai/nestor/pkg/metrics"
	"github.com/nestor-ai/nestor/pkg/utils"
)

// Cache owns the single resident index. Replacement is atomic at the
// reference level: readers observe either the old complete index or the new
// one. Concurrent builds may duplicate work; the last stored index becomes
// canonical.
type Cache struct {
	uploadDir string
	parsers   *ParserRegistry
	chunker   *Chunker
	lookup    func(string) string

	mu       sync.Mutex
	embedder embedders.Embedder

	resident atomic.Pointer[Index]
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithEmbedder pins the embedding provider instead of selecting one by
// credential at build time.
func WithEmbedder(e embedders.Embedder) CacheOption {
	return func(c *Cache) {
		c.embedder = e
	}
}

// WithCredentialLookup overrides how embedder credentials are read.
func WithCredentialLookup(lookup func(string) string) CacheOption {
	return func(c *Cache) {
		c.lookup = lookup
	}
}

// NewCache creates a cache over the given upload directory. No index is
// built until the first retrieval or an explicit build.
func NewCache(uploadDir string, opts ...CacheOption) (*Cache, error) {
	counter, err := utils.NewTokenCounter("")
	if err != nil {
		return nil, fmt.Errorf("creating token counter: %w", err)
	}

	c := &Cache{
		uploadDir: uploadDir,
		parsers:   NewParserRegistry(),
		chunker:   NewChunker(counter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BuildOrGet returns the resident index, building one when absent. A
// non-empty path narrows the corpus to that file or directory; forceRebuild
// discards the resident index first.
func (c *Cache) BuildOrGet(ctx context.Context, path string, forceRebuild bool) (*Index, error) {
	if !forceRebuild {
		if index := c.resident.Load(); index != nil {
			return index, nil
		}
	}

	start := time.Now()
	index, err := c.build(ctx, path)
	if err != nil {
		metrics.RecordIndexBuild(metrics.OutcomeError, time.Since(start), 0)
		return nil, err
	}

	c.resident.Store(index)
	metrics.RecordIndexBuild(metrics.OutcomeSuccess, time.Since(start), index.Documents())
	slog.Info("Retrieval index built",
		"documents", index.Documents(),
		"units", index.Units(),
		"duration", time.Since(start))
	return index, nil
}

func (c *Cache) build(ctx context.Context, path string) (*Index, error) {
	files, err := DiscoverCorpus(path, c.uploadDir, c.parsers)
	if err != nil {
		return nil, err
	}

	units := c.parsers.ParseAll(files)
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: none of %d candidate files parsed", ErrNoDocuments, len(files))
	}
	units = c.chunker.Chunk(units)

	embedder, err := c.embedderFor()
	if err != nil {
		return nil, err
	}

	return BuildIndex(ctx, units, len(files), embedder)
}

// embedderFor returns the pinned embedder, or selects one by credential.
// Credential absence is permanent for the process, so the selection is kept.
// Concurrent builds share the selection.
func (c *Cache) embedderFor() (embedders.Embedder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.embedder != nil {
		return c.embedder, nil
	}

	embedder, err := embedders.Select(c.lookup)
	if err != nil {
		return nil, err
	}
	c.embedder = embedder
	return embedder, nil
}

// Invalidate drops the resident index. The next retrieval rebuilds.
func (c *Cache) Invalidate() {
	c.resident.Store(nil)
}

// Resident reports whether an index is currently cached.
func (c *Cache) Resident() bool {
	return c.resident.Load() != nil
}
