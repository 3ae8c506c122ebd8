package rag

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/philippgille/chromem-go"
	"golang.org/x/sync/errgroup"

	"github.com/nestor-ai/nestor/pkg/embedders"
)

const (
	// embedBatchSize is the number of units embedded per provider call.
	embedBatchSize = 64

	// embedConcurrency bounds the embed calls in flight during a build.
	embedConcurrency = 4
)

// Index is one immutable searchable snapshot of the corpus. Vectors live in
// an in-memory chromem collection; the index is replaced wholesale on
// rebuild, never mutated.
type Index struct {
	collection *chromem.Collection
	embedder   embedders.Embedder
	documents  int
	units      int
	builtAt    time.Time
}

// BuildIndex embeds every unit and stores the vectors in a fresh collection.
// Embedding runs in bounded parallel batches; any batch failure aborts the
// build.
func BuildIndex(ctx context.Context, units []Unit, documents int, embedder embedders.Embedder) (*Index, error) {
	if len(units) == 0 {
		return nil, ErrNoDocuments
	}

	// Vectors are computed externally, so the collection gets an embedding
	// function that must never run.
	identity := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("vectors are precomputed")
	}

	collection, err := chromem.NewDB().GetOrCreateCollection("corpus", nil, identity)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	vectors := make([][]float32, len(units))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(embedConcurrency)

	for start := 0; start < len(units); start += embedBatchSize {
		end := min(start+embedBatchSize, len(units))
		group.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, unit := range units[start:end] {
				texts = append(texts, unit.Content)
			}

			batch, err := embedder.EmbedBatch(groupCtx, texts)
			if err != nil {
				return fmt.Errorf("embedding units %d-%d: %w", start, end-1, err)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	docs := make([]chromem.Document, len(units))
	for i, unit := range units {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("unit-%d", i),
			Content: unit.Content,
			Metadata: map[string]string{
				"source":  unit.Source,
				"locator": unit.Locator,
			},
			Embedding: vectors[i],
		}
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("storing vectors: %w", err)
	}

	return &Index{
		collection: collection,
		embedder:   embedder,
		documents:  documents,
		units:      len(units),
		builtAt:    time.Now(),
	}, nil
}

// Search embeds the query and returns the k nearest units by cosine
// similarity, best first.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	vector, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// chromem rejects result counts above the collection size.
	if k > ix.units {
		k = ix.units
	}

	matches, err := ix.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, SearchResult{
			Source:  m.Metadata["source"],
			Locator: m.Metadata["locator"],
			Content: m.Content,
			Score:   m.Similarity,
		})
	}
	return results, nil
}

// Documents returns the number of source documents indexed.
func (ix *Index) Documents() int { return ix.documents }

// Units returns the number of indexed units after chunking.
func (ix *Index) Units() int { return ix.units }

// BuiltAt returns when the build completed.
func (ix *Index) BuiltAt() time.Time { return ix.builtAt }
