package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/nestor-ai/nestor/pkg/embedders"
)

// fakeEmbedder produces deterministic non-zero vectors and counts calls so
// tests can assert embedding work is not repeated.
type fakeEmbedder struct {
	embedCalls atomic.Int64
	batchCalls atomic.Int64
}

func (f *fakeEmbedder) vector(text string) []float32 {
	v := make([]float32, 8)
	for i, r := range text {
		v[i%8] += float32(r%31) + 1
	}
	for i := range v {
		v[i]++
	}
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.embedCalls.Add(1)
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) GetDimension() int     { return 8 }
func (f *fakeEmbedder) GetModelName() string  { return "fake" }
func (f *fakeEmbedder) Close() error          { return nil }

// writeSheet writes a minimal spreadsheet holding the given cell text.
func writeSheet(t *testing.T, path, text string) {
	t.Helper()
	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func newTestCache(t *testing.T, dir string) (*Cache, *fakeEmbedder) {
	t.Helper()
	embedder := &fakeEmbedder{}
	cache, err := NewCache(dir, WithEmbedder(embedder))
	if err != nil {
		t.Fatal(err)
	}
	return cache, embedder
}

func TestBuildOrGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeSheet(t, filepath.Join(dir, "report.xlsx"), "the quarterly revenue target is nine million")

	cache, _ := newTestCache(t, dir)
	index, err := cache.BuildOrGet(context.Background(), "", false)
	if err != nil {
		t.Fatalf("BuildOrGet: %v", err)
	}
	if index.Documents() != 1 {
		t.Errorf("Documents() = %d, want 1", index.Documents())
	}

	results, err := index.Search(context.Background(), "revenue target", DefaultTopK)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Search returned no results")
	}
	if results[0].Source != "report.xlsx" {
		t.Errorf("Source = %q, want report.xlsx", results[0].Source)
	}
	if !strings.Contains(results[0].Content, "nine million") {
		t.Errorf("Content %q does not contain the known phrase", results[0].Content)
	}
}

func TestBuildOrGetReusesResidentIndex(t *testing.T) {
	dir := t.TempDir()
	writeSheet(t, filepath.Join(dir, "a.xlsx"), "alpha beta gamma")

	cache, embedder := newTestCache(t, dir)
	first, err := cache.BuildOrGet(context.Background(), "", false)
	if err != nil {
		t.Fatal(err)
	}
	builds := embedder.batchCalls.Load()

	second, err := cache.BuildOrGet(context.Background(), "", false)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("second BuildOrGet returned a different index")
	}
	if got := embedder.batchCalls.Load(); got != builds {
		t.Errorf("embed batch calls = %d after cached get, want %d", got, builds)
	}

	third, err := cache.BuildOrGet(context.Background(), "", true)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Error("force rebuild returned the old index")
	}
	if got := embedder.batchCalls.Load(); got == builds {
		t.Error("force rebuild did not re-embed")
	}
}

func TestBuildOrGetSkipsCorruptDocuments(t *testing.T) {
	dir := t.TempDir()
	writeSheet(t, filepath.Join(dir, "good.xlsx"), "the shipment arrives on tuesday")
	if err := os.WriteFile(filepath.Join(dir, "bad.xlsx"), []byte("not a spreadsheet"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache, _ := newTestCache(t, dir)
	index, err := cache.BuildOrGet(context.Background(), "", false)
	if err != nil {
		t.Fatalf("BuildOrGet with one corrupt document: %v", err)
	}

	results, err := index.Search(context.Background(), "shipment", DefaultTopK)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].Source != "good.xlsx" {
		t.Errorf("results = %+v, want a match from good.xlsx", results)
	}
}

func TestBuildOrGetAllCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.xlsx"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache, _ := newTestCache(t, dir)
	if _, err := cache.BuildOrGet(context.Background(), "", false); !errors.Is(err, ErrNoDocuments) {
		t.Errorf("err = %v, want ErrNoDocuments", err)
	}
}

func TestInvalidate(t *testing.T) {
	dir := t.TempDir()
	writeSheet(t, filepath.Join(dir, "a.xlsx"), "content")

	cache, _ := newTestCache(t, dir)
	if _, err := cache.BuildOrGet(context.Background(), "", false); err != nil {
		t.Fatal(err)
	}
	if !cache.Resident() {
		t.Fatal("index not resident after build")
	}

	cache.Invalidate()
	if cache.Resident() {
		t.Error("index still resident after Invalidate")
	}
}

func TestEmbedderSelectionSharedAcrossConcurrentBuilds(t *testing.T) {
	var lookups atomic.Int64
	cache, err := NewCache(t.TempDir(), WithCredentialLookup(func(key string) string {
		if key == "OPENAI_API_KEY" {
			lookups.Add(1)
			return "test-key"
		}
		return ""
	}))
	if err != nil {
		t.Fatal(err)
	}

	const workers = 8
	results := make(chan struct {
		embedder embedders.Embedder
		err      error
	}, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := cache.embedderFor()
			results <- struct {
				embedder embedders.Embedder
				err      error
			}{e, err}
		}()
	}
	wg.Wait()
	close(results)

	var first embedders.Embedder
	for r := range results {
		if r.err != nil {
			t.Fatal(r.err)
		}
		if first == nil {
			first = r.embedder
		} else if r.embedder != first {
			t.Error("concurrent callers received different embedders")
		}
	}
	if got := lookups.Load(); got != 1 {
		t.Errorf("credential selection ran %d times, want 1", got)
	}
}
