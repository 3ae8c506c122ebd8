package rag

import (
	"strings"
	"testing"

	"github.com/nestor-ai/nestor/pkg/utils"
)

func newTestChunker(t *testing.T) *Chunker {
	t.Helper()
	counter, err := utils.NewTokenCounter("")
	if err != nil {
		t.Fatal(err)
	}
	return NewChunker(counter)
}

func TestChunkShortUnitUnchanged(t *testing.T) {
	c := newTestChunker(t)
	unit := Unit{Source: "a.pdf", Locator: "2", Content: "A short page."}

	out := c.Chunk([]Unit{unit})
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if out[0] != unit {
		t.Errorf("unit changed: %+v", out[0])
	}
}

func TestChunkSplitsLongUnit(t *testing.T) {
	c := newTestChunker(t)

	para := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 30)
	long := strings.Join([]string{para, para, para, para}, "\n\n")
	unit := Unit{Source: "a.pdf", Locator: "5", Content: long}

	out := c.Chunk([]Unit{unit})
	if len(out) < 2 {
		t.Fatalf("len = %d, want a multi-chunk split", len(out))
	}
	for i, chunk := range out {
		if chunk.Source != "a.pdf" {
			t.Errorf("chunk %d source = %q", i, chunk.Source)
		}
		if !strings.HasPrefix(chunk.Locator, "5, part ") {
			t.Errorf("chunk %d locator = %q, want a '5, part N' label", i, chunk.Locator)
		}
		if got := c.counter.Count(chunk.Content); got > c.budget {
			t.Errorf("chunk %d is %d tokens, budget %d", i, got, c.budget)
		}
	}
}

func TestChunkOverlapCarriesTail(t *testing.T) {
	c := newTestChunker(t)

	var paras []string
	for i := 0; i < 40; i++ {
		paras = append(paras, strings.Repeat("word ", 40))
	}
	out := c.Chunk([]Unit{{Source: "b.pdf", Locator: "1", Content: strings.Join(paras, "\n\n")}})
	if len(out) < 2 {
		t.Fatalf("len = %d, want a split", len(out))
	}

	// The head of each later chunk repeats material from its predecessor.
	for i := 1; i < len(out); i++ {
		head := strings.SplitN(out[i].Content, "\n", 2)[0]
		if !strings.Contains(out[i-1].Content, head) {
			t.Errorf("chunk %d head not found in chunk %d", i, i-1)
		}
	}
}
