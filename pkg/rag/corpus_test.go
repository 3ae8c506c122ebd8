package rag

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverCorpusExplicitFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "doc.pdf")
	touch(t, file)
	touch(t, filepath.Join(dir, "other.pdf"))

	files, err := DiscoverCorpus(file, dir, NewParserRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != file {
		t.Errorf("files = %v, want exactly %q", files, file)
	}
}

func TestDiscoverCorpusExplicitDirIsNotRecursive(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "top.pdf"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "nested", "deep.pdf"))

	files, err := DiscoverCorpus(dir, "unused", NewParserRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "top.pdf" {
		t.Errorf("files = %v, want only top.pdf", files)
	}
}

func TestDiscoverCorpusWalksUploadTree(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.pdf"))
	touch(t, filepath.Join(dir, "sub", "b.docx"))
	touch(t, filepath.Join(dir, "sub", "ignored.txt"))

	files, err := DiscoverCorpus("", dir, NewParserRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("files = %v, want 2 entries", files)
	}
}

func TestDiscoverCorpusFallsBackToDefaultDir(t *testing.T) {
	t.Chdir(t.TempDir())
	touch(t, filepath.Join(fallbackUploadDir, "legacy.pdf"))

	files, err := DiscoverCorpus("", "does/not/exist", NewParserRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "legacy.pdf" {
		t.Errorf("files = %v, want the fallback document", files)
	}
}

func TestDiscoverCorpusEmpty(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := DiscoverCorpus("", "does/not/exist", NewParserRegistry())
	if !errors.Is(err, ErrNoDocuments) {
		t.Errorf("err = %v, want ErrNoDocuments", err)
	}
}

func TestDiscoverCorpusMissingExplicitPath(t *testing.T) {
	if _, err := DiscoverCorpus(filepath.Join(t.TempDir(), "absent.pdf"), "", NewParserRegistry()); err == nil {
		t.Error("expected an error for a missing explicit path")
	}
}
