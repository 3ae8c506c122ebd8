package rag

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fallbackUploadDir is the secondary corpus location consulted when the
// configured upload directory holds no parseable documents.
const fallbackUploadDir = "media/uploaded_docs"

// DiscoverCorpus resolves the set of document files a build will index.
//
// An explicit file path selects exactly that file. An explicit directory
// selects the parseable files directly inside it, without recursing. With no
// path the configured upload directory tree is walked, falling back to
// media/uploaded_docs when the tree is empty or missing. Returned paths are
// sorted so builds are deterministic.
func DiscoverCorpus(path, uploadDir string, parsers *ParserRegistry) ([]string, error) {
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("corpus path %q: %w", path, err)
		}
		if !info.IsDir() {
			return []string{path}, nil
		}
		files, err := listDir(path, parsers)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("%w: no parseable files in %s", ErrNoDocuments, path)
		}
		return files, nil
	}

	files, err := walkTree(uploadDir, parsers)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 && uploadDir != fallbackUploadDir {
		if files, err = walkTree(fallbackUploadDir, parsers); err != nil {
			return nil, err
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: the upload directory is empty", ErrNoDocuments)
	}
	return files, nil
}

// listDir returns the parseable files directly inside dir.
func listDir(dir string, parsers *ParserRegistry) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus directory %q: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !parsers.CanParse(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// walkTree returns every parseable file under root. A missing root is an
// empty corpus, not an error.
func walkTree(root string, parsers *ParserRegistry) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if parsers.CanParse(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %q: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
