package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	victoryfs "victory-go/internal/fs"
)

// WriteTree creates files below root from a map of slash-separated relative
// paths to content.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("creating %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", p, err)
		}
	}
}

// PatternTree generates count files of size bytes directly below root.
func PatternTree(t *testing.T, root string, count, size int) {
	t.Helper()
	if err := victoryfs.GenerateFolder(root, size, count); err != nil {
		t.Fatalf("generating test tree: %v", err)
	}
}

// ReadTree returns every regular file below root keyed by slash-separated
// relative path.
func ReadTree(t *testing.T, root string) map[string][]byte {
	t.Helper()
	files := make(map[string][]byte)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		t.Fatalf("reading tree %s: %v", root, err)
	}
	return files
}
