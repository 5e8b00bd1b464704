package destination

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"victory-go/internal/fs"
	"victory-go/internal/victory"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
}

func listAll(t *testing.T, d victory.Destination, pageSize int) []string {
	t.Helper()
	var paths []string
	for {
		page, err := d.ListFilesNext(pageSize)
		if err != nil {
			t.Fatalf("ListFilesNext() error = %v", err)
		}
		if len(page) == 0 {
			return paths
		}
		for _, rec := range page {
			paths = append(paths, rec.RelativePath)
		}
	}
}

func TestFileSystemDestination_ListFilesNext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.txt":         "b",
		"a/2.txt":       "a2",
		"a/1.txt":       "a1",
		"a/deep/x.bin":  "x",
		"c/skip/me.log": "log",
	})
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	want := []string{"a/1.txt", "a/2.txt", "a/deep/x.bin", "b.txt", "c/skip/me.log"}

	for _, pageSize := range []int{1, 2, 3, 100} {
		d := NewFileSystemDestination(root, nil, nil)
		got := listAll(t, d, pageSize)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("page size %d: listing mismatch (-want +got):\n%s", pageSize, diff)
		}
	}
}

func TestFileSystemDestination_ListFilesNextRecords(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"docs/readme.md": "hi"})

	d := NewFileSystemDestination(root, nil, nil)
	page, err := d.ListFilesNext(10)
	if err != nil {
		t.Fatalf("ListFilesNext() error = %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("len(page) = %d, want 1", len(page))
	}

	want := &victory.FileRecord{
		Name:         "readme.md",
		RelativePath: "docs/readme.md",
		Extension:    "md",
		State:        victory.StateDiscovered,
	}
	if diff := cmp.Diff(want, page[0]); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSystemDestination_ListFilesNextNonPositive(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "1", "b": "2"})

	d := NewFileSystemDestination(root, nil, nil)
	for _, count := range []int{0, -1} {
		page, err := d.ListFilesNext(count)
		if err != nil {
			t.Fatalf("ListFilesNext(%d) error = %v", count, err)
		}
		if len(page) != 0 {
			t.Errorf("ListFilesNext(%d) returned %d records", count, len(page))
		}
	}

	// Cursor did not move.
	if got := listAll(t, d, 10); len(got) != 2 {
		t.Errorf("listing after non-positive counts = %v, want 2 files", got)
	}
}

func TestFileSystemDestination_Ignore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.txt":       "k",
		"drop.tmp":       "d",
		"cache/file.txt": "c",
	})

	d := NewFileSystemDestination(root, fs.NewIgnoreMatcher([]string{"*.tmp", "cache"}), nil)
	got := listAll(t, d, 10)
	if diff := cmp.Diff([]string{"keep.txt"}, got); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSystemDestination_MissingRoot(t *testing.T) {
	d := NewFileSystemDestination(filepath.Join(t.TempDir(), "missing"), nil, nil)
	page, err := d.ListFilesNext(10)
	if err != nil {
		t.Fatalf("ListFilesNext() error = %v", err)
	}
	if len(page) != 0 {
		t.Errorf("len(page) = %d, want 0", len(page))
	}
}

func TestFileSystemDestination_ReadFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"dir/data.bin": "payload"})
	d := NewFileSystemDestination(root, nil, nil)

	t.Run("existing file", func(t *testing.T) {
		rec := victory.NewFileRecord("dir/data.bin")
		if err := d.ReadFile(rec); err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(rec.Contents) != "payload" {
			t.Errorf("Contents = %q, want %q", rec.Contents, "payload")
		}
		if rec.Size != 7 {
			t.Errorf("Size = %d, want 7", rec.Size)
		}
		if rec.State != victory.StateRead {
			t.Errorf("State = %q, want %q", rec.State, victory.StateRead)
		}
	})

	t.Run("missing file loads empty content", func(t *testing.T) {
		rec := victory.NewFileRecord("dir/gone.bin")
		if err := d.ReadFile(rec); err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if rec.Contents == nil || len(rec.Contents) != 0 {
			t.Errorf("Contents = %v, want empty non-nil", rec.Contents)
		}
		if rec.State != victory.StateRead {
			t.Errorf("State = %q, want %q", rec.State, victory.StateRead)
		}
	})
}

func TestFileSystemDestination_WriteFile(t *testing.T) {
	t.Run("creates parents and overwrites", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "dest")
		d := NewFileSystemDestination(root, nil, nil)

		for _, content := range []string{"first", "second"} {
			rec := victory.NewFileRecord("a/b/c.txt")
			rec.LoadContents([]byte(content))
			if err := d.WriteFile(rec); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
		}

		got, err := os.ReadFile(filepath.Join(root, "a", "b", "c.txt"))
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if !bytes.Equal(got, []byte("second")) {
			t.Errorf("content = %q, want %q", got, "second")
		}
	})

	t.Run("no content", func(t *testing.T) {
		d := NewFileSystemDestination(t.TempDir(), nil, nil)
		err := d.WriteFile(victory.NewFileRecord("x.txt"))
		if !errors.Is(err, victory.ErrNoContents) {
			t.Errorf("WriteFile() error = %v, want ErrNoContents", err)
		}
	})

	t.Run("parent is a file", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"blocker": "x"})
		d := NewFileSystemDestination(root, nil, nil)

		rec := victory.NewFileRecord("blocker/child.txt")
		rec.LoadContents([]byte("data"))
		if err := d.WriteFile(rec); err == nil {
			t.Error("WriteFile() expected error, got nil")
		}
	})
}

func TestFileSystemDestination_Name(t *testing.T) {
	d := NewFileSystemDestination("/srv/data", nil, nil)
	if got := d.Name(); got != "/srv/data" {
		t.Errorf("Name() = %q, want %q", got, "/srv/data")
	}
}
