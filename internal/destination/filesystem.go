package destination

import (
	"fmt"
	"os"
	"path/filepath"

	"victory-go/internal/fs"
	"victory-go/internal/victory"
)

// FileSystemDestination is a victory.Destination rooted at a local directory.
// Listing walks the tree lazily in name order; record paths are relative to
// the root so the same record can be written under a different root.
type FileSystemDestination struct {
	root   string
	ignore *fs.IgnoreMatcher
	walker *fs.Walker
	logger victory.Logger
}

// NewFileSystemDestination creates a filesystem backend for root. ignore may
// be nil. The listing cursor starts at the beginning of the tree.
func NewFileSystemDestination(root string, ignore *fs.IgnoreMatcher, logger victory.Logger) *FileSystemDestination {
	if logger == nil {
		logger = victory.NewNopLogger()
	}
	d := &FileSystemDestination{
		root:   root,
		ignore: ignore,
		logger: logger,
	}
	d.walker = fs.NewWalker(root, ignore, func(rel string, err error) {
		d.logger.Warn("skipping unreadable directory", "root", root, "path", rel, "error", err)
	})
	return d
}

// ListFilesNext returns up to count regular files from the cursor.
func (d *FileSystemDestination) ListFilesNext(count int) ([]*victory.FileRecord, error) {
	files := make([]*victory.FileRecord, 0, max(count, 0))
	for len(files) < count {
		rel, ok := d.walker.Next()
		if !ok {
			break
		}
		files = append(files, victory.NewFileRecord(rel))
	}
	return files, nil
}

// ReadFile loads the record's content from disk. A file that cannot be read
// is given empty content and a warning is logged.
func (d *FileSystemDestination) ReadFile(rec *victory.FileRecord) error {
	data, err := os.ReadFile(d.fullPath(rec))
	if err != nil {
		d.logger.Warn("reading file failed, using empty content", "root", d.root, "path", rec.RelativePath, "error", err)
		data = []byte{}
	}
	rec.LoadContents(data)
	d.logger.Debug("file read", "path", rec.RelativePath, "size", rec.Size)
	return nil
}

// WriteFile writes the record's content below the root, creating parent
// directories. Existing files are overwritten.
func (d *FileSystemDestination) WriteFile(rec *victory.FileRecord) error {
	contents, err := rec.ContentsOrError()
	if err != nil {
		return err
	}

	destPath := d.fullPath(rec)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.WriteFile(destPath, contents, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// Name returns the root path.
func (d *FileSystemDestination) Name() string {
	return d.root
}

func (d *FileSystemDestination) fullPath(rec *victory.FileRecord) string {
	return filepath.Join(d.root, filepath.FromSlash(rec.RelativePath))
}

// Compile-time check that FileSystemDestination implements victory.Destination
var _ victory.Destination = (*FileSystemDestination)(nil)
