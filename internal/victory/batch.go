package victory

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileBatch is a named group of discovered records and the unit of
// checkpointing. Batches are always saved and loaded whole.
type FileBatch struct {
	Name  string        `yaml:"name"`
	Files []*FileRecord `yaml:"files"`
}

// NewFileBatch creates an empty batch.
func NewFileBatch(name string) *FileBatch {
	return &FileBatch{Name: name, Files: []*FileRecord{}}
}

// AddFile appends a record. No deduplication or size limit is applied.
func (b *FileBatch) AddFile(f *FileRecord) {
	b.Files = append(b.Files, f)
}

// AddFiles appends records in order.
func (b *FileBatch) AddFiles(files []*FileRecord) {
	b.Files = append(b.Files, files...)
}

// Len returns the number of records in the batch.
func (b *FileBatch) Len() int {
	return len(b.Files)
}

// Save serializes the whole batch, including resident content, to path and
// returns the number of bytes written. The parent directory is created if
// needed and the file is replaced atomically.
func (b *FileBatch) Save(path string) (int, error) {
	data, err := yaml.Marshal(b)
	if err != nil {
		return 0, fmt.Errorf("encoding batch %s: %w", b.Name, err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return 0, fmt.Errorf("saving batch %s: %w", b.Name, err)
	}
	return len(data), nil
}

// LoadBatch reads a batch previously written by Save.
func LoadBatch(path string) (*FileBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}

	var b FileBatch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding batch file %s: %w", path, err)
	}
	if b.Name == "" {
		return nil, fmt.Errorf("decoding batch file %s: missing batch name", path)
	}
	if b.Files == nil {
		b.Files = []*FileRecord{}
	}
	return &b, nil
}

// writeFileAtomic writes data to path using a temp file in the same directory
// followed by a rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}
