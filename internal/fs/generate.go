package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

// PatternContent returns size bytes of the deterministic test pattern
// byte(i + i%255).
func PatternContent(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i + i%255)
	}
	return data
}

// GenerateFile writes size bytes of pattern content to path.
func GenerateFile(path string, size int) error {
	if err := os.WriteFile(path, PatternContent(size), 0644); err != nil {
		return fmt.Errorf("generating file %s: %w", path, err)
	}
	return nil
}

// GenerateFolder creates dir and fills it with count files named file_<i>,
// each holding size bytes of pattern content.
func GenerateFolder(dir string, size, count int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	for i := 0; i < count; i++ {
		if err := GenerateFile(filepath.Join(dir, fmt.Sprintf("file_%d", i)), size); err != nil {
			return err
		}
	}
	return nil
}
