package destination

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"victory-go/internal/victory"
)

// MemoryScheme prefixes the identifier of an in-memory backend.
const MemoryScheme = "memory://"

// MemoryStore holds file content by relative path. Several MemoryDestination
// values can share a store, each with its own listing cursor.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	files map[string][]byte
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

// Put stores a copy of data at relativePath.
func (s *MemoryStore) Put(relativePath string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[relativePath] = append([]byte{}, data...)
}

// Get returns a copy of the content at relativePath.
func (s *MemoryStore) Get(relativePath string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[relativePath]
	if !ok {
		return nil, false
	}
	return append([]byte{}, data...), true
}

// Len returns the number of stored files.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Paths returns every stored path in sorted order.
func (s *MemoryStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// MemoryDestination is an in-memory implementation of victory.Destination,
// useful for tests and dry runs. The listing is a sorted snapshot of the
// store taken on the first ListFilesNext call.
type MemoryDestination struct {
	name    string
	store   *MemoryStore
	logger  victory.Logger
	pending []string
	listed  bool
}

// NewMemoryDestination creates a backend named name over store.
func NewMemoryDestination(name string, store *MemoryStore, logger victory.Logger) *MemoryDestination {
	if logger == nil {
		logger = victory.NewNopLogger()
	}
	return &MemoryDestination{name: name, store: store, logger: logger}
}

// Store returns the backing store.
func (m *MemoryDestination) Store() *MemoryStore {
	return m.store
}

// ListFilesNext returns up to count records from the snapshot.
func (m *MemoryDestination) ListFilesNext(count int) ([]*victory.FileRecord, error) {
	if !m.listed {
		m.listed = true
		m.pending = m.store.Paths()
	}

	n := min(max(count, 0), len(m.pending))
	files := make([]*victory.FileRecord, 0, n)
	for _, p := range m.pending[:n] {
		files = append(files, victory.NewFileRecord(p))
	}
	m.pending = m.pending[n:]
	return files, nil
}

// ReadFile loads content from the store. Missing content is downgraded to
// empty content with a warning.
func (m *MemoryDestination) ReadFile(rec *victory.FileRecord) error {
	data, ok := m.store.Get(rec.RelativePath)
	if !ok {
		m.logger.Warn("reading file failed, using empty content", "root", m.Name(), "path", rec.RelativePath, "error", "not found")
		data = []byte{}
	}
	rec.LoadContents(data)
	return nil
}

// WriteFile stores the record's content.
func (m *MemoryDestination) WriteFile(rec *victory.FileRecord) error {
	contents, err := rec.ContentsOrError()
	if err != nil {
		return err
	}
	m.store.Put(rec.RelativePath, contents)
	return nil
}

// Name returns memory://<name>.
func (m *MemoryDestination) Name() string {
	return MemoryScheme + m.name
}

// parseMemoryIdentifier extracts the store name from a memory:// identifier.
func parseMemoryIdentifier(id string) (string, error) {
	name := strings.TrimPrefix(id, MemoryScheme)
	if name == "" {
		return "", fmt.Errorf("memory identifier %q has no name", id)
	}
	return name, nil
}

// Compile-time check that MemoryDestination implements victory.Destination
var _ victory.Destination = (*MemoryDestination)(nil)
