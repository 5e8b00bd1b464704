package destination

import (
	"fmt"
	"strings"
	"sync"

	"victory-go/internal/config"
	"victory-go/internal/fs"
	"victory-go/internal/victory"
)

// ResolverOptions configures how identifiers become backends.
type ResolverOptions struct {
	// Ignore holds glob patterns applied to filesystem listings, in addition
	// to each root's ignore file.
	Ignore []string
	// S3 configures the client built for s3:// identifiers.
	S3 config.S3Config
	// S3Client overrides client construction. Used by tests.
	S3Client S3API
}

// Resolver creates a fresh backend per identifier: s3://bucket/prefix,
// memory://name, otherwise a filesystem root path.
type Resolver struct {
	opts   ResolverOptions
	logger victory.Logger

	mu       sync.Mutex
	s3Client S3API
	stores   map[string]*MemoryStore
}

// NewResolver creates a resolver.
func NewResolver(opts ResolverOptions, logger victory.Logger) *Resolver {
	if logger == nil {
		logger = victory.NewNopLogger()
	}
	return &Resolver{
		opts:     opts,
		logger:   logger,
		s3Client: opts.S3Client,
		stores:   make(map[string]*MemoryStore),
	}
}

// RegisterMemoryStore makes store available as memory://name.
func (r *Resolver) RegisterMemoryStore(name string, store *MemoryStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[name] = store
}

// Resolve implements victory.Resolver.
func (r *Resolver) Resolve(identifier string) (victory.Destination, error) {
	switch {
	case strings.HasPrefix(identifier, S3Scheme):
		return r.resolveS3(identifier)
	case strings.HasPrefix(identifier, MemoryScheme):
		return r.resolveMemory(identifier)
	case identifier == "":
		return nil, fmt.Errorf("empty backend identifier")
	default:
		return r.resolveFilesystem(identifier)
	}
}

func (r *Resolver) resolveFilesystem(root string) (victory.Destination, error) {
	ignore, err := fs.LoadIgnoreMatcher(root, r.opts.Ignore)
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns for %s: %w", root, err)
	}
	return NewFileSystemDestination(root, ignore, r.logger), nil
}

func (r *Resolver) resolveS3(identifier string) (victory.Destination, error) {
	bucket, prefix, err := ParseS3Identifier(identifier)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.s3Client == nil {
		client, err := NewS3Client(r.opts.S3)
		if err != nil {
			return nil, fmt.Errorf("creating s3 client: %w", err)
		}
		r.s3Client = client
	}
	return NewS3Destination(r.s3Client, bucket, prefix, r.logger), nil
}

// resolveMemory returns a view over the named store, creating the store on
// first use.
func (r *Resolver) resolveMemory(identifier string) (victory.Destination, error) {
	name, err := parseMemoryIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[name]
	if !ok {
		store = NewMemoryStore()
		r.stores[name] = store
	}
	return NewMemoryDestination(name, store, r.logger), nil
}

// Compile-time check that Resolver implements victory.Resolver
var _ victory.Resolver = (*Resolver)(nil)
