package victory

// Destination is the storage capability shared by sources and destinations.
// Every backend (filesystem, S3, memory) implements it, and a plan keeps its
// endpoints as an ordered []Destination.
type Destination interface {
	// ListFilesNext returns up to count regular files from an internal cursor.
	// Records come in a stable order sorted by name and are never repeated.
	// Paths are relative to the backend root. An empty result means the
	// listing is exhausted. Entries that cannot be traversed are logged and
	// omitted rather than failing the call.
	ListFilesNext(count int) ([]*FileRecord, error)

	// ReadFile loads the content for rec.RelativePath into rec.
	// Implementations downgrade read failures to empty content and a warning.
	ReadFile(rec *FileRecord) error

	// WriteFile writes rec's content to rec.RelativePath, creating parent
	// directories as needed. Failures are returned.
	WriteFile(rec *FileRecord) error

	// Name returns the stable identifier used to persist the backend.
	Name() string
}

// Resolver reconstructs a backend from the identifier returned by
// Destination.Name. It is how a reloaded plan gets its capabilities back.
type Resolver interface {
	Resolve(identifier string) (Destination, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(identifier string) (Destination, error)

func (f ResolverFunc) Resolve(identifier string) (Destination, error) {
	return f(identifier)
}
