package victory

import "errors"

var (
	// ErrNoSource is returned when a replay is attempted on a plan without sources.
	ErrNoSource = errors.New("plan has no source")

	// ErrNoDestination is returned when a replay is attempted on a plan without destinations.
	ErrNoDestination = errors.New("plan has no destination")

	// ErrNoRoot is returned when a plan that was never saved is asked to persist batches.
	ErrNoRoot = errors.New("plan has no root path (save the plan first)")

	// ErrInvalidBatchSize is returned by Discover for a batch size below one.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrNoContents is returned when a record without loaded content is written.
	ErrNoContents = errors.New("file has no contents")
)
