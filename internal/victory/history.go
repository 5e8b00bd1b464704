package victory

import (
	"time"

	"victory-go/internal/model"
)

// Operation statuses recorded in the history.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// History records discover and run operations and their metrics.
type History interface {
	// CreateOperation records the start of an operation.
	CreateOperation(runID, plan, operation string, startedAt time.Time) (*model.Operation, error)

	// FinishOperation records the outcome of an operation. res may be nil when
	// the operation failed before producing metrics.
	FinishOperation(id int64, status string, res *Results, finishedAt time.Time) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*model.Operation, error)

	// Close releases the underlying storage.
	Close() error
}
