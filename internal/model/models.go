package model

import (
	"database/sql"
	"time"
)

// Operation is one recorded discover or run invocation against a plan.
type Operation struct {
	ID         int64
	RunID      string // UUID, also the operation id in log lines
	Plan       string // plan name
	Operation  string // "discover", "run" or "batch"
	Status     string // "running", "success" or "error"
	Files      int64
	Failed     int64
	Batches    int64
	StartedAt  time.Time
	FinishedAt sql.NullTime
}
