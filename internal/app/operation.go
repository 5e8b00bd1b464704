package app

import "victory-go/internal/victory"

// PlanOperation tracks a CLI command that discovers or replays a plan.
// Operations are created in memory with ID=0 and get an auto-increment ID
// once the history database records them.
type PlanOperation struct {
	ID        int64
	RunID     string
	Plan      string
	Operation string
	Status    string
}

// NewPlanOperation creates a new in-memory operation in the running state.
func NewPlanOperation(runID, plan, operation string) *PlanOperation {
	return &PlanOperation{
		RunID:     runID,
		Plan:      plan,
		Operation: operation,
		Status:    victory.StatusRunning,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *PlanOperation) Persisted() bool {
	return op.ID != 0
}

// Finish sets the final status from the operation's error.
func (op *PlanOperation) Finish(err error) {
	if err != nil {
		op.Status = victory.StatusError
		return
	}
	op.Status = victory.StatusSuccess
}
