package app

import (
	"time"

	"github.com/Mangusthvile/talevox/internal/model"
)

// Operation states, stored in the job record.
const (
	opStateRunning = "running"
	opStateDone    = "done"
	opStateFailed  = "failed"
)

// Operation tracks one CLI run. Runs are created in memory; only
// store-mutating commands persist them, written as job records so
// `talevox history` shows what ran and how it ended. Read-only commands
// leave no trace.
type Operation struct {
	ID         string
	Name       string
	Parameters string
	State      string // running, then done or failed
	StartedAt  time.Time

	persisted bool
}

// NewOperation creates a new in-memory operation record.
func NewOperation(name, parameters, id string, startedAt time.Time) *Operation {
	return &Operation{
		ID:         id,
		Name:       name,
		Parameters: parameters,
		State:      opStateRunning,
		StartedAt:  startedAt,
	}
}

// Persisted returns true once this operation has been written to the store.
func (op *Operation) Persisted() bool { return op.persisted }

// Job renders the operation as the job record persisted to the store.
// Creating the same ID again replaces the record, so the in-flight entry
// written at the start of a run is overwritten with the final state on
// close, and a restore that wipes the job table loses nothing.
func (op *Operation) Job() *model.Job {
	return &model.Job{
		ID:        op.ID,
		Kind:      op.Name,
		State:     op.State,
		Payload:   op.Parameters,
		CreatedAt: op.StartedAt,
	}
}
