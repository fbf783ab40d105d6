package domain

import "time"

// ExecutionStatus is the lifecycle of a signal execution record.
type ExecutionStatus string

const (
	ExecutionStatusPending  ExecutionStatus = "PENDING"
	ExecutionStatusExecuted ExecutionStatus = "EXECUTED"
	ExecutionStatusFailed   ExecutionStatus = "FAILED"
	ExecutionStatusSkipped  ExecutionStatus = "SKIPPED"
)

// Execution records that one agent acted (or declined to act) on one signal.
// A uniqueness constraint on (SignalID, AgentID) is the source of truth for
// the at-most-once guarantee; the row is created once and terminal-updated
// exactly once.
type Execution struct {
	ID            string
	SignalID      string
	AgentID       string
	Status        ExecutionStatus
	TransactionID *string
	Error         *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
