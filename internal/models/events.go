package models

import "time"

// Event types
const (
	EventTypeRunRequested        = "RUN_REQUESTED"
	EventTypeRunCompleted        = "RUN_COMPLETED"
	EventTypeInstructionsWritten = "INSTRUCTIONS_WRITTEN"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// RunRequestedEvent asks a worker to start a consolidation run
type RunRequestedEvent struct {
	BaseEvent
	RequestedBy string `json:"requested_by"`
}

// RunCompletedEvent published when a run reaches a terminal state
type RunCompletedEvent struct {
	BaseEvent
	RunID   string      `json:"run_id"`
	Outcome string      `json:"outcome"`
	Summary *RunSummary `json:"summary"`
}

// InstructionsWrittenEvent published per source once its instructions are committed
type InstructionsWrittenEvent struct {
	BaseEvent
	RunID  string     `json:"run_id"`
	Source string     `json:"source"`
	Orders []OrderRef `json:"orders"`
}
