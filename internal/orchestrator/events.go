// Package orchestrator coordinates request analysis, workflow reuse, and
// pattern execution, reporting progress as a stream of events.
package orchestrator

import (
	"time"

	"github.com/ensemble-hq/ensemble/pkg/models"
)

// EventType represents the type of orchestration event.
type EventType string

const (
	// EventRunReceived indicates a request was accepted for orchestration.
	EventRunReceived EventType = "run_received"
	// EventCacheHit indicates a stored workflow matched the request fingerprint.
	EventCacheHit EventType = "cache_hit"
	// EventCacheMiss indicates no stored workflow matched and a new one will be composed.
	EventCacheMiss EventType = "cache_miss"
	// EventWorkflowComposed indicates a new workflow was composed from the request.
	EventWorkflowComposed EventType = "workflow_composed"
	// EventWorkflowStored indicates the composed workflow was saved for reuse.
	EventWorkflowStored EventType = "workflow_stored"
	// EventStepStarted indicates a workflow step began executing.
	EventStepStarted EventType = "step_started"
	// EventStepFinished indicates a workflow step reached a terminal state.
	EventStepFinished EventType = "step_finished"
	// EventRunCompleted indicates the run finished with a usable outcome.
	EventRunCompleted EventType = "run_completed"
	// EventRunFailed indicates the run ended without a usable outcome.
	EventRunFailed EventType = "run_failed"
)

// ProgressEvent is one update in a run's event stream. The stream always
// ends with exactly one terminal event, run_completed or run_failed, after
// which the channel closes.
type ProgressEvent struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the orchestration run.
	RunID string
	// RequesterID is the requester that submitted the run.
	RequesterID string
	// WorkflowID is the ID of the workflow being executed, once known.
	WorkflowID string
	// WorkflowName is the human-readable workflow name, once known.
	WorkflowName string
	// Reused reports whether the workflow came from the reuse store.
	Reused bool
	// Pattern is the pattern containing the step, for step events.
	Pattern models.PatternKind
	// Capability is the capability ID, for step events.
	Capability string
	// StepIndex is the step or branch position in declaration order.
	StepIndex int
	// Message provides additional context about the event.
	Message string
	// Outcome carries the final result on run_completed events.
	Outcome *models.Outcome
	// Error contains failure details for step_finished and run_failed events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Terminal reports whether this event ends the run's stream.
func (e ProgressEvent) Terminal() bool {
	return e.Type == EventRunCompleted || e.Type == EventRunFailed
}
