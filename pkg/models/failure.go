package models

import (
	"errors"
	"fmt"
)

// FailureKind classifies a terminal failure of an orchestration run
// or of a single step within it.
type FailureKind string

const (
	// FailUnknownCapability indicates a capability ID that is not registered.
	FailUnknownCapability FailureKind = "unknown_capability"
	// FailDuplicateCapability indicates a second registration under an existing ID.
	FailDuplicateCapability FailureKind = "duplicate_capability"
	// FailNoCapabilityMatch indicates the analyzer found no capability for a request.
	FailNoCapabilityMatch FailureKind = "no_capability_match"
	// FailStepFailed indicates a sequential step failed after exhausting its retry budget.
	FailStepFailed FailureKind = "step_failed"
	// FailAllBranchesFailed indicates every branch of a parallel pattern failed.
	FailAllBranchesFailed FailureKind = "all_branches_failed"
	// FailSynthesisFailed indicates the consensus synthesis capability failed
	// or was starved of usable analysis input.
	FailSynthesisFailed FailureKind = "synthesis_failed"
	// FailNoBranchMatched indicates a conditional pattern matched no branch
	// and declared no default.
	FailNoBranchMatched FailureKind = "no_branch_matched"
	// FailCancelled indicates the run was cancelled before completion.
	FailCancelled FailureKind = "cancelled"
	// FailDuplicateWorkflowName indicates a distinct workflow already exists
	// under the same name for the requester.
	FailDuplicateWorkflowName FailureKind = "duplicate_workflow_name"
	// FailRetrievalUnavailable indicates the knowledge retriever was unreachable.
	// Callers degrade to empty context; this alone never fails a run.
	FailRetrievalUnavailable FailureKind = "retrieval_unavailable"
	// FailInvalidWorkflow indicates a malformed workflow tree, such as a loop
	// without a positive iteration cap. Raised at construction, not execution.
	FailInvalidWorkflow FailureKind = "invalid_workflow"
)

// Failure is the structured error type for orchestration failures.
// It carries enough detail (kind plus the step or branch it occurred at)
// to render a specific user-facing message.
type Failure struct {
	// Kind classifies the failure.
	Kind FailureKind
	// Detail is a human-readable description.
	Detail string
	// StepIndex is the zero-based index of the failing step, or -1.
	StepIndex int
	// Branch is the zero-based index of the failing branch, or -1.
	Branch int
	// Capability is the capability involved, if any.
	Capability string
	// Cause is the underlying error, if any.
	Cause error
}

// NewFailure creates a Failure with no step or branch position.
func NewFailure(kind FailureKind, detail string) *Failure {
	return &Failure{Kind: kind, Detail: detail, StepIndex: -1, Branch: -1}
}

// Failuref creates a Failure with a formatted detail message.
func Failuref(kind FailureKind, format string, args ...interface{}) *Failure {
	return NewFailure(kind, fmt.Sprintf(format, args...))
}

// AtStep returns a copy of the failure annotated with a step index.
func (f *Failure) AtStep(i int) *Failure {
	c := *f
	c.StepIndex = i
	return &c
}

// AtBranch returns a copy of the failure annotated with a branch index.
func (f *Failure) AtBranch(i int) *Failure {
	c := *f
	c.Branch = i
	return &c
}

// WithCapability returns a copy of the failure annotated with a capability ID.
func (f *Failure) WithCapability(id string) *Failure {
	c := *f
	c.Capability = id
	return &c
}

// WithCause returns a copy of the failure wrapping an underlying error.
func (f *Failure) WithCause(err error) *Failure {
	c := *f
	c.Cause = err
	return &c
}

// Error implements the error interface.
func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s: %s", f.Kind, f.Detail)
	if f.StepIndex >= 0 {
		msg = fmt.Sprintf("%s (step %d)", msg, f.StepIndex)
	}
	if f.Branch >= 0 {
		msg = fmt.Sprintf("%s (branch %d)", msg, f.Branch)
	}
	if f.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, f.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// AsFailure extracts a *Failure from an error chain.
// Returns nil if the chain contains no Failure.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return nil
}

// IsKind reports whether err is a Failure of the given kind.
func IsKind(err error, kind FailureKind) bool {
	f := AsFailure(err)
	return f != nil && f.Kind == kind
}
