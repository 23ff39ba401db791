package models

// CapabilityResult is the success payload of a single capability invocation.
// The content is opaque to the orchestrator.
type CapabilityResult struct {
	// Content is the capability's output.
	Content string `json:"content"`
	// Confidence is the capability-supplied score in [0,1], or 0 if none.
	Confidence float64 `json:"confidence,omitempty"`
	// Metadata carries structured detail the capability chose to attach.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OutcomeStatus describes the terminal state of a pattern execution.
type OutcomeStatus string

const (
	// OutcomeAllSucceeded indicates every step or branch succeeded.
	OutcomeAllSucceeded OutcomeStatus = "all_succeeded"
	// OutcomePartialSuccess indicates at least one parallel branch succeeded
	// while others failed.
	OutcomePartialSuccess OutcomeStatus = "partial_success"
	// OutcomeMaxIterationsReached indicates a loop hit its iteration cap
	// without a stop decision. A success with a caveat, not an error.
	OutcomeMaxIterationsReached OutcomeStatus = "max_iterations_reached"
	// OutcomeEscalated indicates a loop ended early by escalation.
	// The reason surfaces as a non-fatal annotation.
	OutcomeEscalated OutcomeStatus = "escalated"
)

// BranchResult is the outcome of one parallel or consensus branch,
// reported in declaration order.
type BranchResult struct {
	// Index is the branch's position in declaration order.
	Index int `json:"index"`
	// Result is the branch output when it succeeded.
	Result *CapabilityResult `json:"result,omitempty"`
	// Err records the branch failure, if any.
	Err error `json:"-"`
}

// Outcome is the combined result of executing a workflow step tree.
type Outcome struct {
	// Status is the terminal state.
	Status OutcomeStatus `json:"status"`
	// Result is the final combined payload.
	Result *CapabilityResult `json:"result,omitempty"`
	// Branches holds per-branch results for parallel and consensus patterns,
	// in declaration order regardless of completion order.
	Branches []BranchResult `json:"branches,omitempty"`
	// Annotation carries a caveat for soft outcomes such as an escalation
	// reason or the iteration cap notice.
	Annotation string `json:"annotation,omitempty"`
	// Iterations is the number of loop iterations executed, if applicable.
	Iterations int `json:"iterations,omitempty"`
}

// Succeeded reports whether the outcome is a success, with or without caveats.
func (o *Outcome) Succeeded() bool {
	switch o.Status {
	case OutcomeAllSucceeded, OutcomePartialSuccess, OutcomeMaxIterationsReached, OutcomeEscalated:
		return true
	default:
		return false
	}
}
