package models

import "time"

// PatternKind identifies a fixed composition strategy for capabilities.
// The set is closed; executors dispatch over it exhaustively.
type PatternKind string

const (
	// PatternSequential runs steps one after another, threading context through.
	PatternSequential PatternKind = "sequential"
	// PatternParallel runs steps concurrently and joins after all branches finish.
	PatternParallel PatternKind = "parallel"
	// PatternLoop repeats the inner steps until an escalation check stops it
	// or the iteration cap is reached.
	PatternLoop PatternKind = "loop"
	// PatternConsensus fans out analysis branches and feeds every result into
	// a single synthesis capability.
	PatternConsensus PatternKind = "consensus"
	// PatternConditional evaluates a predicate capability and routes to the
	// first matching declared branch.
	PatternConditional PatternKind = "conditional"
)

// Valid returns true if the kind is a known pattern.
func (k PatternKind) Valid() bool {
	switch k {
	case PatternSequential, PatternParallel, PatternLoop, PatternConsensus, PatternConditional:
		return true
	default:
		return false
	}
}

// RetryPolicy declares how many times a failing step may be retried
// before its failure surfaces. The default budget is zero.
type RetryPolicy struct {
	// MaxAttempts is the number of additional attempts after the first failure.
	MaxAttempts int `json:"max_attempts"`
}

// ConditionBranch binds a condition key to the step executed when the
// predicate capability's output matches that key.
type ConditionBranch struct {
	// Key is the condition value this branch handles.
	Key string `json:"key"`
	// Step is the branch executed on a match.
	Step WorkflowStep `json:"step"`
}

// WorkflowStep is one node of a workflow tree: either a leaf capability
// invocation or a composite of child steps under a pattern.
type WorkflowStep struct {
	// Capability is the capability ID for leaf steps. Empty for composites.
	Capability string `json:"capability,omitempty"`
	// Pattern is the composition strategy for composite steps.
	Pattern PatternKind `json:"pattern,omitempty"`
	// Steps are the children of a composite step, in declaration order.
	Steps []WorkflowStep `json:"steps,omitempty"`
	// Retry is the optional per-step retry policy.
	Retry *RetryPolicy `json:"retry,omitempty"`
	// MaxIterations caps loop repetitions. Required >= 1 for loop composites.
	MaxIterations int `json:"max_iterations,omitempty"`
	// Escalator is the capability consulted after each loop iteration.
	Escalator string `json:"escalator,omitempty"`
	// Synthesizer is the capability that merges consensus branch results.
	Synthesizer string `json:"synthesizer,omitempty"`
	// Conditions are the declared branches of a conditional composite.
	Conditions []ConditionBranch `json:"conditions,omitempty"`
	// Default is the fallback branch of a conditional composite, if declared.
	Default *WorkflowStep `json:"default,omitempty"`
}

// IsLeaf returns true if the step invokes a single capability.
func (s *WorkflowStep) IsLeaf() bool {
	return s.Capability != ""
}

// LeafStep builds a leaf step invoking one capability.
func LeafStep(capability string) WorkflowStep {
	return WorkflowStep{Capability: capability}
}

// SequentialStep builds a sequential composite over the given children.
func SequentialStep(steps ...WorkflowStep) WorkflowStep {
	return WorkflowStep{Pattern: PatternSequential, Steps: steps}
}

// ParallelStep builds a parallel composite over the given children.
func ParallelStep(steps ...WorkflowStep) WorkflowStep {
	return WorkflowStep{Pattern: PatternParallel, Steps: steps}
}

// LoopStep builds a loop composite. It is a construction-time error for
// maxIterations to be less than 1.
func LoopStep(maxIterations int, escalator string, steps ...WorkflowStep) (WorkflowStep, error) {
	if maxIterations < 1 {
		return WorkflowStep{}, Failuref(FailInvalidWorkflow,
			"loop requires max_iterations >= 1, got %d", maxIterations)
	}
	return WorkflowStep{
		Pattern:       PatternLoop,
		Steps:         steps,
		MaxIterations: maxIterations,
		Escalator:     escalator,
	}, nil
}

// ConsensusStep builds a consensus composite with a synthesis capability.
func ConsensusStep(synthesizer string, steps ...WorkflowStep) WorkflowStep {
	return WorkflowStep{Pattern: PatternConsensus, Steps: steps, Synthesizer: synthesizer}
}

// ConditionalStep builds a conditional composite. The predicate capability
// runs first; its output selects the first matching branch key.
func ConditionalStep(predicate string, branches []ConditionBranch, defaultBranch *WorkflowStep) WorkflowStep {
	return WorkflowStep{
		Pattern:    PatternConditional,
		Capability: predicate,
		Conditions: branches,
		Default:    defaultBranch,
	}
}

// Validate walks the tree and reports the first structural violation.
// Loop composites without a positive iteration cap are rejected here so a
// malformed stored workflow never reaches an executor.
func (s *WorkflowStep) Validate() error {
	if s.IsLeaf() && s.Pattern == "" {
		return nil
	}
	if s.Pattern == PatternConditional {
		if s.Capability == "" {
			return NewFailure(FailInvalidWorkflow, "conditional requires a predicate capability")
		}
		for i := range s.Conditions {
			if err := s.Conditions[i].Step.Validate(); err != nil {
				return err
			}
		}
		if s.Default != nil {
			return s.Default.Validate()
		}
		return nil
	}
	if !s.Pattern.Valid() {
		return Failuref(FailInvalidWorkflow, "unknown pattern %q", s.Pattern)
	}
	if s.Pattern == PatternLoop && s.MaxIterations < 1 {
		return Failuref(FailInvalidWorkflow,
			"loop requires max_iterations >= 1, got %d", s.MaxIterations)
	}
	if s.Pattern == PatternConsensus && s.Synthesizer == "" {
		return NewFailure(FailInvalidWorkflow, "consensus requires a synthesizer capability")
	}
	if len(s.Steps) == 0 {
		return Failuref(FailInvalidWorkflow, "%s composite has no steps", s.Pattern)
	}
	for i := range s.Steps {
		if err := s.Steps[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CapabilityIDs returns every capability referenced anywhere in the tree,
// including predicates, escalators, and synthesizers, in first-seen order.
func (s *WorkflowStep) CapabilityIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	var walk func(st *WorkflowStep)
	walk = func(st *WorkflowStep) {
		add(st.Capability)
		add(st.Escalator)
		add(st.Synthesizer)
		for i := range st.Steps {
			walk(&st.Steps[i])
		}
		for i := range st.Conditions {
			walk(&st.Conditions[i].Step)
		}
		if st.Default != nil {
			walk(st.Default)
		}
	}
	walk(s)
	return ids
}

// ComposedWorkflow is a persisted, reusable workflow tree bound to one
// requester. Usage metadata is updated on every cache hit.
type ComposedWorkflow struct {
	// ID is the unique identifier for this workflow.
	ID string `json:"id"`
	// RequesterID is the owning requester. Workflows are never visible
	// across requesters.
	RequesterID string `json:"requester_id"`
	// Name is the human-readable name, unique per requester.
	Name string `json:"name"`
	// Fingerprint is the normalized request fingerprint used for cache matching.
	Fingerprint string `json:"fingerprint"`
	// Root is the workflow tree.
	Root WorkflowStep `json:"root"`
	// CreatedAt is when the workflow was composed.
	CreatedAt time.Time `json:"created_at"`
	// UsageCount is the number of times the workflow has been reused.
	UsageCount int64 `json:"usage_count"`
	// LastUsedAt is when the workflow was last executed.
	LastUsedAt time.Time `json:"last_used_at"`
}
