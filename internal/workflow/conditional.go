package workflow

import (
	"context"
	"strings"

	"github.com/ensemble-hq/ensemble/pkg/models"
)

// executeConditional invokes the predicate capability first; its output
// selects exactly one downstream branch by declared condition key, first
// match wins. With no match and no declared default the pattern fails with
// NoBranchMatched.
func (e *Executor) executeConditional(ctx context.Context, step *models.WorkflowStep, ec *models.ExecutionContext) (*models.Outcome, error) {
	predicate := models.LeafStep(step.Capability)
	e.notify(StepEvent{Phase: PhaseStarted, Pattern: models.PatternConditional, Capability: step.Capability, Index: 0})
	res, err := e.invokeLeaf(ctx, &predicate, ec)
	e.notify(StepEvent{Phase: PhaseFinished, Pattern: models.PatternConditional, Capability: step.Capability, Index: 0, Err: err})
	if err != nil {
		return nil, err
	}

	decision := conditionValue(res)
	for i := range step.Conditions {
		branch := &step.Conditions[i]
		if !matchesCondition(decision, branch.Key) {
			continue
		}
		ec.Set("condition_matched", branch.Key)
		return e.Execute(ctx, &branch.Step, ec)
	}

	if step.Default != nil {
		ec.Set("condition_matched", "default")
		return e.Execute(ctx, step.Default, ec)
	}

	return nil, models.Failuref(models.FailNoBranchMatched,
		"predicate %q produced %q, which matches no declared branch",
		step.Capability, decision)
}

// conditionValue extracts the predicate's decision, preferring structured
// metadata over the first line of content.
func conditionValue(res *models.CapabilityResult) string {
	if v := res.Metadata["branch"]; v != "" {
		return strings.ToLower(strings.TrimSpace(v))
	}
	line := res.Content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return strings.ToLower(strings.TrimSpace(line))
}

func matchesCondition(decision, key string) bool {
	return strings.Contains(decision, strings.ToLower(key))
}
