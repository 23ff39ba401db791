package workflow

import (
	"context"

	"github.com/ensemble-hq/ensemble/pkg/models"
)

// executeSequential runs children in declaration order on one logical thread
// of control. Step i+1 sees the context as mutated by step i. A failure
// (after the step's retry budget) aborts the remaining steps.
func (e *Executor) executeSequential(ctx context.Context, step *models.WorkflowStep, ec *models.ExecutionContext) (*models.Outcome, error) {
	var last *models.CapabilityResult

	for i := range step.Steps {
		if err := ctx.Err(); err != nil {
			return nil, models.NewFailure(models.FailCancelled, "run cancelled between steps").WithCause(err)
		}

		child := &step.Steps[i]
		e.notify(StepEvent{Phase: PhaseStarted, Pattern: models.PatternSequential, Capability: child.Capability, Index: i})

		out, err := e.executeWithRetry(ctx, child, ec)
		if err != nil {
			e.notify(StepEvent{Phase: PhaseFinished, Pattern: models.PatternSequential, Capability: child.Capability, Index: i, Err: err})
			if models.IsKind(err, models.FailCancelled) {
				return nil, err
			}
			return nil, models.Failuref(models.FailStepFailed, "step %d failed", i).
				AtStep(i).WithCapability(child.Capability).WithCause(err)
		}
		e.notify(StepEvent{Phase: PhaseFinished, Pattern: models.PatternSequential, Capability: child.Capability, Index: i})
		last = out.Result
	}

	return &models.Outcome{Status: models.OutcomeAllSucceeded, Result: last}, nil
}
