package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/ensemble-hq/ensemble/pkg/models"
)

// escalation decisions recognized from the escalator capability's output.
const (
	decisionContinue = "continue"
	decisionStop     = "stop"
	decisionEscalate = "escalate"
)

// executeLoop repeats the inner step sequence up to MaxIterations. After each
// iteration the escalator capability decides continue, stop, or escalate.
// Escalation ends the loop with a non-fatal annotation; hitting the cap is a
// success with a caveat, never a failure.
func (e *Executor) executeLoop(ctx context.Context, step *models.WorkflowStep, ec *models.ExecutionContext) (*models.Outcome, error) {
	if step.MaxIterations < 1 {
		return nil, models.Failuref(models.FailInvalidWorkflow,
			"loop requires max_iterations >= 1, got %d", step.MaxIterations)
	}

	inner := models.WorkflowStep{Pattern: models.PatternSequential, Steps: step.Steps}
	var last *models.CapabilityResult

	for iter := 1; iter <= step.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, models.NewFailure(models.FailCancelled, "run cancelled between iterations").WithCause(err)
		}

		ec.Set("loop_iteration", fmt.Sprintf("%d", iter))
		out, err := e.executeSequential(ctx, &inner, ec)
		if err != nil {
			return nil, err
		}
		last = out.Result

		decision, reason, err := e.checkEscalation(ctx, step, ec)
		if err != nil {
			return nil, err
		}
		switch decision {
		case decisionStop:
			return &models.Outcome{
				Status:     models.OutcomeAllSucceeded,
				Result:     last,
				Iterations: iter,
			}, nil
		case decisionEscalate:
			return &models.Outcome{
				Status:     models.OutcomeEscalated,
				Result:     last,
				Iterations: iter,
				Annotation: reason,
			}, nil
		}
	}

	return &models.Outcome{
		Status:     models.OutcomeMaxIterationsReached,
		Result:     last,
		Iterations: step.MaxIterations,
		Annotation: fmt.Sprintf("stopped after %d iterations without convergence", step.MaxIterations),
	}, nil
}

// checkEscalation invokes the escalator capability, which is a capability
// invocation like any other. An undeclared escalator always continues.
func (e *Executor) checkEscalation(ctx context.Context, step *models.WorkflowStep, ec *models.ExecutionContext) (string, string, error) {
	if step.Escalator == "" {
		return decisionContinue, "", nil
	}

	check := models.LeafStep(step.Escalator)
	res, err := e.invokeLeaf(ctx, &check, ec)
	if err != nil {
		if models.IsKind(err, models.FailCancelled) || models.IsKind(err, models.FailUnknownCapability) {
			return "", "", err
		}
		// A broken escalation check does not fail the refinement loop;
		// the loop keeps iterating toward its cap.
		return decisionContinue, "", nil
	}
	return parseDecision(res)
}

// parseDecision reads the escalator's verdict, preferring structured
// metadata over the first line of content.
func parseDecision(res *models.CapabilityResult) (string, string, error) {
	raw := res.Metadata["decision"]
	if raw == "" {
		raw = res.Content
		if i := strings.IndexByte(raw, '\n'); i >= 0 {
			raw = raw[:i]
		}
	}
	raw = strings.TrimSpace(strings.ToLower(raw))

	switch {
	case strings.HasPrefix(raw, decisionStop):
		return decisionStop, "", nil
	case strings.HasPrefix(raw, decisionEscalate):
		reason := strings.TrimSpace(strings.TrimPrefix(raw, decisionEscalate))
		reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
		if reason == "" {
			reason = "escalated without a stated reason"
		}
		return decisionEscalate, reason, nil
	default:
		return decisionContinue, "", nil
	}
}
