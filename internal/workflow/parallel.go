package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ensemble-hq/ensemble/pkg/models"
)

// executeParallel forks one branch per child against a forked context and
// joins only after every branch reaches a terminal state. Fail-fast is
// deliberately rejected: a failing branch does not cancel its siblings,
// because downstream synthesis wants as many perspectives as possible.
func (e *Executor) executeParallel(ctx context.Context, step *models.WorkflowStep, ec *models.ExecutionContext) (*models.Outcome, error) {
	branches, err := e.runBranches(ctx, step, ec)
	if err != nil {
		return nil, err
	}

	succeeded := 0
	for _, b := range branches {
		if b.Err == nil {
			succeeded++
		}
	}

	if succeeded == 0 {
		detail := make([]string, 0, len(branches))
		for _, b := range branches {
			detail = append(detail, fmt.Sprintf("branch %d: %v", b.Index, b.Err))
		}
		return nil, models.Failuref(models.FailAllBranchesFailed,
			"all %d branches failed: %s", len(branches), strings.Join(detail, "; "))
	}

	status := models.OutcomeAllSucceeded
	if succeeded < len(branches) {
		status = models.OutcomePartialSuccess
	}

	return &models.Outcome{
		Status:   status,
		Result:   combineBranches(branches),
		Branches: branches,
	}, nil
}

// runBranches executes every child concurrently, bounded by maxInFlight, and
// returns per-branch results in declaration order. The parent context bag is
// merged from the forked children in branch completion order.
func (e *Executor) runBranches(ctx context.Context, step *models.WorkflowStep, ec *models.ExecutionContext) ([]models.BranchResult, error) {
	n := len(step.Steps)
	branches := make([]models.BranchResult, n)
	forks := make([]*models.ExecutionContext, n)

	var mu sync.Mutex
	completionOrder := make([]*models.ExecutionContext, 0, n)

	g := new(errgroup.Group)
	g.SetLimit(e.maxInFlight)

	for i := range step.Steps {
		i := i
		child := &step.Steps[i]
		// Fork before spawn so every branch sees the bag as of fan-out time.
		forks[i] = ec.Fork()

		g.Go(func() error {
			e.notify(StepEvent{Phase: PhaseStarted, Pattern: step.Pattern, Capability: child.Capability, Index: i})

			out, err := e.Execute(ctx, child, forks[i])
			branches[i] = models.BranchResult{Index: i, Err: err}
			if err == nil {
				branches[i].Result = out.Result
			}

			mu.Lock()
			completionOrder = append(completionOrder, forks[i])
			mu.Unlock()

			e.notify(StepEvent{Phase: PhaseFinished, Pattern: step.Pattern, Capability: child.Capability, Index: i, Err: err})
			return nil
		})
	}

	// The join: waits for every branch's terminal state. Branch errors are
	// recorded per-branch, never returned from the group.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, models.NewFailure(models.FailCancelled, "run cancelled during parallel execution").WithCause(err)
	}

	ec.Merge(completionOrder...)
	return branches, nil
}

// combineBranches concatenates successful branch outputs in declaration
// order, which keeps combined results deterministic regardless of
// completion order.
func combineBranches(branches []models.BranchResult) *models.CapabilityResult {
	var b strings.Builder
	var confidence float64
	count := 0
	for _, br := range branches {
		if br.Err != nil || br.Result == nil {
			continue
		}
		if count > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(br.Result.Content)
		confidence += br.Result.Confidence
		count++
	}
	if count > 0 {
		confidence /= float64(count)
	}
	return &models.CapabilityResult{Content: b.String(), Confidence: confidence}
}
