package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/ensemble-hq/ensemble/pkg/models"
)

// executeConsensus fans out the analysis branches like Parallel, then feeds
// every branch result into the designated synthesis capability. Consensus
// without synthesis has no defined output: a synthesis failure surfaces as
// SynthesisFailed even when every analysis branch succeeded.
func (e *Executor) executeConsensus(ctx context.Context, step *models.WorkflowStep, ec *models.ExecutionContext) (*models.Outcome, error) {
	branches, err := e.runBranches(ctx, step, ec)
	if err != nil {
		return nil, err
	}

	var analyses []string
	for _, b := range branches {
		if b.Err == nil && b.Result != nil {
			analyses = append(analyses, fmt.Sprintf("perspective %d:\n%s", b.Index+1, b.Result.Content))
		}
	}
	if len(analyses) == 0 {
		return nil, models.Failuref(models.FailSynthesisFailed,
			"no usable analysis input: all %d branches failed", len(branches))
	}

	synth, err := e.registry.Lookup(step.Synthesizer)
	if err != nil {
		return nil, models.Failuref(models.FailSynthesisFailed,
			"synthesizer %q unavailable", step.Synthesizer).WithCause(err)
	}

	e.notify(StepEvent{Phase: PhaseStarted, Pattern: models.PatternConsensus, Capability: step.Synthesizer, Index: len(branches)})
	task := "synthesize a consensus from these perspectives:\n\n" + strings.Join(analyses, "\n\n")
	res, serr := synth.Invoke(ctx, task, ec)
	e.notify(StepEvent{Phase: PhaseFinished, Pattern: models.PatternConsensus, Capability: step.Synthesizer, Index: len(branches), Err: serr})
	if serr != nil {
		if ctx.Err() != nil {
			return nil, models.NewFailure(models.FailCancelled, "run cancelled during synthesis").WithCause(ctx.Err())
		}
		return nil, models.Failuref(models.FailSynthesisFailed,
			"synthesis capability %q failed", step.Synthesizer).WithCause(serr)
	}

	ec.Set(step.Synthesizer+"_result", res.Content)

	status := models.OutcomeAllSucceeded
	if len(analyses) < len(branches) {
		status = models.OutcomePartialSuccess
	}
	return &models.Outcome{
		Status:   status,
		Result:   res,
		Branches: branches,
	}, nil
}
