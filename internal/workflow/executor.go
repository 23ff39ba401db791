// Package workflow executes composed workflow trees against the capability
// registry. Every pattern dispatches through one exhaustive switch so the
// whole state machine is auditable in one place.
package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/ensemble-hq/ensemble/internal/capability"
	"github.com/ensemble-hq/ensemble/pkg/models"
)

// StepPhase marks whether a step event is a start or a finish.
type StepPhase string

const (
	// PhaseStarted is emitted when a step begins.
	PhaseStarted StepPhase = "started"
	// PhaseFinished is emitted when a step reaches a terminal state.
	PhaseFinished StepPhase = "finished"
)

// StepEvent is a best-effort progress notification at a pattern-executor
// boundary.
type StepEvent struct {
	// Phase is started or finished.
	Phase StepPhase
	// Pattern is the enclosing pattern.
	Pattern models.PatternKind
	// Capability is the capability ID for leaf steps.
	Capability string
	// Index is the step or branch position in declaration order.
	Index int
	// Err is set on finished events for failed steps.
	Err error
}

// NotifyFunc receives step events. Implementations must not block;
// the executor calls it inline.
type NotifyFunc func(StepEvent)

// DefaultMaxInFlight bounds concurrent branches when no limit is configured.
const DefaultMaxInFlight = 4

// Executor runs workflow trees. It is safe for concurrent use by multiple
// orchestration runs; all per-run state lives in the ExecutionContext.
type Executor struct {
	registry    *capability.Registry
	maxInFlight int
	notify      NotifyFunc
	logger      *zap.Logger
}

// Config configures an Executor.
type Config struct {
	// Registry is the sealed capability registry. Required.
	Registry *capability.Registry
	// MaxInFlight bounds concurrent branches in parallel and consensus
	// patterns. Defaults to DefaultMaxInFlight.
	MaxInFlight int
	// Notify receives best-effort step events. Optional.
	Notify NotifyFunc
	// Logger is the structured logger. Defaults to a nop logger.
	Logger *zap.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(cfg Config) *Executor {
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notify := cfg.Notify
	if notify == nil {
		notify = func(StepEvent) {}
	}
	return &Executor{
		registry:    cfg.Registry,
		maxInFlight: maxInFlight,
		notify:      notify,
		logger:      logger,
	}
}

// Execute runs one workflow step tree to a terminal state. The switch over
// PatternKind is exhaustive; PatternKind is a closed set.
func (e *Executor) Execute(ctx context.Context, step *models.WorkflowStep, ec *models.ExecutionContext) (*models.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewFailure(models.FailCancelled, "run cancelled").WithCause(err)
	}

	if step.IsLeaf() && step.Pattern == "" {
		res, err := e.invokeLeaf(ctx, step, ec)
		if err != nil {
			return nil, err
		}
		return &models.Outcome{Status: models.OutcomeAllSucceeded, Result: res}, nil
	}

	switch step.Pattern {
	case models.PatternSequential:
		return e.executeSequential(ctx, step, ec)
	case models.PatternParallel:
		return e.executeParallel(ctx, step, ec)
	case models.PatternLoop:
		return e.executeLoop(ctx, step, ec)
	case models.PatternConsensus:
		return e.executeConsensus(ctx, step, ec)
	case models.PatternConditional:
		return e.executeConditional(ctx, step, ec)
	default:
		return nil, models.Failuref(models.FailInvalidWorkflow, "unknown pattern %q", step.Pattern)
	}
}

// invokeLeaf looks up and invokes a single capability.
func (e *Executor) invokeLeaf(ctx context.Context, step *models.WorkflowStep, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
	c, err := e.registry.Lookup(step.Capability)
	if err != nil {
		return nil, err
	}

	res, err := c.Invoke(ctx, ec.Request, ec)
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.NewFailure(models.FailCancelled, "run cancelled").WithCause(ctx.Err())
		}
		return nil, err
	}

	// Later steps see earlier outputs through the state bag.
	ec.Set(step.Capability+"_result", res.Content)
	return res, nil
}

// executeWithRetry runs a child step, retrying up to the step's declared
// budget. Only Sequential and Loop call this; parallel branches surface
// their first failure.
func (e *Executor) executeWithRetry(ctx context.Context, step *models.WorkflowStep, ec *models.ExecutionContext) (*models.Outcome, error) {
	budget := 0
	if step.Retry != nil {
		budget = step.Retry.MaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt <= budget; attempt++ {
		out, err := e.Execute(ctx, step, ec)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if models.IsKind(err, models.FailCancelled) {
			return nil, err
		}
		if attempt < budget {
			e.logger.Debug("retrying step",
				zap.String("capability", step.Capability),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
	}
	return nil, lastErr
}
