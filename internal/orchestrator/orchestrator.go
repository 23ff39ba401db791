package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ensemble-hq/ensemble/internal/capability"
	"github.com/ensemble-hq/ensemble/internal/intent"
	"github.com/ensemble-hq/ensemble/internal/store"
	"github.com/ensemble-hq/ensemble/internal/workflow"
	"github.com/ensemble-hq/ensemble/pkg/models"
)

// Orchestrator turns free-text requests into workflow executions. For each
// request it analyzes intent, reuses a stored workflow when the fingerprint
// matches, composes and stores a new one otherwise, and executes the tree
// while streaming progress events.
type Orchestrator struct {
	registry    *capability.Registry
	workflows   *store.Cache
	analyzer    *intent.Analyzer
	executor    *workflow.Executor
	maxInFlight int
	eventBuffer int
	logger      *zap.Logger
}

// New creates an Orchestrator from required config plus options. The
// registry is sealed here; capability registration must be finished before
// construction.
func New(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if req.Registry == nil {
		return nil, fmt.Errorf("orchestrator requires a capability registry")
	}
	if req.Workflows == nil {
		return nil, fmt.Errorf("orchestrator requires a workflow cache")
	}
	if req.Registry.Count() == 0 {
		return nil, fmt.Errorf("capability registry is empty")
	}

	o := &orchestratorOptions{
		eventBuffer: DefaultEventBuffer,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	req.Registry.Seal()

	analyzer := o.analyzer
	if analyzer == nil {
		analyzer = intent.NewAnalyzer(req.Registry)
	}

	return &Orchestrator{
		registry:    req.Registry,
		workflows:   req.Workflows,
		analyzer:    analyzer,
		executor:    o.executor,
		maxInFlight: o.maxInFlight,
		eventBuffer: o.eventBuffer,
		logger:      o.logger,
	}, nil
}

// Submit accepts a request and returns its progress event stream. The
// stream ends with exactly one terminal event and then closes. Cancelling
// ctx aborts the run between steps.
func (orc *Orchestrator) Submit(ctx context.Context, requesterID, request string) <-chan ProgressEvent {
	emitter := newEventEmitter(orc.eventBuffer, ctx.Done(), orc.logger)
	runID := uuid.NewString()[:8]

	go func() {
		defer emitter.close()
		orc.run(ctx, emitter, runID, requesterID, request)
	}()

	return emitter.channel()
}

// run drives one orchestration end to end and emits the terminal event.
func (orc *Orchestrator) run(ctx context.Context, emitter *eventEmitter, runID, requesterID, request string) {
	log := orc.logger.With(zap.String("run", runID), zap.String("requester", requesterID))
	emitter.emit(ProgressEvent{Type: EventRunReceived, RunID: runID, RequesterID: requesterID, Message: request})

	wf, reused, err := orc.resolveWorkflow(emitter, runID, requesterID, request)
	if err != nil {
		log.Info("request rejected", zap.Error(err))
		emitter.emit(ProgressEvent{Type: EventRunFailed, RunID: runID, RequesterID: requesterID, Error: err})
		return
	}

	ec := models.NewExecutionContext(requesterID, request)
	outcome, err := orc.execute(ctx, emitter, runID, requesterID, wf, ec)
	if err != nil {
		log.Info("run failed", zap.Error(err))
		emitter.emit(ProgressEvent{
			Type:         EventRunFailed,
			RunID:        runID,
			RequesterID:  requesterID,
			WorkflowID:   wf.ID,
			WorkflowName: wf.Name,
			Error:        err,
		})
		return
	}

	// A cancelled run never mutates the reuse store; every other outcome,
	// including soft successes, refreshes it.
	if reused {
		orc.workflows.RecordUse(requesterID, wf.ID)
	} else {
		orc.persist(emitter, runID, requesterID, wf)
	}

	log.Info("run completed",
		zap.String("workflow", wf.Name),
		zap.String("status", string(outcome.Status)),
		zap.Bool("reused", reused))
	emitter.emit(ProgressEvent{
		Type:         EventRunCompleted,
		RunID:        runID,
		RequesterID:  requesterID,
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		Reused:       reused,
		Outcome:      outcome,
	})
}

// resolveWorkflow fingerprints the raw request and reuses a servable stored
// workflow when one matches. Only a miss triggers intent analysis and fresh
// composition; a hit is served on the fingerprint alone, without
// re-classifying the request. A stored workflow whose tree names an
// unregistered capability fails the run rather than executing partially.
func (orc *Orchestrator) resolveWorkflow(emitter *eventEmitter, runID, requesterID, request string) (*models.ComposedWorkflow, bool, error) {
	fingerprint := intent.Fingerprint(request)

	stored, err := orc.workflows.Find(requesterID, fingerprint)
	if err != nil {
		return nil, false, err
	}
	if stored != nil {
		if stale := orc.staleCapability(stored); stale != "" {
			return nil, false, models.Failuref(models.FailUnknownCapability,
				"stored workflow %q references unregistered capability %s", stored.Name, stale).
				WithCapability(stale)
		}
		emitter.emit(ProgressEvent{
			Type:         EventCacheHit,
			RunID:        runID,
			RequesterID:  requesterID,
			WorkflowID:   stored.ID,
			WorkflowName: stored.Name,
			Reused:       true,
		})
		return stored, true, nil
	}
	emitter.emit(ProgressEvent{Type: EventCacheMiss, RunID: runID, RequesterID: requesterID})

	analysis, err := orc.analyzer.Analyze(request)
	if err != nil {
		return nil, false, err
	}
	orc.logger.Debug("request analyzed",
		zap.Strings("capabilities", analysis.Capabilities),
		zap.String("pattern", string(analysis.Pattern)),
		zap.String("fingerprint", analysis.Fingerprint))

	composed, err := orc.analyzer.Compose(requesterID, analysis)
	if err != nil {
		return nil, false, err
	}
	emitter.emit(ProgressEvent{
		Type:         EventWorkflowComposed,
		RunID:        runID,
		RequesterID:  requesterID,
		WorkflowID:   composed.ID,
		WorkflowName: composed.Name,
		Message:      string(composed.Root.Pattern),
	})
	return composed, false, nil
}

// staleCapability returns the first capability ID in the workflow tree that
// is no longer registered, or "" when the tree is fully servable.
func (orc *Orchestrator) staleCapability(w *models.ComposedWorkflow) string {
	for _, id := range w.Root.CapabilityIDs() {
		if !orc.registry.Has(id) {
			return id
		}
	}
	return ""
}

// execute runs the workflow tree, forwarding step boundaries to the event
// stream.
func (orc *Orchestrator) execute(ctx context.Context, emitter *eventEmitter, runID, requesterID string, wf *models.ComposedWorkflow, ec *models.ExecutionContext) (*models.Outcome, error) {
	ex := orc.executor
	if ex == nil {
		ex = workflow.NewExecutor(workflow.Config{
			Registry:    orc.registry,
			MaxInFlight: orc.maxInFlight,
			Logger:      orc.logger,
			Notify: func(ev workflow.StepEvent) {
				t := EventStepStarted
				if ev.Phase == workflow.PhaseFinished {
					t = EventStepFinished
				}
				emitter.emit(ProgressEvent{
					Type:        t,
					RunID:       runID,
					RequesterID: requesterID,
					Pattern:     ev.Pattern,
					Capability:  ev.Capability,
					StepIndex:   ev.Index,
					Error:       ev.Err,
				})
			},
		})
	}
	return ex.Execute(ctx, &wf.Root, ec)
}

// persist stores a freshly composed workflow after a successful run. A
// name collision means a concurrent run already stored an equivalent
// workflow; the run's own outcome stands either way.
func (orc *Orchestrator) persist(emitter *eventEmitter, runID, requesterID string, wf *models.ComposedWorkflow) {
	err := orc.workflows.Put(wf)
	switch {
	case err == nil:
		emitter.emit(ProgressEvent{
			Type:         EventWorkflowStored,
			RunID:        runID,
			RequesterID:  requesterID,
			WorkflowID:   wf.ID,
			WorkflowName: wf.Name,
		})
	case models.IsKind(err, models.FailDuplicateWorkflowName):
		orc.logger.Debug("workflow name already stored",
			zap.String("workflow", wf.Name))
	default:
		orc.logger.Warn("failed to store composed workflow",
			zap.String("workflow", wf.Name),
			zap.Error(err))
	}
}

// ListWorkflows returns the requester's stored workflows, most used first.
func (orc *Orchestrator) ListWorkflows(requesterID string) ([]models.ComposedWorkflow, error) {
	return orc.workflows.List(requesterID)
}
