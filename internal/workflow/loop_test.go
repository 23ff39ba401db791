package workflow

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ensemble-hq/ensemble/pkg/models"
)

func mustLoop(t *testing.T, maxIterations int, escalator string, steps ...models.WorkflowStep) models.WorkflowStep {
	t.Helper()
	step, err := models.LoopStep(maxIterations, escalator, steps...)
	if err != nil {
		t.Fatalf("loop step: %v", err)
	}
	return step
}

func decider(decision string) func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
	return func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
		return &models.CapabilityResult{
			Content:  decision,
			Metadata: map[string]string{"decision": decision},
		}, nil
	}
}

func TestLoopStopsAtIterationCap(t *testing.T) {
	var runs atomic.Int32
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"refine": counted(&runs, "draft"),
		"review": decider("continue"),
	})
	ex := NewExecutor(Config{Registry: reg})

	root := mustLoop(t, 3, "review", models.LeafStep("refine"))
	out, err := ex.Execute(context.Background(), &root, newContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Status != models.OutcomeMaxIterationsReached {
		t.Errorf("expected max_iterations_reached, got %s", out.Status)
	}
	if out.Iterations != 3 {
		t.Errorf("expected 3 iterations, got %d", out.Iterations)
	}
	if runs.Load() != 3 {
		t.Errorf("inner step ran %d times, want exactly 3", runs.Load())
	}
	if !out.Succeeded() {
		t.Error("hitting the cap must be a soft success, not a failure")
	}
}

func TestLoopStopsEarlyOnStopDecision(t *testing.T) {
	var runs atomic.Int32
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"refine": counted(&runs, "draft"),
		"review": func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
			if runs.Load() >= 2 {
				return &models.CapabilityResult{Content: "stop"}, nil
			}
			return &models.CapabilityResult{Content: "continue"}, nil
		},
	})
	ex := NewExecutor(Config{Registry: reg})

	root := mustLoop(t, 5, "review", models.LeafStep("refine"))
	out, err := ex.Execute(context.Background(), &root, newContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Status != models.OutcomeAllSucceeded {
		t.Errorf("expected all_succeeded, got %s", out.Status)
	}
	if out.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", out.Iterations)
	}
}

func TestLoopEscalatesWithReason(t *testing.T) {
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"refine": ok("draft"),
		"review": decider("escalate: quality regressing between drafts"),
	})
	ex := NewExecutor(Config{Registry: reg})

	root := mustLoop(t, 5, "review", models.LeafStep("refine"))
	out, err := ex.Execute(context.Background(), &root, newContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Status != models.OutcomeEscalated {
		t.Errorf("expected escalated, got %s", out.Status)
	}
	if out.Iterations != 1 {
		t.Errorf("expected escalation after iteration 1, got %d", out.Iterations)
	}
	if out.Annotation != "quality regressing between drafts" {
		t.Errorf("unexpected annotation: %q", out.Annotation)
	}
}

func TestLoopSeesIterationCounter(t *testing.T) {
	var seen []string
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"refine": func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
			v, _ := ec.Get("loop_iteration")
			seen = append(seen, v)
			return &models.CapabilityResult{Content: "iteration " + v}, nil
		},
	})
	ex := NewExecutor(Config{Registry: reg})

	root := mustLoop(t, 2, "", models.LeafStep("refine"))
	if _, err := ex.Execute(context.Background(), &root, newContext()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := []string{"1", "2"}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("iteration counter sequence %v, want %v", seen, want)
	}
}

func TestLoopBrokenEscalatorKeepsIterating(t *testing.T) {
	var runs atomic.Int32
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"refine": counted(&runs, "draft"),
		"review": failing("escalation check down"),
	})
	ex := NewExecutor(Config{Registry: reg})

	root := mustLoop(t, 2, "review", models.LeafStep("refine"))
	out, err := ex.Execute(context.Background(), &root, newContext())
	if err != nil {
		t.Fatalf("broken escalator must not fail the loop: %v", err)
	}
	if out.Status != models.OutcomeMaxIterationsReached {
		t.Errorf("expected max_iterations_reached, got %s", out.Status)
	}
	if runs.Load() != 2 {
		t.Errorf("inner step ran %d times, want 2", runs.Load())
	}
}

func TestLoopInnerFailurePropagates(t *testing.T) {
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"refine": failing("cannot refine"),
	})
	ex := NewExecutor(Config{Registry: reg})

	root := mustLoop(t, 3, "", models.LeafStep("refine"))
	_, err := ex.Execute(context.Background(), &root, newContext())
	if !models.IsKind(err, models.FailStepFailed) {
		t.Errorf("expected step_failed, got %v", err)
	}
}
