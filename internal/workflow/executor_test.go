package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ensemble-hq/ensemble/internal/capability"
	"github.com/ensemble-hq/ensemble/pkg/models"
)

// buildRegistry assembles a sealed registry from the given capability funcs.
func buildRegistry(t *testing.T, caps map[string]func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error)) *capability.Registry {
	t.Helper()
	reg := capability.NewRegistry()
	for id, fn := range caps {
		err := reg.Register(&capability.Func{Identifier: id, Desc: id, Fn: fn})
		if err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	reg.Seal()
	return reg
}

func ok(content string) func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
	return func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
		return &models.CapabilityResult{Content: content, Confidence: 0.9}, nil
	}
}

func failing(msg string) func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
	return func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
		return nil, errors.New(msg)
	}
}

func counted(counter *atomic.Int32, content string) func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
	return func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
		counter.Add(1)
		return &models.CapabilityResult{Content: content}, nil
	}
}

func newContext() *models.ExecutionContext {
	return models.NewExecutionContext("user-1", "test request")
}

func TestLeafExecution(t *testing.T) {
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"data": ok("data output"),
	})
	ex := NewExecutor(Config{Registry: reg})

	step := models.LeafStep("data")
	out, err := ex.Execute(context.Background(), &step, newContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Status != models.OutcomeAllSucceeded {
		t.Errorf("expected all_succeeded, got %s", out.Status)
	}
	if out.Result.Content != "data output" {
		t.Errorf("unexpected content: %q", out.Result.Content)
	}
}

func TestLeafUnknownCapability(t *testing.T) {
	reg := buildRegistry(t, nil)
	ex := NewExecutor(Config{Registry: reg})

	step := models.LeafStep("ghost")
	_, err := ex.Execute(context.Background(), &step, newContext())
	if !models.IsKind(err, models.FailUnknownCapability) {
		t.Errorf("expected unknown_capability, got %v", err)
	}
}

func TestSequentialAbortsAtFailingStep(t *testing.T) {
	var thirdRan atomic.Int32
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"first":  ok("one"),
		"second": failing("boom"),
		"third":  counted(&thirdRan, "three"),
	})
	ex := NewExecutor(Config{Registry: reg})

	root := models.SequentialStep(
		models.LeafStep("first"),
		models.LeafStep("second"),
		models.LeafStep("third"),
	)
	_, err := ex.Execute(context.Background(), &root, newContext())
	if err == nil {
		t.Fatal("expected failure")
	}

	f := models.AsFailure(err)
	if f == nil || f.Kind != models.FailStepFailed {
		t.Fatalf("expected step_failed, got %v", err)
	}
	if f.StepIndex != 1 {
		t.Errorf("expected failure at step 1, got %d", f.StepIndex)
	}
	if thirdRan.Load() != 0 {
		t.Error("step 3 ran after step 2 failed")
	}
}

func TestSequentialThreadsContext(t *testing.T) {
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"first": ok("seed value"),
		"second": func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
			v, okv := ec.Get("first_result")
			if !okv {
				return nil, errors.New("first_result not visible")
			}
			return &models.CapabilityResult{Content: "saw: " + v}, nil
		},
	})
	ex := NewExecutor(Config{Registry: reg})

	root := models.SequentialStep(models.LeafStep("first"), models.LeafStep("second"))
	out, err := ex.Execute(context.Background(), &root, newContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Result.Content != "saw: seed value" {
		t.Errorf("unexpected content: %q", out.Result.Content)
	}
}

func TestSequentialRetryBudget(t *testing.T) {
	var attempts atomic.Int32
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"flaky": func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
			if attempts.Add(1) == 1 {
				return nil, errors.New("transient")
			}
			return &models.CapabilityResult{Content: "recovered"}, nil
		},
	})
	ex := NewExecutor(Config{Registry: reg})

	flaky := models.LeafStep("flaky")
	flaky.Retry = &models.RetryPolicy{MaxAttempts: 1}
	root := models.SequentialStep(flaky)

	out, err := ex.Execute(context.Background(), &root, newContext())
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if out.Result.Content != "recovered" {
		t.Errorf("unexpected content: %q", out.Result.Content)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestParallelPartialSuccessDeclaredOrder(t *testing.T) {
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"slow": func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
			time.Sleep(30 * time.Millisecond)
			return &models.CapabilityResult{Content: "slow done"}, nil
		},
		"broken": failing("branch failure"),
		"fast":   ok("fast done"),
	})
	ex := NewExecutor(Config{Registry: reg})

	root := models.ParallelStep(
		models.LeafStep("slow"),
		models.LeafStep("broken"),
		models.LeafStep("fast"),
	)
	out, err := ex.Execute(context.Background(), &root, newContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Status != models.OutcomePartialSuccess {
		t.Fatalf("expected partial_success, got %s", out.Status)
	}
	if len(out.Branches) != 3 {
		t.Fatalf("expected 3 branch results, got %d", len(out.Branches))
	}

	// Declaration order regardless of completion order.
	if out.Branches[0].Index != 0 || out.Branches[0].Result == nil || out.Branches[0].Result.Content != "slow done" {
		t.Errorf("branch 0 wrong: %+v", out.Branches[0])
	}
	if out.Branches[1].Err == nil {
		t.Error("expected branch 1 to carry its failure")
	}
	if out.Branches[2].Result == nil || out.Branches[2].Result.Content != "fast done" {
		t.Errorf("branch 2 wrong: %+v", out.Branches[2])
	}
}

func TestParallelAllBranchesFailed(t *testing.T) {
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"a": failing("a down"),
		"b": failing("b down"),
	})
	ex := NewExecutor(Config{Registry: reg})

	root := models.ParallelStep(models.LeafStep("a"), models.LeafStep("b"))
	_, err := ex.Execute(context.Background(), &root, newContext())
	if !models.IsKind(err, models.FailAllBranchesFailed) {
		t.Errorf("expected all_branches_failed, got %v", err)
	}
}

func TestParallelDoesNotCancelSiblings(t *testing.T) {
	var slowFinished atomic.Int32
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"failfast": failing("immediate"),
		"slow": func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
			time.Sleep(20 * time.Millisecond)
			slowFinished.Add(1)
			return &models.CapabilityResult{Content: "finished"}, nil
		},
	})
	ex := NewExecutor(Config{Registry: reg})

	root := models.ParallelStep(models.LeafStep("failfast"), models.LeafStep("slow"))
	out, err := ex.Execute(context.Background(), &root, newContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Status != models.OutcomePartialSuccess {
		t.Errorf("expected partial_success, got %s", out.Status)
	}
	if slowFinished.Load() != 1 {
		t.Error("slow branch did not run to completion")
	}
}

func TestParallelMergesChildWrites(t *testing.T) {
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"writer": func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
			ec.Set("branch_note", "written in branch")
			return &models.CapabilityResult{Content: "done"}, nil
		},
	})
	ex := NewExecutor(Config{Registry: reg})

	ec := newContext()
	root := models.ParallelStep(models.LeafStep("writer"))
	if _, err := ex.Execute(context.Background(), &root, ec); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if v, _ := ec.Get("branch_note"); v != "written in branch" {
		t.Errorf("expected child write merged into parent, got %q", v)
	}
}

func TestCancellationMidParallel(t *testing.T) {
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"blocker": func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return &models.CapabilityResult{Content: "too late"}, nil
			}
		},
	})
	ex := NewExecutor(Config{Registry: reg})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	root := models.ParallelStep(models.LeafStep("blocker"), models.LeafStep("blocker"))
	start := time.Now()
	_, err := ex.Execute(ctx, &root, newContext())
	if !models.IsKind(err, models.FailCancelled) {
		t.Errorf("expected cancelled, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation was not prompt")
	}
}
