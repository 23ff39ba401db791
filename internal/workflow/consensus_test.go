package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/ensemble-hq/ensemble/pkg/models"
)

func TestConsensusSynthesizesAllPerspectives(t *testing.T) {
	var synthTask string
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"financial":  ok("revenue is flat"),
		"operations": ok("throughput is fine"),
		"strategic": func(ctx context.Context, task string, ec *models.ExecutionContext) (*models.CapabilityResult, error) {
			synthTask = task
			return &models.CapabilityResult{Content: "hold course"}, nil
		},
	})
	ex := NewExecutor(Config{Registry: reg})

	root := models.ConsensusStep("strategic",
		models.LeafStep("financial"),
		models.LeafStep("operations"),
	)
	out, err := ex.Execute(context.Background(), &root, newContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Status != models.OutcomeAllSucceeded {
		t.Errorf("expected all_succeeded, got %s", out.Status)
	}
	if out.Result.Content != "hold course" {
		t.Errorf("outcome must carry the synthesis, got %q", out.Result.Content)
	}
	if !strings.Contains(synthTask, "revenue is flat") || !strings.Contains(synthTask, "throughput is fine") {
		t.Errorf("synthesizer did not receive both perspectives: %q", synthTask)
	}
}

func TestConsensusSynthesisFailureDespiteBranchSuccess(t *testing.T) {
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"financial":  ok("numbers"),
		"operations": ok("metrics"),
		"strategic":  failing("synthesis model unavailable"),
	})
	ex := NewExecutor(Config{Registry: reg})

	root := models.ConsensusStep("strategic",
		models.LeafStep("financial"),
		models.LeafStep("operations"),
	)
	_, err := ex.Execute(context.Background(), &root, newContext())
	if !models.IsKind(err, models.FailSynthesisFailed) {
		t.Errorf("expected synthesis_failed, got %v", err)
	}
}

func TestConsensusStarvation(t *testing.T) {
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"financial":  failing("down"),
		"operations": failing("down"),
		"strategic":  ok("never reached"),
	})
	ex := NewExecutor(Config{Registry: reg})

	root := models.ConsensusStep("strategic",
		models.LeafStep("financial"),
		models.LeafStep("operations"),
	)
	_, err := ex.Execute(context.Background(), &root, newContext())
	if !models.IsKind(err, models.FailSynthesisFailed) {
		t.Errorf("expected synthesis_failed on starvation, got %v", err)
	}
}

func TestConsensusPartialInputIsPartialSuccess(t *testing.T) {
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"financial":  ok("numbers"),
		"operations": failing("down"),
		"strategic":  ok("verdict from what we have"),
	})
	ex := NewExecutor(Config{Registry: reg})

	root := models.ConsensusStep("strategic",
		models.LeafStep("financial"),
		models.LeafStep("operations"),
	)
	out, err := ex.Execute(context.Background(), &root, newContext())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Status != models.OutcomePartialSuccess {
		t.Errorf("expected partial_success, got %s", out.Status)
	}
	if out.Result.Content != "verdict from what we have" {
		t.Errorf("unexpected synthesis: %q", out.Result.Content)
	}
}

func TestConsensusUnknownSynthesizer(t *testing.T) {
	reg := buildRegistry(t, map[string]func(context.Context, string, *models.ExecutionContext) (*models.CapabilityResult, error){
		"financial": ok("numbers"),
	})
	ex := NewExecutor(Config{Registry: reg})

	root := models.ConsensusStep("ghost", models.LeafStep("financial"))
	_, err := ex.Execute(context.Background(), &root, newContext())
	if !models.IsKind(err, models.FailSynthesisFailed) {
		t.Errorf("expected synthesis_failed, got %v", err)
	}
}
