package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ensemble-hq/ensemble/internal/orchestrator"
	"github.com/ensemble-hq/ensemble/pkg/models"
)

var runRequester string

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Run a request through the orchestrator",
	Long: `Analyzes the request, composes or reuses a workflow, and executes it
with live progress output.

Examples:
  ensemble run "analyze last quarter's revenue data"
  ensemble run --requester alice "draft a hiring plan and review it"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

func init() {
	runCmd.Flags().StringVar(&runRequester, "requester", "default", "Requester identity owning the workflow")
}

func runRequest(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	s, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	stream := s.orchestrator.Submit(cmd.Context(), runRequester, request)
	var final orchestrator.ProgressEvent
	for ev := range stream {
		renderEvent(ev)
		if ev.Terminal() {
			final = ev
		}
	}

	if final.Type == orchestrator.EventRunFailed {
		return fmt.Errorf("run failed: %w", final.Error)
	}
	return nil
}

// renderEvent prints one progress event in human-readable form.
func renderEvent(ev orchestrator.ProgressEvent) {
	switch ev.Type {
	case orchestrator.EventRunReceived:
		fmt.Printf("%s %s\n", color.CyanString("▸"), ev.Message)
	case orchestrator.EventCacheHit:
		fmt.Printf("%s reusing workflow %s\n", color.GreenString("✓"), color.New(color.Bold).Sprint(ev.WorkflowName))
	case orchestrator.EventCacheMiss:
		fmt.Printf("%s no stored workflow, composing\n", color.YellowString("•"))
	case orchestrator.EventWorkflowComposed:
		fmt.Printf("%s composed %s workflow %s\n", color.CyanString("•"), ev.Message, color.New(color.Bold).Sprint(ev.WorkflowName))
	case orchestrator.EventWorkflowStored:
		fmt.Printf("%s stored workflow %s for reuse\n", color.GreenString("✓"), ev.WorkflowName)
	case orchestrator.EventStepStarted:
		fmt.Printf("  %s %s\n", color.CyanString("→"), stepLabel(ev))
	case orchestrator.EventStepFinished:
		if ev.Error != nil {
			fmt.Printf("  %s %s: %v\n", color.RedString("✗"), stepLabel(ev), ev.Error)
		} else {
			fmt.Printf("  %s %s\n", color.GreenString("✓"), stepLabel(ev))
		}
	case orchestrator.EventRunCompleted:
		renderOutcome(ev.Outcome)
	case orchestrator.EventRunFailed:
		fmt.Printf("%s %v\n", color.RedString("✗"), ev.Error)
	}
}

func stepLabel(ev orchestrator.ProgressEvent) string {
	if ev.Capability != "" {
		return fmt.Sprintf("%s [%s]", ev.Capability, ev.Pattern)
	}
	return fmt.Sprintf("step %d [%s]", ev.StepIndex+1, ev.Pattern)
}

func renderOutcome(out *models.Outcome) {
	if out == nil {
		return
	}

	switch out.Status {
	case models.OutcomeAllSucceeded:
		fmt.Printf("\n%s completed\n", color.GreenString("✓"))
	case models.OutcomePartialSuccess:
		fmt.Printf("\n%s completed with partial results\n", color.YellowString("⚠"))
	case models.OutcomeMaxIterationsReached:
		fmt.Printf("\n%s %s\n", color.YellowString("⚠"), out.Annotation)
	case models.OutcomeEscalated:
		fmt.Printf("\n%s escalated: %s\n", color.YellowString("⚠"), out.Annotation)
	}

	if out.Result != nil && out.Result.Content != "" {
		fmt.Printf("\n%s\n", out.Result.Content)
	}
}
