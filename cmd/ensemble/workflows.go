package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var workflowsRequester string

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List stored workflows",
	Long: `Lists the requester's stored workflows, most used first.

Each workflow was composed from a past request; an equivalent future request
reuses it without recomposition.`,
	RunE: listWorkflows,
}

func init() {
	workflowsCmd.Flags().StringVar(&workflowsRequester, "requester", "default", "Requester identity to list workflows for")
}

func listWorkflows(cmd *cobra.Command, args []string) error {
	s, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	workflows, err := s.orchestrator.ListWorkflows(workflowsRequester)
	if err != nil {
		return err
	}

	if len(workflows) == 0 {
		fmt.Printf("No stored workflows for %s\n", workflowsRequester)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPATTERN\tUSES\tLAST USED\tCREATED")
	for _, wf := range workflows {
		lastUsed := "never"
		if !wf.LastUsedAt.IsZero() {
			lastUsed = wf.LastUsedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			wf.Name, wf.Root.Pattern, wf.UsageCount, lastUsed,
			wf.CreatedAt.Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%s %d workflow(s)\n", color.CyanString("•"), len(workflows))
	return nil
}
