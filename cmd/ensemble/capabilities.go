package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ensemble-hq/ensemble/internal/capability"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List registered capabilities and their keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		defs := capability.BuiltinDefinitions()
		if cfg.Execution.Capabilities != "" {
			catalog, err := capability.LoadCatalog(cfg.Execution.Capabilities)
			if err != nil {
				return err
			}
			defs = catalog.Capabilities
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDESCRIPTION\tKEYWORDS")
		for _, def := range defs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", def.ID, def.Description, strings.Join(def.Keywords, ", "))
		}
		return w.Flush()
	},
}
