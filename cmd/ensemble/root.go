package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ensemble-hq/ensemble/internal/config"
	"github.com/ensemble-hq/ensemble/internal/logging"
)

var (
	verbose bool
	logger  *zap.Logger
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ensemble",
	Short: "Workflow orchestration for specialist capabilities",
	Long: `Ensemble turns free-text requests into multi-capability workflows.

It analyzes each request against a registry of specialist capabilities,
composes a workflow (sequential, parallel, loop, consensus, or conditional),
executes it with live progress, and remembers the workflow so an equivalent
request reuses it instantly.

Core capabilities:
- Matches requests to specialists by intent keywords
- Composes and executes multi-step workflow patterns
- Caches composed workflows per requester for reuse
- Grounds specialist answers in a local knowledge corpus`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workflowsCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
