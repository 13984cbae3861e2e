// Package cobra provides the Cobra-based CLI command tree for remedy.
package cobra

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Igasawa/Skills-personal-sub001/internal/config"
	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
	"github.com/Igasawa/Skills-personal-sub001/internal/version"
)

// GlobalOpts holds global options parsed before subcommand dispatch.
type GlobalOpts struct {
	Verbose     bool
	ReportsRoot string
	RepoRoot    string
	ConfigFile  string
}

// globalOpts stores the parsed global options for access by subcommands.
var globalOpts GlobalOpts

// GetGlobalOpts returns the parsed global options.
func GetGlobalOpts() GlobalOpts {
	return globalOpts
}

// loadEnv resolves the Environment from globals and the working directory.
func loadEnv() (config.Environment, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.Environment{}, errors.Wrap(errors.EInternal, "failed to get working directory", err)
	}
	return config.Load(cwd, config.Overrides{
		ReportsRoot: globalOpts.ReportsRoot,
		RepoRoot:    globalOpts.RepoRoot,
		ConfigFile:  globalOpts.ConfigFile,
	})
}

// NewRootCmd creates the root cobra command for remedy.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "remedy",
		Short: "Incident remediation pipeline for failed automation runs",
		Long: `remedy - incident remediation pipeline for failed automation runs

When an automated business-process run fails, remedy captures forensic
evidence into an incident, synthesizes a root-cause plan backed by cited
evidence, and drives a bounded verify-fix-reverify loop until the incident
is resolved, escalated, or handed off with an actionable plan.

Every stage command prints one structured JSON result record on stdout;
callers (the dashboard, or a post-failure pipeline hook) parse it.`,
		Version:       version.FullVersion(),
		SilenceErrors: true, // main.go handles error printing
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().BoolVar(&globalOpts.Verbose, "verbose", false, "show detailed error context")
	rootCmd.PersistentFlags().StringVar(&globalOpts.ReportsRoot, "reports-root", "", "reports root override (default ./reports, or REMEDY_REPORTS_ROOT)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.RepoRoot, "repo", "", "git repository root for the commit gate")
	rootCmd.PersistentFlags().StringVar(&globalOpts.ConfigFile, "config", "", "config file (default ./remedy.yaml)")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newCaptureCmd(),
		newPlanCmd(),
		newExecuteCmd(),
		newArchiveCmd(),
		newHandoffCmd(),
		newLSCmd(),
		newShowCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command with the given output writers.
// This is the main entry point from main.go.
func Execute(stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}
