// Command remedy is an incident remediation pipeline for failed automation runs.
package main

import (
	"os"

	"github.com/Igasawa/Skills-personal-sub001/internal/cli/cobra"
	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
)

func main() {
	err := cobra.Execute(os.Stdout, os.Stderr)
	if err != nil {
		// Use verbose mode if --verbose global flag was set
		opts := errors.PrintOptions{
			Verbose: cobra.GetGlobalOpts().Verbose,
		}
		errors.PrintWithOptions(os.Stderr, err, opts)
		os.Exit(errors.ExitCode(err))
	}
}
