package cobra

import (
	"github.com/spf13/cobra"

	"github.com/Igasawa/Skills-personal-sub001/internal/capture"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
)

func newCaptureCmd() *cobra.Command {
	var opts capture.Options

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture a failed run into an incident record",
		Long: `Capture a failed run into an incident record.

Creates error_inbox/<incident_id>/ with the incident record, status marker,
redacted log and audit tails, and the merged structured context. The write
is staged: either the whole incident directory appears, or none of it.

The incident id defaults to <timestamp>-<run_id>. Re-capturing an existing
incident fails unless --force replaces its evidence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), func() (any, error) {
				env, err := loadEnv()
				if err != nil {
					return nil, err
				}
				svc := capture.NewService(env, fs.NewRealFS())
				return svc.Capture(opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id of the failed automation run")
	cmd.Flags().StringVar(&opts.IncidentID, "incident-id", "", "explicit incident id (default derived from timestamp and run id)")
	cmd.Flags().StringVar(&opts.Step, "step", "", "pipeline step that failed")
	cmd.Flags().StringVar(&opts.FailureClass, "failure-class", "", "coarse failure classification")
	cmd.Flags().StringVar(&opts.Message, "message", "", "failure message (redacted before persisting)")
	cmd.Flags().StringVar(&opts.LogPath, "log", "", "log file to tail (default resolved from the run registry)")
	cmd.Flags().StringVar(&opts.AuditPath, "audit", "", "audit log to tail (default the monthly audit log)")
	cmd.Flags().StringVar(&opts.ContextPath, "context", "", "JSON context file merged into the incident context")
	cmd.Flags().StringVar(&opts.ContextInline, "context-inline", "", "inline JSON context; overrides file values per key")
	cmd.Flags().IntVar(&opts.Year, "year", 0, "processing cycle year")
	cmd.Flags().IntVar(&opts.Month, "month", 0, "processing cycle month")
	cmd.Flags().StringVar(&opts.Status, "status", "", "initial status (default \"new\")")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "replace evidence for an existing incident")

	_ = cmd.MarkFlagRequired("step")

	return cmd
}
