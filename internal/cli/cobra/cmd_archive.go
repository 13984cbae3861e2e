package cobra

import (
	"github.com/spf13/cobra"

	"github.com/Igasawa/Skills-personal-sub001/internal/archive"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
)

func newArchiveCmd() *cobra.Command {
	var (
		result string
		reason string
	)

	cmd := &cobra.Command{
		Use:   "archive <incident-id>",
		Short: "Move a terminal incident out of the inbox",
		Long: `Move a terminal incident out of the inbox.

Sets the final status and relocates error_inbox/<id> to
error_archive/resolved/ or error_archive/escalated/. Plans and run records
stay where they are; only the inbox directory moves. Archiving an already
archived incident is a no-op success.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), func() (any, error) {
				env, err := loadEnv()
				if err != nil {
					return nil, err
				}
				svc := archive.NewService(env, fs.NewRealFS())
				return svc.Archive(args[0], result, reason)
			})
		},
	}

	cmd.Flags().StringVar(&result, "result", "", "terminal result: resolved or escalated")
	cmd.Flags().StringVar(&reason, "reason", "", "free-form reason recorded with the archive event")
	_ = cmd.MarkFlagRequired("result")

	return cmd
}
