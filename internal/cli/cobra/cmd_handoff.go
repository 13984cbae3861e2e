package cobra

import (
	"github.com/spf13/cobra"

	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/handoff"
)

func newHandoffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handoff <incident-id>",
		Short: "Package an approved incident's plan for a human operator",
		Long: `Package an approved incident's plan for a human operator.

Requires the incident to be approved (the dashboard writes that marker)
and its plan to carry a card summary. Writes error_handoff/<id>/handoff.json
with the summary, prioritized actions, and done criteria, then marks the
incident handed off.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), func() (any, error) {
				env, err := loadEnv()
				if err != nil {
					return nil, err
				}
				svc := handoff.NewService(env, fs.NewRealFS())
				return svc.Handoff(args[0])
			})
		},
	}

	return cmd
}
