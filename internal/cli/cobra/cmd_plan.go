package cobra

import (
	"github.com/spf13/cobra"

	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/plan"
)

func newPlanCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "plan <incident-id>",
		Short: "Synthesize a remediation plan from captured evidence",
		Long: `Synthesize a remediation plan from captured evidence.

Reads the incident record, context, and redacted tails, scores the evidence,
and writes plan.json plus a human-readable plan.md under error_plans/.
Every hypothesis cites evidence entry ids; when the evidence is weak the
plan carries competing hypotheses instead of one confident guess.

An existing plan is returned as-is unless --force regenerates it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), func() (any, error) {
				env, err := loadEnv()
				if err != nil {
					return nil, err
				}
				syn := plan.NewSynthesizer(env, fs.NewRealFS())
				return syn.Generate(args[0], force)
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "regenerate even if a plan already exists")

	return cmd
}
