package cobra

import (
	"github.com/spf13/cobra"

	"github.com/Igasawa/Skills-personal-sub001/internal/watch"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the error inbox for newly captured incidents",
		Long: `Follow the error inbox for newly captured incidents.

Blocks and prints one JSON line per new incident directory until
interrupted. Useful while a processing cycle runs in another terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}
			return watch.Watch(cmd.Context(), env, cmd.OutOrStdout())
		},
	}

	return cmd
}
