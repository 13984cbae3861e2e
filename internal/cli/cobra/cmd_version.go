package cobra

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Igasawa/Skills-personal-sub001/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the remedy version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "remedy %s\n", version.FullVersion())
			return nil
		},
	}
}
