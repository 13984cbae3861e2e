package cobra

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/render"
	"github.com/Igasawa/Skills-personal-sub001/internal/store"
)

func newShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <incident-id>",
		Short: "Show one incident's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}
			st := store.NewStore(fs.NewRealFS(), env.ReportsRoot, time.Now)
			inc, err := st.ReadIncident(args[0])
			if err != nil {
				if asJSON {
					emitError(cmd.OutOrStdout(), err)
				}
				return err
			}
			if asJSON {
				emitOK(cmd.OutOrStdout(), inc)
				return nil
			}
			render.Show(cmd.OutOrStdout(), inc)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print a structured result record instead of labeled fields")

	return cmd
}
