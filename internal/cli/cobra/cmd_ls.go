package cobra

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/render"
	"github.com/Igasawa/Skills-personal-sub001/internal/store"
)

func newLSCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List incidents in the error inbox",
		Long: `List incidents in the error inbox.

Scans error_inbox/ and prints one row per incident. Directories whose
record is unreadable or whose status marker disagrees with the record are
shown as broken rather than skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}
			st := store.NewStore(fs.NewRealFS(), env.ReportsRoot, time.Now)
			summaries, err := st.ScanInbox()
			if err != nil {
				return err
			}
			if asJSON {
				emitOK(cmd.OutOrStdout(), summaries)
				return nil
			}
			render.LS(cmd.OutOrStdout(), summaries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print a structured result record instead of a table")

	return cmd
}
