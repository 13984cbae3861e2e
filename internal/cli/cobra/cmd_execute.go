package cobra

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Igasawa/Skills-personal-sub001/internal/execx"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/gitops"
	"github.com/Igasawa/Skills-personal-sub001/internal/loop"
)

func newExecuteCmd() *cobra.Command {
	var (
		maxLoops          int
		maxRuntimeMin     int
		sameErrorLimit    int
		noProgressLimit   int
		autoReplan        bool
		singleIteration   bool
		commitOnResolve   bool
		pushOnResolve     bool
		commitScope       string
		commitBranch      string
		archiveOnSuccess  bool
		archiveOnEscalate bool
		timeoutSec        int
	)

	cmd := &cobra.Command{
		Use:   "execute <incident-id>",
		Short: "Run the bounded verify-fix-reverify loop for an incident",
		Long: `Run the bounded verify-fix-reverify loop for an incident.

Each iteration runs the plan's verification commands in order; a command
failure is data, not an error. The loop ends when verification passes
(resolved), a repeated error signature crosses its limit (escalated), the
no-progress limit triggers a replan, or the loop/runtime budget runs out.

Loop state persists across invocations: loops_used never resets, so a
re-run resumes the same budget instead of restarting it. Destructive
commands are refused by the denylist and recorded as blocked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), func() (any, error) {
				env, err := loadEnv()
				if err != nil {
					return nil, err
				}
				pol := loop.Policy{
					MaxLoops:               env.MaxLoops,
					MaxRuntime:             time.Duration(env.MaxRuntimeMinutes) * time.Minute,
					SameErrorLimit:         env.SameErrorLimit,
					NoProgressLimit:        env.NoProgressLimit,
					AutoReplanOnNoProgress: autoReplan,
					SingleIteration:        singleIteration,
					CommitOnResolve:        commitOnResolve,
					PushOnResolve:          pushOnResolve,
					CommitMessageTemplate:  env.CommitMessageTemplate,
					CommitRemote:           env.CommitRemote,
					CommitBranch:           commitBranch,
					CommitScope:            commitScope,
					ArchiveOnSuccess:       archiveOnSuccess,
					ArchiveOnEscalate:      archiveOnEscalate,
					CommandTimeout:         env.CommandTimeout,
				}
				if cmd.Flags().Changed("max-loops") {
					pol.MaxLoops = maxLoops
				}
				if cmd.Flags().Changed("max-runtime") {
					pol.MaxRuntime = time.Duration(maxRuntimeMin) * time.Minute
				}
				if cmd.Flags().Changed("same-error-limit") {
					pol.SameErrorLimit = sameErrorLimit
				}
				if cmd.Flags().Changed("no-progress-limit") {
					pol.NoProgressLimit = noProgressLimit
				}
				if cmd.Flags().Changed("timeout") {
					pol.CommandTimeout = time.Duration(timeoutSec) * time.Second
				}
				runner := loop.NewRunner(env, fs.NewRealFS(), execx.NewRealRunner())
				return runner.Execute(cmd.Context(), args[0], pol)
			})
		},
	}

	cmd.Flags().IntVar(&maxLoops, "max-loops", 0, "iteration budget across all invocations (default from config)")
	cmd.Flags().IntVar(&maxRuntimeMin, "max-runtime", 0, "wall-clock budget in minutes (default from config)")
	cmd.Flags().IntVar(&sameErrorLimit, "same-error-limit", 0, "escalate after this many repeats of one error signature (default from config)")
	cmd.Flags().IntVar(&noProgressLimit, "no-progress-limit", 0, "replan or stop after this many iterations without progress (default from config)")
	cmd.Flags().BoolVar(&autoReplan, "auto-replan", false, "regenerate the plan when the no-progress limit triggers")
	cmd.Flags().BoolVar(&singleIteration, "single-iteration", false, "run exactly one iteration and stop")
	cmd.Flags().BoolVar(&commitOnResolve, "commit", false, "commit incident artifacts when the loop resolves")
	cmd.Flags().BoolVar(&pushOnResolve, "push", false, "push the commit (implies retries on transient failures)")
	cmd.Flags().StringVar(&commitScope, "commit-scope", gitops.ScopeIncident, "commit scope: incident, plan, or run")
	cmd.Flags().StringVar(&commitBranch, "commit-branch", "", "branch for the commit gate (default current branch)")
	cmd.Flags().BoolVar(&archiveOnSuccess, "archive-on-success", false, "move the incident to the archive when resolved")
	cmd.Flags().BoolVar(&archiveOnEscalate, "archive-on-escalate", false, "move the incident to the archive when escalated")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "per-command timeout in seconds (default from config)")

	return cmd
}
