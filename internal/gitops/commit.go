// Package gitops implements the scoped commit gate: staging, committing,
// and optionally pushing an incident's artifacts after the loop resolves it.
// Git failures are data captured into the payload, never raised: a push
// hiccup must not turn a resolved incident into an error.
package gitops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Igasawa/Skills-personal-sub001/internal/execx"
	"github.com/Igasawa/Skills-personal-sub001/internal/store"
)

// Commit scopes. A scoped commit stages only one path set so unrelated
// working-tree changes never ride along on a remediation commit.
const (
	ScopeIncident = "incident"
	ScopePlan     = "plan"
	ScopeRun      = "run"
)

const pushRetryMaxElapsed = 30 * time.Second

// Options configures one commit-gate invocation.
type Options struct {
	RepoRoot        string // git repository root; empty resolves from the reports root
	Remote          string
	Branch          string // empty resolves the current branch
	Scope           string // incident | plan | run; default incident
	MessageTemplate string
	Push            bool
	Vars            map[string]string // template variables for the message
}

// CommitPayload reports what the commit gate did. Error is populated instead
// of returning an error.
type CommitPayload struct {
	Attempted bool     `json:"attempted"`
	Committed bool     `json:"committed"`
	Pushed    bool     `json:"pushed"`
	Branch    string   `json:"branch,omitempty"`
	Scope     string   `json:"scope,omitempty"`
	Paths     []string `json:"paths,omitempty"`
	Message   string   `json:"message,omitempty"`
	Skipped   string   `json:"skipped,omitempty"` // "no_changes"
	Error     string   `json:"error,omitempty"`
}

// Commit stages the scoped path set, commits with the rendered message, and
// optionally pushes. A clean diff is a no-op, not an error.
func Commit(ctx context.Context, cr execx.CommandRunner, st *store.Store, incidentID string, opts Options) CommitPayload {
	payload := CommitPayload{Attempted: true}

	scope := opts.Scope
	if scope == "" {
		scope = ScopeIncident
	}
	payload.Scope = scope

	repoRoot, err := resolveRepoRoot(ctx, cr, opts.RepoRoot, st.Root)
	if err != nil {
		payload.Error = err.Error()
		return payload
	}

	branch := opts.Branch
	if branch == "" {
		branch, err = currentBranch(ctx, cr, repoRoot)
		if err != nil {
			payload.Error = err.Error()
			return payload
		}
	}
	payload.Branch = branch

	paths, err := scopePaths(st, incidentID, scope)
	if err != nil {
		payload.Error = err.Error()
		return payload
	}
	payload.Paths = paths

	// A clean diff under the scope is a no-op success.
	statusArgs := append([]string{"status", "--porcelain", "--"}, paths...)
	res, runErr := cr.Run(ctx, repoRoot, "git", statusArgs...)
	if runErr != nil || res.ExitCode != 0 {
		payload.Error = gitFailure("git status", res, runErr)
		return payload
	}
	if strings.TrimSpace(res.Stdout) == "" {
		payload.Skipped = "no_changes"
		return payload
	}

	addArgs := append([]string{"add", "--"}, paths...)
	res, runErr = cr.Run(ctx, repoRoot, "git", addArgs...)
	if runErr != nil || res.ExitCode != 0 {
		payload.Error = gitFailure("git add", res, runErr)
		return payload
	}

	message := renderMessage(opts.MessageTemplate, opts.Vars)
	payload.Message = message
	res, runErr = cr.Run(ctx, repoRoot, "git", "commit", "-m", message)
	if runErr != nil || res.ExitCode != 0 {
		payload.Error = gitFailure("git commit", res, runErr)
		return payload
	}
	payload.Committed = true

	if opts.Push {
		remote := opts.Remote
		if remote == "" {
			remote = "origin"
		}
		if err := pushWithRetry(ctx, cr, repoRoot, remote, branch); err != nil {
			payload.Error = err.Error()
			return payload
		}
		payload.Pushed = true
	}

	return payload
}

// scopePaths restricts the staged path set. The incident scope prefers the
// archived incident directory when one already exists.
func scopePaths(st *store.Store, incidentID, scope string) ([]string, error) {
	switch scope {
	case ScopeIncident:
		if archived := st.FindArchivedIncidentDir(incidentID); archived != "" {
			return []string{archived}, nil
		}
		return []string{st.IncidentDir(incidentID)}, nil
	case ScopePlan:
		return []string{st.PlanDir(incidentID)}, nil
	case ScopeRun:
		return []string{st.RunDir(incidentID)}, nil
	}
	return nil, fmt.Errorf("unknown commit scope %q (expected incident, plan, or run)", scope)
}

func resolveRepoRoot(ctx context.Context, cr execx.CommandRunner, explicit, reportsRoot string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	res, err := cr.Run(ctx, reportsRoot, "git", "rev-parse", "--show-toplevel")
	if err != nil || res.ExitCode != 0 {
		return "", fmt.Errorf("reports root is not inside a git repository: %s", gitFailure("git rev-parse", res, err))
	}
	return strings.TrimSpace(res.Stdout), nil
}

func currentBranch(ctx context.Context, cr execx.CommandRunner, repoRoot string) (string, error) {
	res, err := cr.Run(ctx, repoRoot, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || res.ExitCode != 0 {
		return "", fmt.Errorf("failed to resolve current branch: %s", gitFailure("git rev-parse", res, err))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// pushWithRetry retries transient push failures with exponential backoff.
// BackOff implementations are stateful; always build a fresh instance.
func pushWithRetry(ctx context.Context, cr execx.CommandRunner, repoRoot, remote, branch string) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = pushRetryMaxElapsed

	operation := func() error {
		res, err := cr.Run(ctx, repoRoot, "git", "push", remote, branch)
		if err != nil || res.ExitCode != 0 {
			failure := gitFailure("git push", res, err)
			if isTransientPushFailure(res.Stderr) {
				return fmt.Errorf("%s", failure)
			}
			return backoff.Permanent(fmt.Errorf("%s", failure))
		}
		return nil
	}
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

func isTransientPushFailure(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range []string{"could not resolve host", "connection reset", "connection timed out", "early eof", "remote end hung up", "503", "temporarily unavailable"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func renderMessage(template string, vars map[string]string) string {
	if template == "" {
		template = "fix: resolve incident {incident_id}"
	}
	out := template
	for key, val := range vars {
		out = strings.ReplaceAll(out, "{"+key+"}", val)
	}
	return out
}

func gitFailure(op string, res execx.Result, err error) string {
	if err != nil {
		return fmt.Sprintf("%s: %v", op, err)
	}
	detail := strings.TrimSpace(res.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(res.Stdout)
	}
	return fmt.Sprintf("%s exited %d: %s", op, res.ExitCode, execx.Truncate(detail, 500))
}
