package gitops

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Igasawa/Skills-personal-sub001/internal/execx"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/store"
)

// scriptCR replays canned results per git subcommand and records every call.
type scriptCR struct {
	results map[string]execx.Result
	log     []string
}

func (s *scriptCR) Shell(_ context.Context, _ string, command string, _ time.Duration) (execx.Result, error) {
	s.log = append(s.log, "shell "+command)
	return execx.Result{}, nil
}

func (s *scriptCR) Run(_ context.Context, _ string, name string, args ...string) (execx.Result, error) {
	call := name + " " + strings.Join(args, " ")
	s.log = append(s.log, call)
	for prefix, res := range s.results {
		if strings.HasPrefix(call, prefix) {
			return res, nil
		}
	}
	return execx.Result{ExitCode: 0}, nil
}

func (s *scriptCR) called(prefix string) bool {
	for _, call := range s.log {
		if strings.HasPrefix(call, prefix) {
			return true
		}
	}
	return false
}

func testGitStore(t *testing.T) *store.Store {
	t.Helper()
	return store.NewStore(fs.NewRealFS(), t.TempDir(), time.Now)
}

func TestCommitSkipsCleanTree(t *testing.T) {
	cr := &scriptCR{results: map[string]execx.Result{
		"git rev-parse --abbrev-ref HEAD": {Stdout: "main\n"},
		"git status":                      {Stdout: ""},
	}}
	st := testGitStore(t)

	payload := Commit(context.Background(), cr, st, "inc-1", Options{RepoRoot: "/repo"})

	assert.True(t, payload.Attempted)
	assert.Equal(t, "no_changes", payload.Skipped)
	assert.False(t, payload.Committed)
	assert.False(t, cr.called("git add"), "clean tree must not be staged")
}

func TestCommitStagesScopedPaths(t *testing.T) {
	cr := &scriptCR{results: map[string]execx.Result{
		"git rev-parse --abbrev-ref HEAD": {Stdout: "main\n"},
		"git status":                      {Stdout: " M reports/error_inbox/inc-1/incident.json\n"},
	}}
	st := testGitStore(t)

	payload := Commit(context.Background(), cr, st, "inc-1", Options{
		RepoRoot:        "/repo",
		MessageTemplate: "fix: resolve incident {incident_id} ({step})",
		Vars:            map[string]string{"incident_id": "inc-1", "step": "download_invoices"},
	})

	require.Empty(t, payload.Error)
	assert.True(t, payload.Committed)
	assert.Equal(t, "main", payload.Branch)
	assert.Equal(t, ScopeIncident, payload.Scope)
	assert.Equal(t, []string{st.IncidentDir("inc-1")}, payload.Paths)
	assert.Equal(t, "fix: resolve incident inc-1 (download_invoices)", payload.Message)
	assert.False(t, payload.Pushed, "push not requested")
	assert.False(t, cr.called("git push"))
}

func TestCommitPrefersArchivedDir(t *testing.T) {
	cr := &scriptCR{results: map[string]execx.Result{
		"git rev-parse --abbrev-ref HEAD": {Stdout: "main\n"},
		"git status":                      {Stdout: " M x\n"},
	}}
	st := testGitStore(t)
	archived := st.ArchivedIncidentDir("resolved", "inc-1")
	require.NoError(t, st.FS.MkdirAll(archived, 0o755))

	payload := Commit(context.Background(), cr, st, "inc-1", Options{RepoRoot: "/repo"})

	assert.Equal(t, []string{archived}, payload.Paths)
}

func TestCommitPermanentPushFailure(t *testing.T) {
	cr := &scriptCR{results: map[string]execx.Result{
		"git rev-parse --abbrev-ref HEAD": {Stdout: "main\n"},
		"git status":                      {Stdout: " M x\n"},
		"git push":                        {ExitCode: 1, Stderr: "protected branch hook declined"},
	}}
	st := testGitStore(t)

	payload := Commit(context.Background(), cr, st, "inc-1", Options{RepoRoot: "/repo", Push: true})

	assert.True(t, payload.Committed, "commit succeeded before the push failed")
	assert.False(t, payload.Pushed)
	assert.Contains(t, payload.Error, "git push")

	pushes := 0
	for _, call := range cr.log {
		if strings.HasPrefix(call, "git push") {
			pushes++
		}
	}
	assert.Equal(t, 1, pushes, "non-transient push failures must not be retried")
}

func TestCommitUnknownScope(t *testing.T) {
	cr := &scriptCR{results: map[string]execx.Result{
		"git rev-parse --abbrev-ref HEAD": {Stdout: "main\n"},
	}}
	st := testGitStore(t)

	payload := Commit(context.Background(), cr, st, "inc-1", Options{RepoRoot: "/repo", Scope: "everything"})

	assert.Contains(t, payload.Error, "unknown commit scope")
	assert.False(t, payload.Committed)
}

func TestCommitResolvesRepoRoot(t *testing.T) {
	cr := &scriptCR{results: map[string]execx.Result{
		"git rev-parse --show-toplevel":   {Stdout: "/resolved/repo\n"},
		"git rev-parse --abbrev-ref HEAD": {Stdout: "main\n"},
		"git status":                      {Stdout: ""},
	}}
	st := testGitStore(t)

	payload := Commit(context.Background(), cr, st, "inc-1", Options{})

	assert.Empty(t, payload.Error)
	assert.True(t, cr.called("git rev-parse --show-toplevel"))
}

func TestIsTransientPushFailure(t *testing.T) {
	assert.True(t, isTransientPushFailure("fatal: Could not resolve host: github.com"))
	assert.True(t, isTransientPushFailure("error: RPC failed; connection reset by peer"))
	assert.False(t, isTransientPushFailure("remote: permission denied"))
}

func TestRenderMessage(t *testing.T) {
	got := renderMessage("fix {a} and {b}", map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, "fix 1 and 2", got)

	assert.Equal(t, "fix: resolve incident inc-9",
		renderMessage("", map[string]string{"incident_id": "inc-9"}))
}
