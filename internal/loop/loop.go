// Execution loop runner.
package loop

import (
	"context"
	"fmt"
	"time"

	"github.com/Igasawa/Skills-personal-sub001/internal/archive"
	"github.com/Igasawa/Skills-personal-sub001/internal/config"
	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
	"github.com/Igasawa/Skills-personal-sub001/internal/events"
	"github.com/Igasawa/Skills-personal-sub001/internal/execx"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/gitops"
	"github.com/Igasawa/Skills-personal-sub001/internal/incident"
	"github.com/Igasawa/Skills-personal-sub001/internal/plan"
	"github.com/Igasawa/Skills-personal-sub001/internal/redact"
	"github.com/Igasawa/Skills-personal-sub001/internal/store"
)

// outputTailChars bounds stored stdout/stderr per command result.
const outputTailChars = 4000

// defaultIterationDelay is the brief yield between failing iterations.
// A yield, not a backoff: thresholds, not sleep time, bound the loop.
const defaultIterationDelay = 200 * time.Millisecond

// Policy is the loop's bounded parameters for one invocation.
type Policy struct {
	MaxLoops               int
	MaxRuntime             time.Duration
	SameErrorLimit         int
	NoProgressLimit        int
	AutoReplanOnNoProgress bool
	SingleIteration        bool

	CommitOnResolve       bool
	PushOnResolve         bool
	CommitMessageTemplate string
	CommitRemote          string
	CommitBranch          string
	CommitScope           string

	ArchiveOnSuccess  bool
	ArchiveOnEscalate bool

	CommandTimeout time.Duration
	IterationDelay time.Duration
}

// Record converts the policy into the auditable form stored on the incident.
func (p Policy) Record() *incident.ExecutionPolicy {
	return &incident.ExecutionPolicy{
		MaxLoops:               p.MaxLoops,
		MaxRuntimeMinutes:      int(p.MaxRuntime / time.Minute),
		SameErrorLimit:         p.SameErrorLimit,
		NoProgressLimit:        p.NoProgressLimit,
		AutoReplanOnNoProgress: p.AutoReplanOnNoProgress,
		SingleIteration:        p.SingleIteration,
		CommitOnResolve:        p.CommitOnResolve,
		PushOnResolve:          p.PushOnResolve,
		CommitScope:            p.CommitScope,
		ArchiveOnSuccess:       p.ArchiveOnSuccess,
		ArchiveOnEscalate:      p.ArchiveOnEscalate,
	}
}

// Runner executes the loop for one incident. Two concurrent invocations
// against the same incident are not safe; the caller serializes.
type Runner struct {
	Env config.Environment
	FS  fs.FS
	CR  execx.CommandRunner
	Now func() time.Time

	// Replanner regenerates the plan on a forced replan. Defaults to the
	// real synthesizer; tests substitute a stub.
	Replanner interface {
		Generate(incidentID string, force bool) (*plan.Plan, error)
	}

	// Archiver relocates terminal incidents. Defaults to the real service.
	Archiver interface {
		Archive(incidentID, result, reason string) (*archive.Result, error)
	}
}

// NewRunner creates a loop runner wired to the real services.
func NewRunner(env config.Environment, fsys fs.FS, cr execx.CommandRunner) *Runner {
	return &Runner{
		Env:       env,
		FS:        fsys,
		CR:        cr,
		Now:       time.Now,
		Replanner: plan.NewSynthesizer(env, fsys),
		Archiver:  archive.NewService(env, fsys),
	}
}

// Execute resumes persisted loop state and drives the incident until it
// resolves, escalates, requests a replan, or exhausts this invocation.
func (r *Runner) Execute(ctx context.Context, incidentID string, pol Policy) (*RunResult, error) {
	st := store.NewStore(r.FS, r.Env.ReportsRoot, r.Now)

	inc, err := st.ReadIncident(incidentID)
	if err != nil {
		return nil, err
	}

	p, err := r.loadPlan(st, inc)
	if err != nil {
		return nil, err
	}
	if len(p.VerificationCommands) == 0 {
		return nil, errors.NewWithDetails(
			errors.ENoVerificationCommands,
			"plan has no verification commands; the loop refuses to run",
			map[string]string{"incident_id": incidentID, "path": inc.PlanPath},
		)
	}

	state := r.loadState(st, incidentID)

	inc.ExecutionPolicy = pol.Record()
	if err := st.SetStatus(inc, incident.StatusRunning); err != nil {
		return nil, err
	}

	invocationStart := r.Now()
	result := &RunResult{
		IncidentID:  incidentID,
		FinalStatus: FinalRunning,
		StartedAt:   invocationStart.UTC().Format(incident.TimestampFormat),
	}

	r.appendEvent(st, incidentID, "loop_start", map[string]any{
		"loops_used": state.LoopsUsed,
		"commands":   len(p.VerificationCommands),
	})

	delay := pol.IterationDelay
	if delay == 0 {
		delay = defaultIterationDelay
	}

	for {
		if state.LoopsUsed >= pol.MaxLoops {
			result.FinalStatus = FinalEscalated
			break
		}
		if pol.MaxRuntime > 0 && r.Now().Sub(invocationStart) >= pol.MaxRuntime {
			result.FinalStatus = FinalEscalated
			break
		}

		attempt := r.runIteration(ctx, state.LoopsUsed+1, p.VerificationCommands, pol.CommandTimeout)

		if attempt.Passed {
			state.LastSignature = ""
		} else {
			if attempt.Signature == state.LastSignature && state.LastSignature != "" {
				state.SameErrorRepeats++
			} else {
				state.SameErrorRepeats = 1
			}
			// Any failing iteration is a no-progress iteration: a new
			// signature proves change, not progress.
			state.NoProgressStreak++
			if state.SignatureCounts == nil {
				state.SignatureCounts = map[string]int{}
			}
			state.SignatureCounts[attempt.Signature]++
			state.LastSignature = attempt.Signature
		}
		state.LoopsUsed++
		attempt.SameErrorRepeats = state.SameErrorRepeats
		attempt.NoProgressStreak = state.NoProgressStreak

		// Attempt record and loop state are committed together before any
		// decision: a crashed loop resumes from exactly these counters.
		attemptPath := st.AttemptPath(incidentID, attempt.Iteration)
		stage := store.NewStage(r.FS)
		if err := stage.AddJSON(attemptPath, attempt); err != nil {
			return nil, err
		}
		if err := stage.AddJSON(st.LoopStatePath(incidentID), state); err != nil {
			return nil, err
		}
		if err := stage.Commit(); err != nil {
			return nil, err
		}
		result.Attempts = append(result.Attempts, attemptPath)
		r.appendEvent(st, incidentID, "attempt", events.AttemptData(attempt.Iteration, attempt.Passed, attempt.Signature))

		if attempt.Passed {
			result.FinalStatus = FinalResolved
			break
		}
		if pol.AutoReplanOnNoProgress && state.NoProgressStreak >= pol.NoProgressLimit {
			result.FinalStatus = FinalReplanRequested
			result.Replan = r.forceReplan(st, incidentID)
			break
		}
		if state.SameErrorRepeats >= pol.SameErrorLimit {
			result.FinalStatus = FinalEscalated
			break
		}
		if pol.SingleIteration {
			result.FinalStatus = FinalRunning
			break
		}

		select {
		case <-ctx.Done():
			result.FinalStatus = FinalRunning
		case <-time.After(delay):
			continue
		}
		break
	}

	r.finalize(ctx, st, inc, pol, result)

	finished := r.Now()
	result.LoopsUsed = state.LoopsUsed
	result.RuntimeSeconds = finished.Sub(invocationStart).Seconds()
	result.FinishedAt = finished.UTC().Format(incident.TimestampFormat)

	if err := st.WriteJSON(st.RunResultPath(incidentID), result); err != nil {
		return nil, err
	}
	r.appendEvent(st, incidentID, "loop_end", map[string]any{
		"final_status": result.FinalStatus,
		"loops_used":   state.LoopsUsed,
	})

	return result, nil
}

// runIteration executes every verification command sequentially and derives
// the iteration's signature from the first failing command.
func (r *Runner) runIteration(ctx context.Context, iteration int, commands []string, timeout time.Duration) Attempt {
	if timeout == 0 {
		timeout = r.Env.CommandTimeout
	}
	workDir := r.Env.RepoRoot
	if workDir == "" {
		workDir = "."
	}

	attempt := Attempt{
		Iteration: iteration,
		StartedAt: r.Now().UTC().Format(incident.TimestampFormat),
		Commands:  commands,
		Passed:    true,
	}

	for _, command := range commands {
		cr := CommandResult{Command: command}

		if reason := BlockReason(command); reason != "" {
			cr.ReturnCode = execx.BlockedExitCode
			cr.Blocked = true
			cr.Stderr = reason
		} else {
			res, err := r.CR.Shell(ctx, workDir, command, timeout)
			cr.ReturnCode = res.ExitCode
			cr.Stdout = execx.Truncate(res.Stdout, outputTailChars)
			cr.Stderr = execx.Truncate(res.Stderr, outputTailChars)
			cr.TimedOut = res.TimedOut
			cr.DurationMS = res.Duration.Milliseconds()
			if err != nil && cr.Stderr == "" {
				cr.Stderr = err.Error()
			}
		}

		attempt.Results = append(attempt.Results, cr)
		if cr.ReturnCode != 0 && attempt.Passed {
			attempt.Passed = false
			attempt.Signature = Signature(cr.Command, cr.ReturnCode)
		}
	}

	attempt.FinishedAt = r.Now().UTC().Format(incident.TimestampFormat)
	return attempt
}

// Signature fingerprints a failing command for repeat detection.
func Signature(command string, returnCode int) string {
	return redact.Redact(fmt.Sprintf("%s => rc=%d", command, returnCode))
}

// loadPlan reads the incident's plan, preferring the recorded plan_path.
func (r *Runner) loadPlan(st *store.Store, inc *incident.Incident) (*plan.Plan, error) {
	path := inc.PlanPath
	if path == "" {
		path = st.PlanJSONPath(inc.IncidentID)
	}
	var p plan.Plan
	if err := st.ReadJSON(path, &p); err != nil {
		return nil, errors.WrapWithDetails(
			errors.ENotFound,
			"plan not found; generate one with 'remedy plan' first",
			err,
			map[string]string{"incident_id": inc.IncidentID, "path": path},
		)
	}
	return &p, nil
}

// loadState resumes persisted loop state, or initializes it.
func (r *Runner) loadState(st *store.Store, incidentID string) *LoopState {
	var state LoopState
	if err := st.ReadJSON(st.LoopStatePath(incidentID), &state); err == nil && state.IncidentID == incidentID {
		return &state
	}
	return &LoopState{
		IncidentID:      incidentID,
		SignatureCounts: map[string]int{},
		StartedAt:       r.Now().UTC().Format(incident.TimestampFormat),
	}
}

// forceReplan regenerates the plan after a no-progress streak.
func (r *Runner) forceReplan(st *store.Store, incidentID string) *ReplanPayload {
	payload := &ReplanPayload{Attempted: true}
	if _, err := r.Replanner.Generate(incidentID, true); err != nil {
		payload.Error = err.Error()
		return payload
	}
	payload.PlanPath = st.PlanJSONPath(incidentID)
	return payload
}

// finalize applies the terminal transition, archive sub-operation, and
// commit gate for this invocation's final status.
func (r *Runner) finalize(ctx context.Context, st *store.Store, inc *incident.Incident, pol Policy, result *RunResult) {
	switch result.FinalStatus {
	case FinalResolved:
		if pol.ArchiveOnSuccess {
			// Leave "running"; the archive call finalizes the status and
			// rolls back to "running" if the relocation fails.
			result.Archive = r.runArchive(inc.IncidentID, archive.ResultResolved, "verification passed")
		} else {
			if err := st.SetStatus(inc, incident.StatusResolved); err != nil {
				result.Archive = &ArchivePayload{Error: err.Error()}
			}
		}
	case FinalEscalated:
		if pol.ArchiveOnEscalate {
			result.Archive = r.runArchive(inc.IncidentID, archive.ResultEscalated, "loop budget exhausted or error repeated")
		} else {
			if err := st.SetStatus(inc, incident.StatusEscalated); err != nil {
				result.Archive = &ArchivePayload{Error: err.Error()}
			}
		}
	case FinalReplanRequested, FinalRunning:
		// Replan already set the incident back to "planned"; a still-running
		// single iteration stays "running" for the next invocation.
	}

	if pol.CommitOnResolve && result.FinalStatus == FinalResolved {
		payload := gitops.Commit(ctx, r.CR, st, inc.IncidentID, gitops.Options{
			RepoRoot:        r.Env.RepoRoot,
			Remote:          firstNonEmpty(pol.CommitRemote, r.Env.CommitRemote),
			Branch:          pol.CommitBranch,
			Scope:           pol.CommitScope,
			MessageTemplate: firstNonEmpty(pol.CommitMessageTemplate, r.Env.CommitMessageTemplate),
			Push:            pol.PushOnResolve,
			Vars: map[string]string{
				"incident_id": inc.IncidentID,
				"step":        inc.Step,
				"status":      result.FinalStatus,
			},
		})
		result.Commit = &payload
	}
}

func (r *Runner) runArchive(incidentID, archiveResult, reason string) *ArchivePayload {
	payload := &ArchivePayload{Attempted: true}
	res, err := r.Archiver.Archive(incidentID, archiveResult, reason)
	if err != nil {
		payload.Error = err.Error()
		return payload
	}
	payload.Status = res.Status
	payload.ArchivedPath = res.ArchivedPath
	return payload
}

func (r *Runner) appendEvent(st *store.Store, incidentID, event string, data map[string]any) {
	_ = events.AppendEvent(st.EventsPath(incidentID), events.Event{
		Timestamp:  r.Now().UTC().Format(time.RFC3339),
		IncidentID: incidentID,
		Event:      event,
		Data:       data,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
