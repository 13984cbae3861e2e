// Package loop drives the bounded verify-fix-reverify cycle for an
// incident. It runs the plan's verification commands, tracks failure
// signatures across iterations, and decides between resolved, escalated,
// and replan-requested outcomes. Loop state is persisted after every
// iteration so a restarted loop resumes from the last counters.
package loop

import (
	"github.com/Igasawa/Skills-personal-sub001/internal/gitops"
)

// Final statuses of one loop invocation.
const (
	FinalResolved        = "resolved"
	FinalEscalated       = "escalated"
	FinalReplanRequested = "replan_requested"
	FinalRunning         = "running"
)

// LoopState is the single source of truth for resumption, persisted at
// error_runs/<id>/loop_state.json. Mutated only by the loop.
type LoopState struct {
	IncidentID       string         `json:"incident_id"`
	LoopsUsed        int            `json:"loops_used"`
	LastSignature    string         `json:"last_signature,omitempty"`
	SameErrorRepeats int            `json:"same_error_repeats"`
	NoProgressStreak int            `json:"no_progress_streak"`
	SignatureCounts  map[string]int `json:"signature_counts"`
	StartedAt        string         `json:"started_at"`
}

// CommandResult is the outcome of one verification command.
type CommandResult struct {
	Command    string `json:"command"`
	ReturnCode int    `json:"returncode"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	TimedOut   bool   `json:"timed_out,omitempty"`
	Blocked    bool   `json:"blocked,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Attempt is the immutable record of one loop iteration, written once to
// error_runs/<id>/attempt_<NN>.json and never edited.
type Attempt struct {
	Iteration        int             `json:"iteration"`
	StartedAt        string          `json:"started_at"`
	FinishedAt       string          `json:"finished_at"`
	Commands         []string        `json:"commands"`
	Results          []CommandResult `json:"results"`
	Passed           bool            `json:"passed"`
	Signature        string          `json:"signature,omitempty"`
	SameErrorRepeats int             `json:"same_error_repeats"`
	NoProgressStreak int             `json:"no_progress_streak"`
}

// ArchivePayload is the outcome of the archive sub-operation.
type ArchivePayload struct {
	Attempted    bool   `json:"attempted"`
	Status       string `json:"status,omitempty"` // "archived", "already_archived"
	ArchivedPath string `json:"archived_path,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ReplanPayload is the outcome of a forced replan.
type ReplanPayload struct {
	Attempted bool   `json:"attempted"`
	PlanPath  string `json:"plan_path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RunResult is the loop's final output for one invocation, persisted at
// error_runs/<id>/run_result.json. The next invocation supersedes it.
type RunResult struct {
	IncidentID     string          `json:"incident_id"`
	FinalStatus    string          `json:"final_status"`
	LoopsUsed      int             `json:"loops_used"`
	RuntimeSeconds float64         `json:"runtime_seconds"`
	StartedAt      string          `json:"started_at"`
	FinishedAt     string          `json:"finished_at"`
	Attempts       []string        `json:"attempts"` // attempt record paths for this invocation
	Archive        *ArchivePayload `json:"archive,omitempty"`
	Replan         *ReplanPayload  `json:"replan,omitempty"`

	Commit *gitops.CommitPayload `json:"commit,omitempty"`
}
