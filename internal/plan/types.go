// Package plan synthesizes remediation plans from captured incident
// evidence. The synthesizer extracts and scores evidence signals, generates
// competing root-cause hypotheses, and emits the verification plan the
// execution loop runs against.
package plan

// Evidence sources. Each entry names where its content was extracted from.
const (
	SourceIncidentField = "incident_field"
	SourceContextField  = "context_field"
	SourceLogTail       = "log_tail"
	SourceAuditTail     = "audit_tail"
)

// KindLogContext tags line-grouped chunks extracted from the log tail.
// Field-derived entries use their dotted path as the kind.
const KindLogContext = "log_context"

// Evidence is one extracted signal backing the plan.
type Evidence struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Path    string `json:"path"` // dotted locator within the source
	Kind    string `json:"kind"`
	Excerpt string `json:"excerpt"`
}

// EvidenceQuality summarizes how much concrete, non-generic failure
// information backs the plan.
type EvidenceQuality struct {
	// Score is bounded to [0,1] and capped at 0.55 when no strong,
	// distinguishing signal exists.
	Score float64 `json:"score"`

	// HasFailureSignal is true when at least one entry contains a concrete
	// failure indicator.
	HasFailureSignal bool `json:"has_failure_signal"`

	// StrongSignalCount counts entries judged concrete rather than a
	// generic restatement of "it failed".
	StrongSignalCount int `json:"strong_signal_count"`
}

// Hypothesis is one candidate root cause. EvidenceIDs is never empty.
type Hypothesis struct {
	ID          string   `json:"id"`
	Statement   string   `json:"statement"`
	Likelihood  string   `json:"likelihood"` // "high", "medium", "low"
	EvidenceIDs []string `json:"evidence_ids"`
}

// Action is one ordered, priority-tagged remediation step.
type Action struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Priority int    `json:"priority"`
	Risk     string `json:"risk"` // "low", "medium", "high"
}

// Plan is the 1:1 remediation plan for an incident, persisted at
// error_plans/<id>/plan.json and referenced by the incident's plan_path.
type Plan struct {
	IncidentID            string              `json:"incident_id"`
	GeneratedAt           string              `json:"generated_at"`
	Summary               string              `json:"summary"`
	Evidence              []Evidence          `json:"evidence"`
	EvidenceQuality       EvidenceQuality     `json:"evidence_quality"`
	RootCauseHypotheses   []Hypothesis        `json:"root_cause_hypotheses"`
	HypothesisEvidenceMap map[string][]string `json:"hypothesis_evidence_map"`
	CauseAnalysis         []string            `json:"cause_analysis"`
	Actions               []Action            `json:"actions"`
	VerificationCommands  []string            `json:"verification_commands"`
	DoneCriteria          []string            `json:"done_criteria"`

	// ConfidenceScore is clamped to be <= EvidenceQuality.Score; the plan
	// never claims more confidence than its evidence supports.
	ConfidenceScore float64 `json:"confidence_score"`

	Unknowns    []string `json:"unknowns"`
	CardSummary string   `json:"card_summary"`
}
