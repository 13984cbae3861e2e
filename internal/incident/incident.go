// Package incident defines the durable incident record and its lifecycle
// vocabulary. An incident is a directory under error_inbox; the record here
// mirrors incident.json, with the on-disk status marker kept in lockstep by
// the store.
package incident

import (
	"encoding/json"
	"time"
)

// TimestampFormat is UTC second precision, used for created_at/updated_at.
const TimestampFormat = "2006-01-02T15:04:05Z"

// Formal status values. The store's validating writer accepts only these.
const (
	StatusNew       = "new"
	StatusPlanned   = "planned"
	StatusRunning   = "running"
	StatusResolved  = "resolved"
	StatusEscalated = "escalated"
)

// Informal status values written only by the handoff flow, which bypasses
// the validating writer. The formal vocabulary is intentionally not widened
// to include them; see the status marker contract notes in DESIGN.md.
const (
	StatusApproved  = "approved"
	StatusHandedOff = "handed_off"
)

// FormalStatuses is the validated lifecycle vocabulary.
var FormalStatuses = map[string]bool{
	StatusNew:       true,
	StatusPlanned:   true,
	StatusRunning:   true,
	StatusResolved:  true,
	StatusEscalated: true,
}

// ExecutionPolicy records the loop's bounded parameters on the incident for
// auditability.
type ExecutionPolicy struct {
	MaxLoops               int    `json:"max_loops"`
	MaxRuntimeMinutes      int    `json:"max_runtime_minutes"`
	SameErrorLimit         int    `json:"same_error_limit"`
	NoProgressLimit        int    `json:"no_progress_limit"`
	AutoReplanOnNoProgress bool   `json:"auto_replan_on_no_progress"`
	SingleIteration        bool   `json:"single_iteration"`
	CommitOnResolve        bool   `json:"commit_on_resolve"`
	PushOnResolve          bool   `json:"push_on_resolve"`
	CommitScope            string `json:"commit_scope,omitempty"`
	ArchiveOnSuccess       bool   `json:"archive_on_success"`
	ArchiveOnEscalate      bool   `json:"archive_on_escalate"`
}

// Incident is the structured record stored at error_inbox/<id>/incident.json.
// Unknown top-level keys are preserved across read-modify-write cycles.
type Incident struct {
	IncidentID      string           `json:"incident_id"`
	Status          string           `json:"status"`
	CreatedAt       string           `json:"created_at"`
	UpdatedAt       string           `json:"updated_at"`
	RunID           string           `json:"run_id,omitempty"`
	Year            int              `json:"year,omitempty"`
	Month           int              `json:"month,omitempty"`
	YM              string           `json:"ym,omitempty"`
	Step            string           `json:"step"`
	FailureClass    string           `json:"failure_class"`
	Message         string           `json:"message"`
	ErrorSignature  string           `json:"error_signature"`
	PlanPath        string           `json:"plan_path,omitempty"`
	ExecutionPolicy *ExecutionPolicy `json:"execution_policy,omitempty"`

	// Extra holds unrecognized top-level keys, round-tripped verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownKeys are the keys owned by the struct fields above.
var knownKeys = map[string]bool{
	"incident_id":      true,
	"status":           true,
	"created_at":       true,
	"updated_at":       true,
	"run_id":           true,
	"year":             true,
	"month":            true,
	"ym":               true,
	"step":             true,
	"failure_class":    true,
	"message":          true,
	"error_signature":  true,
	"plan_path":        true,
	"execution_policy": true,
}

type incidentAlias Incident

// UnmarshalJSON decodes the record and stashes unknown keys into Extra.
func (inc *Incident) UnmarshalJSON(data []byte) error {
	var alias incidentAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if knownKeys[key] {
			delete(raw, key)
		}
	}
	if len(raw) > 0 {
		alias.Extra = raw
	}
	*inc = Incident(alias)
	return nil
}

// MarshalJSON encodes the record, merging Extra keys back in.
func (inc Incident) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(incidentAlias(inc))
	if err != nil {
		return nil, err
	}
	if len(inc.Extra) == 0 {
		return data, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, val := range inc.Extra {
		if _, owned := merged[key]; !owned {
			merged[key] = val
		}
	}
	return json.Marshal(merged)
}

// Touch updates the updated_at timestamp.
func (inc *Incident) Touch(now time.Time) {
	inc.UpdatedAt = now.UTC().Format(TimestampFormat)
}
