// Package store provides persistence for the reports-root directory tree.
// The filesystem is the database: incidents, plans, loop state, and attempts
// are JSON files in a fixed layout. All record writes are atomic via temp
// file + rename; multi-file mutations for one stage go through Stage.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/incident"
)

// Directory names under the reports root. Public layout contract: the
// dashboard scans these paths directly.
const (
	InboxDirName   = "error_inbox"
	PlansDirName   = "error_plans"
	RunsDirName    = "error_runs"
	ArchiveDirName = "error_archive"
	HandoffDirName = "error_handoff"
)

// File names inside an incident directory.
const (
	StatusFileName    = "status.txt"
	RecordFileName    = "incident.json"
	LogTailFileName   = "log_tail.txt"
	AuditTailFileName = "audit_tail.jsonl"
	ContextFileName   = "context.json"
)

// Store handles persistence under one reports root.
type Store struct {
	FS   fs.FS            // filesystem interface for stubbing
	Root string           // resolved reports root
	Now  func() time.Time // injectable clock for deterministic tests
}

// NewStore creates a new Store with the given dependencies.
func NewStore(filesystem fs.FS, root string, now func() time.Time) *Store {
	return &Store{FS: filesystem, Root: root, Now: now}
}

// ----- inbox paths -----

// InboxDir returns the active incident inbox directory.
func (s *Store) InboxDir() string { return filepath.Join(s.Root, InboxDirName) }

// IncidentDir returns the directory for an active incident.
func (s *Store) IncidentDir(id string) string { return filepath.Join(s.InboxDir(), id) }

// StatusPath returns the path to an incident's status marker.
func (s *Store) StatusPath(id string) string {
	return filepath.Join(s.IncidentDir(id), StatusFileName)
}

// RecordPath returns the path to an incident's incident.json.
func (s *Store) RecordPath(id string) string {
	return filepath.Join(s.IncidentDir(id), RecordFileName)
}

// LogTailPath returns the path to an incident's captured log tail.
func (s *Store) LogTailPath(id string) string {
	return filepath.Join(s.IncidentDir(id), LogTailFileName)
}

// AuditTailPath returns the path to an incident's captured audit tail.
func (s *Store) AuditTailPath(id string) string {
	return filepath.Join(s.IncidentDir(id), AuditTailFileName)
}

// ContextPath returns the path to an incident's structured context.
func (s *Store) ContextPath(id string) string {
	return filepath.Join(s.IncidentDir(id), ContextFileName)
}

// ----- plan paths -----

// PlanDir returns the plan directory for an incident.
func (s *Store) PlanDir(id string) string {
	return filepath.Join(s.Root, PlansDirName, id)
}

// PlanJSONPath returns the path to an incident's plan.json.
func (s *Store) PlanJSONPath(id string) string {
	return filepath.Join(s.PlanDir(id), "plan.json")
}

// PlanMarkdownPath returns the path to an incident's plan.md.
func (s *Store) PlanMarkdownPath(id string) string {
	return filepath.Join(s.PlanDir(id), "plan.md")
}

// ----- run paths -----

// RunDir returns the execution-loop directory for an incident.
func (s *Store) RunDir(id string) string {
	return filepath.Join(s.Root, RunsDirName, id)
}

// LoopStatePath returns the path to an incident's loop_state.json.
func (s *Store) LoopStatePath(id string) string {
	return filepath.Join(s.RunDir(id), "loop_state.json")
}

// AttemptPath returns the path for one immutable attempt record.
func (s *Store) AttemptPath(id string, iteration int) string {
	return filepath.Join(s.RunDir(id), fmt.Sprintf("attempt_%02d.json", iteration))
}

// RunResultPath returns the path to an incident's run_result.json.
func (s *Store) RunResultPath(id string) string {
	return filepath.Join(s.RunDir(id), "run_result.json")
}

// EventsPath returns the path to an incident's events.jsonl.
func (s *Store) EventsPath(id string) string {
	return filepath.Join(s.RunDir(id), "events.jsonl")
}

// ----- archive / handoff paths -----

// ArchiveDir returns the archive bucket for a terminal result
// ("resolved" or "escalated").
func (s *Store) ArchiveDir(result string) string {
	return filepath.Join(s.Root, ArchiveDirName, result)
}

// ArchivedIncidentDir returns the destination for a relocated incident tree.
func (s *Store) ArchivedIncidentDir(result, id string) string {
	return filepath.Join(s.ArchiveDir(result), id)
}

// FindArchivedIncidentDir returns the archived location of an incident, or
// empty string if it is not archived under either bucket.
func (s *Store) FindArchivedIncidentDir(id string) string {
	for _, result := range []string{"resolved", "escalated"} {
		dir := s.ArchivedIncidentDir(result, id)
		if fs.Exists(s.FS, dir) {
			return dir
		}
	}
	return ""
}

// HandoffDir returns the handoff directory for an incident.
func (s *Store) HandoffDir(id string) string {
	return filepath.Join(s.Root, HandoffDirName, id)
}

// HandoffJSONPath returns the path to an incident's handoff payload.
func (s *Store) HandoffJSONPath(id string) string {
	return filepath.Join(s.HandoffDir(id), "handoff.json")
}

// ----- incident record I/O -----

// IncidentExists reports whether the incident directory exists in the inbox.
func (s *Store) IncidentExists(id string) bool {
	return fs.Exists(s.FS, s.IncidentDir(id))
}

// ReadIncident loads an incident record from the active inbox.
func (s *Store) ReadIncident(id string) (*incident.Incident, error) {
	data, err := s.FS.ReadFile(s.RecordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewWithDetails(
				errors.ENotFound,
				fmt.Sprintf("incident %s not found", id),
				map[string]string{"incident_id": id},
			)
		}
		return nil, errors.Wrap(errors.EInternal, "failed to read incident record", err)
	}
	var inc incident.Incident
	if err := json.Unmarshal(data, &inc); err != nil {
		return nil, errors.WrapWithDetails(
			errors.EStoreCorrupt,
			"incident.json is unreadable or invalid",
			err,
			map[string]string{"incident_id": id},
		)
	}
	return &inc, nil
}

// WriteIncident persists the record and its status marker together. The
// status must be in the formal vocabulary; the two files are staged and
// committed as one mutation so they always agree.
func (s *Store) WriteIncident(inc *incident.Incident) error {
	if !incident.FormalStatuses[inc.Status] {
		return errors.NewWithDetails(
			errors.EInvalidStatus,
			fmt.Sprintf("status %q is outside the validated lifecycle vocabulary", inc.Status),
			map[string]string{"incident_id": inc.IncidentID, "status": inc.Status},
		)
	}
	stage := NewStage(s.FS)
	if err := stage.AddJSON(s.RecordPath(inc.IncidentID), inc); err != nil {
		return err
	}
	stage.Add(s.StatusPath(inc.IncidentID), []byte(inc.Status+"\n"))
	return stage.Commit()
}

// SetStatus updates the incident's status, updated_at, record, and marker in
// one staged mutation.
func (s *Store) SetStatus(inc *incident.Incident, status string) error {
	inc.Status = status
	inc.Touch(s.Now())
	return s.WriteIncident(inc)
}

// WriteStatusRaw writes the status marker and record status directly,
// bypassing the formal-vocabulary validator. Used only by the handoff flow
// for the informal approved/handed_off states.
func (s *Store) WriteStatusRaw(inc *incident.Incident, status string) error {
	inc.Status = status
	inc.Touch(s.Now())
	stage := NewStage(s.FS)
	if err := stage.AddJSON(s.RecordPath(inc.IncidentID), inc); err != nil {
		return err
	}
	stage.Add(s.StatusPath(inc.IncidentID), []byte(status+"\n"))
	return stage.Commit()
}

// ReadStatusMarker returns the trimmed contents of status.txt.
func (s *Store) ReadStatusMarker(id string) (string, error) {
	data, err := s.FS.ReadFile(s.StatusPath(id))
	if err != nil {
		return "", err
	}
	return trimNewline(string(data)), nil
}

// ----- generic JSON I/O -----

// ReadJSON loads a JSON file into out.
func (s *Store) ReadJSON(path string, out any) error {
	data, err := s.FS.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// WriteJSON atomically writes v as indented JSON.
func (s *Store) WriteJSON(path string, v any) error {
	data, err := MarshalRecord(v)
	if err != nil {
		return errors.Wrap(errors.EPersistFailed, "failed to encode record", err)
	}
	if err := fs.WriteFileAtomic(s.FS, path, data, 0o644); err != nil {
		return errors.Wrap(errors.EPersistFailed, "failed to write "+path, err)
	}
	return nil
}

// MarshalRecord encodes a record as indented JSON with a trailing newline.
func MarshalRecord(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
