// Package archive relocates terminal incidents out of the active inbox into
// the result-keyed archive bucket. Archiving is retry-safe: re-archiving an
// already-archived incident is a no-op success.
package archive

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Igasawa/Skills-personal-sub001/internal/config"
	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
	"github.com/Igasawa/Skills-personal-sub001/internal/events"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/incident"
	"github.com/Igasawa/Skills-personal-sub001/internal/store"
)

// Valid archive results.
const (
	ResultResolved  = "resolved"
	ResultEscalated = "escalated"
)

// Result is the archive call's payload.
type Result struct {
	Status       string `json:"status"` // "archived" or "already_archived"
	ArchivedPath string `json:"archived_path"`
}

// Service performs incident archiving.
type Service struct {
	Env config.Environment
	FS  fs.FS
	Now func() time.Time
}

// NewService creates an archive service.
func NewService(env config.Environment, fsys fs.FS) *Service {
	return &Service{Env: env, FS: fsys, Now: time.Now}
}

// Archive finalizes the incident's status to result and moves its directory
// from error_inbox to error_archive/<result>/<id>. If the move fails after
// the status write, the status is rolled back so the incident is not left
// terminal but un-archived.
func (s *Service) Archive(incidentID, result, reason string) (*Result, error) {
	if result != ResultResolved && result != ResultEscalated {
		return nil, errors.NewWithDetails(
			errors.EUsage,
			fmt.Sprintf("archive result must be %q or %q, got %q", ResultResolved, ResultEscalated, result),
			map[string]string{"incident_id": incidentID},
		)
	}

	st := store.NewStore(s.FS, s.Env.ReportsRoot, s.Now)

	if !st.IncidentExists(incidentID) {
		// Retry safety: an already-archived incident is a success.
		if archived := st.FindArchivedIncidentDir(incidentID); archived != "" {
			return &Result{Status: "already_archived", ArchivedPath: archived}, nil
		}
		return nil, errors.NewWithDetails(
			errors.ENotFound,
			fmt.Sprintf("incident %s not found in inbox or archive", incidentID),
			map[string]string{"incident_id": incidentID},
		)
	}

	inc, err := st.ReadIncident(incidentID)
	if err != nil {
		return nil, err
	}

	priorStatus := inc.Status
	if inc.Status != result {
		if err := st.SetStatus(inc, result); err != nil {
			return nil, err
		}
	}

	dest := st.ArchivedIncidentDir(result, incidentID)
	if err := s.FS.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		s.rollback(st, inc, priorStatus)
		return nil, errors.Wrap(errors.EArchiveFailed, "failed to create archive bucket", err)
	}
	// A stale destination from an interrupted archive would make the rename
	// fail. Removal is prefix-guarded to the reports root.
	if fs.Exists(s.FS, dest) {
		if err := fs.SafeRemoveAll(dest, s.Env.ReportsRoot); err != nil {
			s.rollback(st, inc, priorStatus)
			return nil, errors.Wrap(errors.EArchiveFailed, "failed to clear stale archive destination", err)
		}
	}
	if err := s.FS.Rename(st.IncidentDir(incidentID), dest); err != nil {
		s.rollback(st, inc, priorStatus)
		return nil, errors.WrapWithDetails(
			errors.EArchiveFailed,
			"failed to relocate incident into archive",
			err,
			map[string]string{"incident_id": incidentID, "path": dest},
		)
	}

	_ = events.AppendEvent(st.EventsPath(incidentID), events.Event{
		Timestamp:  s.Now().UTC().Format(time.RFC3339),
		IncidentID: incidentID,
		Event:      "archived",
		Data: map[string]any{
			"result": result,
			"reason": reason,
			"path":   dest,
		},
	})

	return &Result{Status: "archived", ArchivedPath: dest}, nil
}

// rollback restores the pre-archive status after a failed relocation. The
// deferred-finalization contract: a loop that left the incident "running"
// for the archive call to finalize must find it "running" again on failure.
func (s *Service) rollback(st *store.Store, inc *incident.Incident, priorStatus string) {
	if priorStatus == inc.Status {
		return
	}
	if incident.FormalStatuses[priorStatus] {
		_ = st.SetStatus(inc, priorStatus)
	}
}
