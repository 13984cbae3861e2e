// Package handoff packages an approved incident's plan into an
// operator-facing payload and marks the incident handed off. Approval is an
// out-of-core human action: the dashboard writes "approved" to the status
// marker before this runs.
package handoff

import (
	"fmt"
	"time"

	"github.com/Igasawa/Skills-personal-sub001/internal/config"
	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
	"github.com/Igasawa/Skills-personal-sub001/internal/events"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/incident"
	"github.com/Igasawa/Skills-personal-sub001/internal/plan"
	"github.com/Igasawa/Skills-personal-sub001/internal/store"
)

// Result is the handoff call's payload.
type Result struct {
	HandoffStatus   string `json:"handoff_status"` // always "handed_off" on success
	HandoffJSONPath string `json:"handoff_json_path"`
}

// payload is the operator-facing handoff document.
type payload struct {
	IncidentID   string   `json:"incident_id"`
	HandedOffAt  string   `json:"handed_off_at"`
	Step         string   `json:"step"`
	FailureClass string   `json:"failure_class"`
	CardSummary  string   `json:"card_summary"`
	Actions      []string `json:"actions"`
	DoneCriteria []string `json:"done_criteria"`
	PlanPath     string   `json:"plan_path"`
}

// Service performs incident handoff.
type Service struct {
	Env config.Environment
	FS  fs.FS
	Now func() time.Time
}

// NewService creates a handoff service.
func NewService(env config.Environment, fsys fs.FS) *Service {
	return &Service{Env: env, FS: fsys, Now: time.Now}
}

// Handoff requires an approved incident with a plan carrying a card
// summary. On success the incident's status becomes "handed_off" (an
// informal status written through the raw writer).
func (s *Service) Handoff(incidentID string) (*Result, error) {
	st := store.NewStore(s.FS, s.Env.ReportsRoot, s.Now)

	inc, err := st.ReadIncident(incidentID)
	if err != nil {
		return nil, err
	}

	if inc.Status != incident.StatusApproved {
		return nil, errors.NewWithDetails(
			errors.ENotApproved,
			fmt.Sprintf("incident %s has status %q; handoff requires %q", incidentID, inc.Status, incident.StatusApproved),
			map[string]string{"incident_id": incidentID, "status": inc.Status},
		)
	}

	planPath := inc.PlanPath
	if planPath == "" {
		planPath = st.PlanJSONPath(incidentID)
	}
	var p plan.Plan
	if err := st.ReadJSON(planPath, &p); err != nil {
		return nil, errors.WrapWithDetails(
			errors.ENotFound,
			"handoff requires an existing plan",
			err,
			map[string]string{"incident_id": incidentID, "path": planPath},
		)
	}
	if p.CardSummary == "" {
		return nil, errors.NewWithDetails(
			errors.EPlanInvalid,
			"plan has no card_summary; regenerate the plan before handing off",
			map[string]string{"incident_id": incidentID, "path": planPath},
		)
	}

	actions := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		actions[i] = fmt.Sprintf("%d. %s (risk: %s)", a.Priority, a.Title, a.Risk)
	}

	now := s.Now().UTC()
	doc := payload{
		IncidentID:   incidentID,
		HandedOffAt:  now.Format(incident.TimestampFormat),
		Step:         inc.Step,
		FailureClass: inc.FailureClass,
		CardSummary:  p.CardSummary,
		Actions:      actions,
		DoneCriteria: p.DoneCriteria,
		PlanPath:     planPath,
	}

	handoffPath := st.HandoffJSONPath(incidentID)
	if err := st.WriteJSON(handoffPath, doc); err != nil {
		return nil, err
	}

	if err := st.WriteStatusRaw(inc, incident.StatusHandedOff); err != nil {
		return nil, err
	}

	_ = events.AppendEvent(st.EventsPath(incidentID), events.Event{
		Timestamp:  now.Format(time.RFC3339),
		IncidentID: incidentID,
		Event:      "handed_off",
		Data:       events.TransitionData(incident.StatusApproved, incident.StatusHandedOff),
	})

	return &Result{HandoffStatus: "handed_off", HandoffJSONPath: handoffPath}, nil
}
