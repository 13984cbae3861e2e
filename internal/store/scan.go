// Inbox scanning for ls/show. The dashboard scans error_inbox the same way.
package store

import (
	"os"
	"sort"
)

// IncidentSummary is one row of an inbox scan.
type IncidentSummary struct {
	IncidentID   string `json:"incident_id"`
	Status       string `json:"status"`
	Step         string `json:"step"`
	FailureClass string `json:"failure_class"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	PlanPath     string `json:"plan_path,omitempty"`

	// Broken indicates incident.json is unreadable or disagrees with the
	// status marker. Broken incidents are listed, not hidden.
	Broken bool `json:"broken,omitempty"`
}

// ScanInbox lists every incident directory under error_inbox, sorted by
// incident id ascending. A missing inbox yields an empty list.
func (s *Store) ScanInbox() ([]IncidentSummary, error) {
	entries, err := s.FS.ReadDir(s.InboxDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []IncidentSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		summary := IncidentSummary{IncidentID: id}

		inc, err := s.ReadIncident(id)
		if err != nil {
			summary.Broken = true
			if marker, merr := s.ReadStatusMarker(id); merr == nil {
				summary.Status = marker
			}
			out = append(out, summary)
			continue
		}

		summary.Status = inc.Status
		summary.Step = inc.Step
		summary.FailureClass = inc.FailureClass
		summary.CreatedAt = inc.CreatedAt
		summary.UpdatedAt = inc.UpdatedAt
		summary.PlanPath = inc.PlanPath

		// The marker contract: status.txt must mirror incident.json.status.
		if marker, merr := s.ReadStatusMarker(id); merr != nil || marker != inc.Status {
			summary.Broken = true
		}
		out = append(out, summary)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].IncidentID < out[j].IncidentID
	})
	return out, nil
}
