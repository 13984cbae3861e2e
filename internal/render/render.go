// Package render formats human-readable output for ls and show. JSON is the
// machine contract; this is for operators reading a terminal.
package render

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/Igasawa/Skills-personal-sub001/internal/incident"
	"github.com/Igasawa/Skills-personal-sub001/internal/store"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	resolvedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))  // green
	escalatedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))  // red
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))  // yellow
	plannedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))  // blue
	brokenStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // grey
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // bright blue
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case incident.StatusResolved, incident.StatusHandedOff:
		return resolvedStyle
	case incident.StatusEscalated:
		return escalatedStyle
	case incident.StatusRunning:
		return runningStyle
	case incident.StatusPlanned, incident.StatusApproved:
		return plannedStyle
	}
	return lipgloss.NewStyle()
}

// LS renders the inbox scan as a table.
func LS(w io.Writer, summaries []store.IncidentSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "no incidents in error_inbox")
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-40s %-10s %-24s %-12s %s", "INCIDENT", "STATUS", "STEP", "CLASS", "CREATED")))
	for _, s := range summaries {
		status := s.Status
		if s.Broken {
			status = brokenStyle.Render("<broken>")
		} else {
			status = statusStyle(s.Status).Render(s.Status)
		}
		fmt.Fprintf(w, "%-40s %-10s %-24s %-12s %s\n",
			clip(s.IncidentID, 40), status, clip(s.Step, 24), clip(s.FailureClass, 12), s.CreatedAt)
	}
}

// Show renders one incident's record in label: value form.
func Show(w io.Writer, inc *incident.Incident) {
	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label+":"), value)
	}
	row("incident_id", inc.IncidentID)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("status:"), statusStyle(inc.Status).Render(inc.Status))
	row("step", inc.Step)
	row("failure_class", inc.FailureClass)
	row("message", inc.Message)
	row("run_id", inc.RunID)
	row("ym", inc.YM)
	row("created_at", inc.CreatedAt)
	row("updated_at", inc.UpdatedAt)
	row("error_signature", inc.ErrorSignature)
	row("plan_path", inc.PlanPath)
	if inc.ExecutionPolicy != nil {
		row("execution_policy", fmt.Sprintf("max_loops=%d max_runtime=%dm same_error_limit=%d no_progress_limit=%d",
			inc.ExecutionPolicy.MaxLoops, inc.ExecutionPolicy.MaxRuntimeMinutes,
			inc.ExecutionPolicy.SameErrorLimit, inc.ExecutionPolicy.NoProgressLimit))
	}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
