// Markdown rendering of a plan for operator reading. plan.md sits beside
// plan.json; the JSON file is the machine contract.
package plan

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders the operator-facing plan document.
func RenderMarkdown(p *Plan) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Remediation plan: %s\n\n", p.IncidentID)
	fmt.Fprintf(&sb, "Generated: %s\n\n", p.GeneratedAt)
	fmt.Fprintf(&sb, "%s\n\n", p.Summary)

	fmt.Fprintf(&sb, "## Evidence (quality %.2f, %d strong signal(s))\n\n", p.EvidenceQuality.Score, p.EvidenceQuality.StrongSignalCount)
	for _, e := range p.Evidence {
		fmt.Fprintf(&sb, "- `%s` [%s] %s: %s\n", e.ID, e.Source, e.Path, e.Excerpt)
	}
	sb.WriteString("\n")

	sb.WriteString("## Root-cause hypotheses\n\n")
	for _, h := range p.RootCauseHypotheses {
		fmt.Fprintf(&sb, "- `%s` (%s) %s [evidence: %s]\n", h.ID, h.Likelihood, h.Statement, strings.Join(h.EvidenceIDs, ", "))
	}
	sb.WriteString("\n")

	sb.WriteString("## Actions\n\n")
	for _, a := range p.Actions {
		fmt.Fprintf(&sb, "%d. %s (risk: %s)\n", a.Priority, a.Title, a.Risk)
	}
	sb.WriteString("\n")

	sb.WriteString("## Verification commands\n\n")
	for _, cmd := range p.VerificationCommands {
		fmt.Fprintf(&sb, "```\n%s\n```\n", cmd)
	}
	sb.WriteString("\n## Done criteria\n\n")
	for _, d := range p.DoneCriteria {
		fmt.Fprintf(&sb, "- %s\n", d)
	}

	if len(p.Unknowns) > 0 {
		sb.WriteString("\n## Unknowns\n\n")
		for _, u := range p.Unknowns {
			fmt.Fprintf(&sb, "- %s\n", u)
		}
	}

	fmt.Fprintf(&sb, "\nConfidence: %.2f\n", p.ConfidenceScore)
	return sb.String()
}
