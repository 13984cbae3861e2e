// Hypothesis, action, and verification-command generation.
package plan

import (
	"fmt"
	"strings"

	"github.com/Igasawa/Skills-personal-sub001/internal/incident"
)

// causeRule maps an indicator pattern in the evidence to a hypothesis
// template.
type causeRule struct {
	keywords   []string
	statement  string
	likelihood string
}

var causeRules = []causeRule{
	{
		keywords:   []string{"timeout", "timed out", "connection", "network", "dns", "refused", "reset by peer", "503", "502"},
		statement:  "a transient network or vendor-side slowdown interrupted %s before it could finish",
		likelihood: "high",
	},
	{
		keywords:   []string{"auth", "login", "credential", "session expired", "401", "403", "denied", "password", "sign in"},
		statement:  "stored credentials or the vendor session for %s are expired or rejected",
		likelihood: "high",
	},
	{
		keywords:   []string{"selector", "element", "xpath", "no such element", "not found on page", "changed", "parse", "unexpected format", "schema"},
		statement:  "the vendor page or export format consumed by %s changed shape",
		likelihood: "medium",
	},
	{
		keywords:   []string{"no space", "disk", "permission", "read-only", "enoent", "no such file"},
		statement:  "a local environment problem (filesystem or permissions) broke %s",
		likelihood: "medium",
	},
}

// buildHypotheses derives competing root causes. Every hypothesis cites at
// least one evidence id; when evidence is weak the synthesizer refuses to
// commit to a single overconfident claim and emits at least two.
func buildHypotheses(inc *incident.Incident, entries []Evidence, quality EvidenceQuality, pb *Playbook) []Hypothesis {
	allIDs := make([]string, len(entries))
	for i, e := range entries {
		allIDs[i] = e.ID
	}

	var out []Hypothesis
	next := func() string { return fmt.Sprintf("h_%02d", len(out)+1) }

	for _, rule := range causeRules {
		ids := matchingIDs(entries, rule.keywords)
		if len(ids) == 0 {
			continue
		}
		out = append(out, Hypothesis{
			ID:          next(),
			Statement:   fmt.Sprintf(rule.statement, describeStep(inc)),
			Likelihood:  rule.likelihood,
			EvidenceIDs: ids,
		})
	}

	if pb != nil {
		for _, statement := range pb.Hypotheses {
			out = append(out, Hypothesis{
				ID:          next(),
				Statement:   statement,
				Likelihood:  "medium",
				EvidenceIDs: allIDs,
			})
		}
	}

	weak := !quality.HasFailureSignal || quality.Score <= 0.55

	if len(out) == 0 {
		out = append(out, Hypothesis{
			ID:          next(),
			Statement:   fmt.Sprintf("an upstream condition caused %s to abort without reporting a specific error", describeStep(inc)),
			Likelihood:  "medium",
			EvidenceIDs: allIDs,
		})
	}

	// Weak evidence gets competing hypotheses, not one confident claim.
	if weak && len(out) < 2 {
		out = append(out, Hypothesis{
			ID:          next(),
			Statement:   fmt.Sprintf("a transient environment issue (process interrupted, machine sleep, or resource pressure) ended %s early", describeStep(inc)),
			Likelihood:  "low",
			EvidenceIDs: allIDs,
		})
	}

	return out
}

func matchingIDs(entries []Evidence, keywords []string) []string {
	var ids []string
	for _, e := range entries {
		text := strings.ToLower(e.Excerpt)
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				ids = append(ids, e.ID)
				break
			}
		}
	}
	return ids
}

func describeStep(inc *incident.Incident) string {
	if inc.Step != "" {
		return "step " + inc.Step
	}
	return "the run"
}

// buildCommands resolves verification commands: context-supplied commands
// win, then playbook commands for the failure class, then a placeholder
// probe. Returns the list and whether the fallback was used. The loop
// refuses to start with an empty list, so this never returns one.
func buildCommands(ctx map[string]any, pb *Playbook, vars map[string]string) ([]string, bool) {
	for _, key := range []string{"verify_commands", "verification_commands"} {
		if raw, ok := ctx[key]; ok {
			if cmds := stringList(raw); len(cmds) > 0 {
				return cmds, false
			}
		}
	}

	if pb != nil && len(pb.VerifyCommands) > 0 {
		out := make([]string, len(pb.VerifyCommands))
		for i, tmpl := range pb.VerifyCommands {
			out[i] = Expand(tmpl, vars)
		}
		return out, false
	}

	step := vars["step"]
	if step == "" {
		step = "the failing step"
	}
	return []string{fmt.Sprintf("echo 'manual verification required for %s'", step)}, true
}

func stringList(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// buildActions produces the ordered, priority-tagged remediation steps.
func buildActions(inc *incident.Incident, pb *Playbook, vars map[string]string) []Action {
	var out []Action
	add := func(title, risk string) {
		out = append(out, Action{
			ID:       fmt.Sprintf("a_%02d", len(out)+1),
			Title:    title,
			Priority: len(out) + 1,
			Risk:     risk,
		})
	}

	if pb != nil {
		for _, pa := range pb.Actions {
			risk := pa.Risk
			if risk == "" {
				risk = "low"
			}
			add(Expand(pa.Title, vars), risk)
		}
	}

	add("inspect the captured log tail for the first failing command", "low")
	switch classifyForAction(inc) {
	case "transient":
		add(fmt.Sprintf("re-run %s once the transient window has passed", describeStep(inc)), "low")
	case "auth":
		add("refresh the stored vendor credentials and re-establish the session", "medium")
	case "layout":
		add("update the vendor-site selectors or parser to the new page structure", "medium")
	default:
		add(fmt.Sprintf("re-run %s with verbose logging to capture command-level detail", describeStep(inc)), "low")
	}
	add("run the plan's verification commands and confirm they all pass", "low")

	return out
}

func classifyForAction(inc *incident.Incident) string {
	text := strings.ToLower(inc.FailureClass + " " + inc.Message)
	switch {
	case strings.Contains(text, "transient"), strings.Contains(text, "timeout"), strings.Contains(text, "network"):
		return "transient"
	case strings.Contains(text, "auth"), strings.Contains(text, "credential"), strings.Contains(text, "login"):
		return "auth"
	case strings.Contains(text, "selector"), strings.Contains(text, "parse"), strings.Contains(text, "layout"):
		return "layout"
	}
	return ""
}

// buildDoneCriteria lists the conditions under which the incident counts as
// remediated.
func buildDoneCriteria(inc *incident.Incident, pb *Playbook) []string {
	out := []string{
		"all verification commands exit zero",
	}
	if inc.ErrorSignature != "" {
		out = append(out, "the original error signature does not recur on the next run")
	}
	if pb != nil {
		out = append(out, pb.DoneCriteria...)
	}
	return out
}

// buildUnknowns records the evidence gaps the plan could not close.
func buildUnknowns(logTail string, ctx map[string]any, quality EvidenceQuality) []string {
	var out []string
	if strings.TrimSpace(logTail) == "" {
		out = append(out, "log_tail carries no command-level detail")
	}
	meaningful := 0
	for key := range ctx {
		if key != "capture" {
			meaningful++
		}
	}
	if meaningful == 0 {
		out = append(out, "context carries no structured fields beyond capture metadata")
	}
	if quality.HasFailureSignal && quality.Score <= 0.55 {
		out = append(out, "evidence restates that the process failed without command-level specifics; root cause cannot be pinned down from capture alone")
	}
	return out
}
