// Plan synthesis service.
package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/Igasawa/Skills-personal-sub001/internal/config"
	"github.com/Igasawa/Skills-personal-sub001/internal/events"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/incident"
	"github.com/Igasawa/Skills-personal-sub001/internal/store"
)

// Synthesizer generates plans from incident evidence.
type Synthesizer struct {
	Env config.Environment
	FS  fs.FS
	Now func() time.Time
}

// NewSynthesizer creates a plan synthesizer.
func NewSynthesizer(env config.Environment, fsys fs.FS) *Synthesizer {
	return &Synthesizer{Env: env, FS: fsys, Now: time.Now}
}

// Generate loads the incident and its evidence, synthesizes the plan, and
// advances the incident to "planned". Idempotent unless force: an existing
// plan is returned as-is, while force overwrites it.
func (s *Synthesizer) Generate(incidentID string, force bool) (*Plan, error) {
	st := store.NewStore(s.FS, s.Env.ReportsRoot, s.Now)

	inc, err := st.ReadIncident(incidentID)
	if err != nil {
		return nil, err
	}

	planPath := st.PlanJSONPath(incidentID)
	if !force && fs.Exists(s.FS, planPath) {
		var existing Plan
		if err := st.ReadJSON(planPath, &existing); err == nil {
			return &existing, nil
		}
		// Unreadable prior plan: fall through and regenerate.
	}

	// Unreadable evidence files are treated as empty, not fatal.
	logTail := readTextOrEmpty(s.FS, st.LogTailPath(incidentID))
	auditTail := readTextOrEmpty(s.FS, st.AuditTailPath(incidentID))
	ctx := readContextOrEmpty(st, st.ContextPath(incidentID))

	playbooks, err := LoadPlaybooks(s.Env.PlaybookPath)
	if err != nil {
		return nil, err
	}

	p := s.synthesize(inc, ctx, logTail, auditTail, playbooks.ForClass(inc.FailureClass))

	stage := store.NewStage(s.FS)
	if err := stage.AddJSON(planPath, p); err != nil {
		return nil, err
	}
	stage.Add(st.PlanMarkdownPath(incidentID), []byte(RenderMarkdown(p)))
	if err := stage.Commit(); err != nil {
		return nil, err
	}

	inc.PlanPath = planPath
	if err := st.SetStatus(inc, incident.StatusPlanned); err != nil {
		return nil, err
	}

	_ = events.AppendEvent(st.EventsPath(incidentID), events.Event{
		Timestamp:  s.Now().UTC().Format(time.RFC3339),
		IncidentID: incidentID,
		Event:      "plan_generated",
		Data: map[string]any{
			"evidence_count":   len(p.Evidence),
			"hypothesis_count": len(p.RootCauseHypotheses),
			"confidence":       p.ConfidenceScore,
			"forced":           force,
		},
	})

	return p, nil
}

func (s *Synthesizer) synthesize(inc *incident.Incident, ctx map[string]any, logTail, auditTail string, pb *Playbook) *Plan {
	now := s.Now().UTC()

	candidates := extractCandidates(inc, ctx, logTail, auditTail)
	if len(candidates) == 0 {
		// Guarantee at least one entry so every hypothesis can cite
		// something real.
		fallbackText := inc.ErrorSignature
		if strings.TrimSpace(fallbackText) == "" {
			fallbackText = inc.Step
		}
		candidates = []candidate{{
			source:  SourceIncidentField,
			path:    "error_signature",
			kind:    "error_signature",
			excerpt: clip(fallbackText),
		}}
	}

	entries := make([]Evidence, len(candidates))
	for i, c := range candidates {
		entries[i] = Evidence{
			ID:      fmt.Sprintf("ev_%02d", i+1),
			Source:  c.source,
			Path:    c.path,
			Kind:    c.kind,
			Excerpt: c.excerpt,
		}
	}

	quality := assess(entries)
	hypotheses := buildHypotheses(inc, entries, quality, pb)
	unknowns := buildUnknowns(logTail, ctx, quality)

	vars := map[string]string{
		"incident_id": inc.IncidentID,
		"run_id":      inc.RunID,
		"step":        inc.Step,
		"ym":          inc.YM,
		"log_path":    "",
	}
	commands, usedFallback := buildCommands(ctx, pb, vars)
	if usedFallback {
		unknowns = append(unknowns, "no vetted verification commands for this failure class; the plan carries a placeholder probe that should be replaced before executing")
	}

	actions := buildActions(inc, pb, vars)
	done := buildDoneCriteria(inc, pb)

	hypMap := make(map[string][]string, len(hypotheses))
	causes := make([]string, 0, len(hypotheses))
	for _, h := range hypotheses {
		hypMap[h.ID] = h.EvidenceIDs
		causes = append(causes, fmt.Sprintf("%s (likelihood %s, evidence %s)", h.Statement, h.Likelihood, strings.Join(h.EvidenceIDs, ", ")))
	}

	confidence := 0.2 + 0.1*float64(quality.StrongSignalCount)
	if confidence > 0.85 {
		confidence = 0.85
	}
	if confidence > quality.Score {
		confidence = quality.Score
	}

	top := hypotheses[0].Statement
	card := fmt.Sprintf("%s failed (%s): %s; likely: %s", inc.Step, inc.FailureClass, clipTo(inc.Message, 100), clipTo(top, 120))

	return &Plan{
		IncidentID:  inc.IncidentID,
		GeneratedAt: now.Format(incident.TimestampFormat),
		Summary: fmt.Sprintf("Step %s failed with class %s; %d evidence signal(s), %d hypothesis(es), evidence quality %.2f.",
			inc.Step, inc.FailureClass, len(entries), len(hypotheses), quality.Score),
		Evidence:              entries,
		EvidenceQuality:       quality,
		RootCauseHypotheses:   hypotheses,
		HypothesisEvidenceMap: hypMap,
		CauseAnalysis:         causes,
		Actions:               actions,
		VerificationCommands:  commands,
		DoneCriteria:          done,
		ConfidenceScore:       confidence,
		Unknowns:              unknowns,
		CardSummary:           card,
	}
}

func readTextOrEmpty(fsys fs.FS, path string) string {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func readContextOrEmpty(st *store.Store, path string) map[string]any {
	var ctx map[string]any
	if err := st.ReadJSON(path, &ctx); err != nil {
		return map[string]any{}
	}
	return ctx
}

func clipTo(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
