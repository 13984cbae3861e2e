package plan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Igasawa/Skills-personal-sub001/internal/config"
	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/incident"
	"github.com/Igasawa/Skills-personal-sub001/internal/store"
)

func testSynthesizer(t *testing.T) (*Synthesizer, *store.Store) {
	t.Helper()
	env := config.Environment{ReportsRoot: t.TempDir()}
	syn := NewSynthesizer(env, fs.NewRealFS())
	syn.Now = func() time.Time { return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC) }
	return syn, store.NewStore(syn.FS, env.ReportsRoot, syn.Now)
}

func writeIncidentFixture(t *testing.T, st *store.Store, inc *incident.Incident) {
	t.Helper()
	require.NoError(t, st.WriteIncident(inc))
}

func timeoutIncident(id string) *incident.Incident {
	return &incident.Incident{
		IncidentID:     id,
		Status:         incident.StatusNew,
		CreatedAt:      "2026-01-10T12:00:00Z",
		UpdatedAt:      "2026-01-10T12:00:00Z",
		Step:           "download_invoices",
		FailureClass:   "transient",
		Message:        "connection timed out fetching the invoice export",
		ErrorSignature: "transient | download_invoices | connection timed out fetching the invoice export",
	}
}

func TestGenerateWritesPlanAndAdvancesIncident(t *testing.T) {
	syn, st := testSynthesizer(t)
	writeIncidentFixture(t, st, timeoutIncident("inc-1"))
	require.NoError(t, fs.WriteFileAtomic(syn.FS, st.LogTailPath("inc-1"),
		[]byte("fetching export...\nTimeoutError: connection timed out after 30s\n"), 0o644))

	p, err := syn.Generate("inc-1", false)
	require.NoError(t, err)

	assert.Equal(t, "inc-1", p.IncidentID)
	assert.NotEmpty(t, p.Evidence)
	assert.NotEmpty(t, p.RootCauseHypotheses)
	assert.NotEmpty(t, p.VerificationCommands)
	assert.NotEmpty(t, p.DoneCriteria)
	assert.NotEmpty(t, p.CardSummary)
	assert.True(t, fs.Exists(syn.FS, st.PlanJSONPath("inc-1")))
	assert.True(t, fs.Exists(syn.FS, st.PlanMarkdownPath("inc-1")))

	inc, err := st.ReadIncident("inc-1")
	require.NoError(t, err)
	assert.Equal(t, incident.StatusPlanned, inc.Status)
	assert.Equal(t, st.PlanJSONPath("inc-1"), inc.PlanPath)
}

func TestGenerateMissingIncident(t *testing.T) {
	syn, _ := testSynthesizer(t)

	_, err := syn.Generate("absent", false)
	assert.True(t, errors.Is(err, errors.ENotFound), "got %v", err)
}

func TestGenerateIdempotentUnlessForced(t *testing.T) {
	syn, st := testSynthesizer(t)
	writeIncidentFixture(t, st, timeoutIncident("inc-1"))

	first, err := syn.Generate("inc-1", false)
	require.NoError(t, err)

	// A later clock makes regeneration observable.
	syn.Now = func() time.Time { return time.Date(2026, 1, 11, 9, 0, 0, 0, time.UTC) }

	again, err := syn.Generate("inc-1", false)
	require.NoError(t, err)
	assert.Equal(t, first.GeneratedAt, again.GeneratedAt, "existing plan must be returned as-is")

	forced, err := syn.Generate("inc-1", true)
	require.NoError(t, err)
	assert.NotEqual(t, first.GeneratedAt, forced.GeneratedAt, "force must regenerate")
}

func TestHypothesesCiteExistingEvidence(t *testing.T) {
	syn, st := testSynthesizer(t)
	writeIncidentFixture(t, st, timeoutIncident("inc-1"))
	require.NoError(t, fs.WriteFileAtomic(syn.FS, st.LogTailPath("inc-1"),
		[]byte("TimeoutError: connection refused by vendor host\n"), 0o644))

	p, err := syn.Generate("inc-1", false)
	require.NoError(t, err)

	valid := map[string]bool{}
	for _, e := range p.Evidence {
		valid[e.ID] = true
	}
	for _, h := range p.RootCauseHypotheses {
		require.NotEmpty(t, h.EvidenceIDs, "hypothesis %s cites nothing", h.ID)
		for _, id := range h.EvidenceIDs {
			assert.True(t, valid[id], "hypothesis %s cites unknown evidence %s", h.ID, id)
		}
		assert.Equal(t, h.EvidenceIDs, p.HypothesisEvidenceMap[h.ID])
	}

	// The network rule should have fired on the timeout evidence.
	found := false
	for _, h := range p.RootCauseHypotheses {
		if h.Likelihood == "high" {
			found = true
		}
	}
	assert.True(t, found, "expected a high-likelihood network hypothesis")
}

func TestWeakEvidenceStaysHumble(t *testing.T) {
	syn, st := testSynthesizer(t)
	inc := &incident.Incident{
		IncidentID:     "inc-weak",
		Status:         incident.StatusNew,
		CreatedAt:      "2026-01-10T12:00:00Z",
		UpdatedAt:      "2026-01-10T12:00:00Z",
		Step:           "monthly_run",
		FailureClass:   "unknown_error",
		Message:        "process ended without final status",
		ErrorSignature: "unknown_error | monthly_run | process ended without final status",
	}
	writeIncidentFixture(t, st, inc)

	p, err := syn.Generate("inc-weak", false)
	require.NoError(t, err)

	assert.LessOrEqual(t, p.EvidenceQuality.Score, 0.60,
		"generic restatements of failure must not look like certainty")
	assert.GreaterOrEqual(t, len(p.RootCauseHypotheses), 2,
		"weak evidence gets competing hypotheses, not one confident claim")
	assert.LessOrEqual(t, p.ConfidenceScore, p.EvidenceQuality.Score)
	assert.NotEmpty(t, p.Unknowns)

	// No vetted commands for this class: the placeholder probe plus an
	// unknowns annotation.
	require.Len(t, p.VerificationCommands, 1)
	assert.Contains(t, p.VerificationCommands[0], "manual verification required")
}

func TestContextCommandsWin(t *testing.T) {
	syn, st := testSynthesizer(t)
	writeIncidentFixture(t, st, timeoutIncident("inc-1"))
	ctx := `{"verify_commands":["make check-invoices","make check-totals"]}`
	require.NoError(t, fs.WriteFileAtomic(syn.FS, st.ContextPath("inc-1"), []byte(ctx), 0o644))

	p, err := syn.Generate("inc-1", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"make check-invoices", "make check-totals"}, p.VerificationCommands)
}

func TestGenerateUsesPlaybook(t *testing.T) {
	playbookPath := filepath.Join(t.TempDir(), "playbooks.yaml")
	playbook := `playbooks:
  Transient:
    hypotheses:
      - the vendor API rate-limited the run
    verify_commands:
      - "curl -fsS https://vendor.example/health"
      - "make verify-{step}"
    actions:
      - title: "wait ten minutes and re-run {step}"
        risk: low
    done_criteria:
      - vendor health endpoint returns 200
`
	require.NoError(t, os.WriteFile(playbookPath, []byte(playbook), 0o644))

	env := config.Environment{ReportsRoot: t.TempDir(), PlaybookPath: playbookPath}
	syn := NewSynthesizer(env, fs.NewRealFS())
	syn.Now = func() time.Time { return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC) }
	st := store.NewStore(syn.FS, env.ReportsRoot, syn.Now)
	writeIncidentFixture(t, st, timeoutIncident("inc-1"))

	p, err := syn.Generate("inc-1", false)
	require.NoError(t, err)

	assert.Contains(t, p.VerificationCommands, "make verify-download_invoices",
		"playbook command templates expand {step}")
	assert.Contains(t, p.DoneCriteria, "vendor health endpoint returns 200")

	foundPlaybookHypothesis := false
	for _, h := range p.RootCauseHypotheses {
		if h.Statement == "the vendor API rate-limited the run" {
			foundPlaybookHypothesis = true
		}
	}
	assert.True(t, foundPlaybookHypothesis)

	foundAction := false
	for _, a := range p.Actions {
		if a.Title == "wait ten minutes and re-run download_invoices" {
			foundAction = true
		}
	}
	assert.True(t, foundAction, "playbook action templates expand {step}")
}

func TestRenderMarkdown(t *testing.T) {
	syn, st := testSynthesizer(t)
	writeIncidentFixture(t, st, timeoutIncident("inc-1"))

	p, err := syn.Generate("inc-1", false)
	require.NoError(t, err)

	md := RenderMarkdown(p)
	for _, heading := range []string{
		"# Remediation plan: inc-1",
		"## Evidence",
		"## Root-cause hypotheses",
		"## Actions",
		"## Verification commands",
		"## Done criteria",
	} {
		assert.Contains(t, md, heading)
	}
}
