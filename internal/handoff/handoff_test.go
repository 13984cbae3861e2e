package handoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Igasawa/Skills-personal-sub001/internal/config"
	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/incident"
	"github.com/Igasawa/Skills-personal-sub001/internal/plan"
	"github.com/Igasawa/Skills-personal-sub001/internal/store"
)

func testService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	env := config.Environment{ReportsRoot: t.TempDir()}
	svc := NewService(env, fs.NewRealFS())
	svc.Now = func() time.Time { return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC) }
	return svc, store.NewStore(svc.FS, env.ReportsRoot, svc.Now)
}

func seedApprovedIncident(t *testing.T, st *store.Store, id string, withPlan bool) {
	t.Helper()
	inc := &incident.Incident{
		IncidentID: id, Status: incident.StatusPlanned,
		CreatedAt: "2026-01-10T12:00:00Z", UpdatedAt: "2026-01-10T12:00:00Z",
		Step: "download_invoices", FailureClass: "transient",
		Message: "m", ErrorSignature: "sig",
	}
	require.NoError(t, st.WriteIncident(inc))
	if withPlan {
		require.NoError(t, st.WriteJSON(st.PlanJSONPath(id), &plan.Plan{
			IncidentID:  id,
			CardSummary: "download_invoices failed (transient): m",
			Actions: []plan.Action{
				{ID: "a_01", Title: "re-run the step", Priority: 1, Risk: "low"},
			},
			DoneCriteria: []string{"all verification commands exit zero"},
		}))
		inc.PlanPath = st.PlanJSONPath(id)
	}
	// The dashboard writes the informal approval marker.
	require.NoError(t, st.WriteStatusRaw(inc, incident.StatusApproved))
}

func TestHandoffApprovedIncident(t *testing.T) {
	svc, st := testService(t)
	seedApprovedIncident(t, st, "inc-1", true)

	res, err := svc.Handoff("inc-1")
	require.NoError(t, err)

	assert.Equal(t, "handed_off", res.HandoffStatus)
	assert.Equal(t, st.HandoffJSONPath("inc-1"), res.HandoffJSONPath)
	assert.True(t, fs.Exists(svc.FS, res.HandoffJSONPath))

	var doc map[string]any
	require.NoError(t, st.ReadJSON(res.HandoffJSONPath, &doc))
	assert.Equal(t, "inc-1", doc["incident_id"])
	assert.NotEmpty(t, doc["card_summary"])
	assert.NotEmpty(t, doc["actions"])
	assert.NotEmpty(t, doc["done_criteria"])

	marker, err := st.ReadStatusMarker("inc-1")
	require.NoError(t, err)
	assert.Equal(t, incident.StatusHandedOff, marker)
}

func TestHandoffRequiresApproval(t *testing.T) {
	svc, st := testService(t)
	require.NoError(t, st.WriteIncident(&incident.Incident{
		IncidentID: "inc-1", Status: incident.StatusPlanned,
		CreatedAt: "2026-01-10T12:00:00Z", UpdatedAt: "2026-01-10T12:00:00Z",
		Step: "s", FailureClass: "c", Message: "m", ErrorSignature: "sig",
	}))

	_, err := svc.Handoff("inc-1")
	assert.True(t, errors.Is(err, errors.ENotApproved), "got %v", err)
}

func TestHandoffRequiresPlan(t *testing.T) {
	svc, st := testService(t)
	seedApprovedIncident(t, st, "inc-1", false)

	_, err := svc.Handoff("inc-1")
	assert.True(t, errors.Is(err, errors.ENotFound), "got %v", err)
}

func TestHandoffRequiresCardSummary(t *testing.T) {
	svc, st := testService(t)
	seedApprovedIncident(t, st, "inc-1", true)
	// Blank out the card summary in place.
	require.NoError(t, st.WriteJSON(st.PlanJSONPath("inc-1"), &plan.Plan{IncidentID: "inc-1"}))

	_, err := svc.Handoff("inc-1")
	assert.True(t, errors.Is(err, errors.EPlanInvalid), "got %v", err)
}

func TestHandoffMissingIncident(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.Handoff("absent")
	assert.True(t, errors.Is(err, errors.ENotFound), "got %v", err)
}
