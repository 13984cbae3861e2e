package store

import (
	"os"
	"testing"
	"time"

	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/incident"
)

func fixedNow() time.Time {
	return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
}

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(fs.NewRealFS(), t.TempDir(), fixedNow)
}

func testIncident(id string) *incident.Incident {
	return &incident.Incident{
		IncidentID:     id,
		Status:         incident.StatusNew,
		CreatedAt:      "2026-01-10T12:00:00Z",
		UpdatedAt:      "2026-01-10T12:00:00Z",
		Step:           "download_invoices",
		FailureClass:   "transient",
		Message:        "timed out",
		ErrorSignature: "transient | download_invoices | timed out",
	}
}

func TestWriteAndReadIncident(t *testing.T) {
	st := testStore(t)
	inc := testIncident("inc-1")

	if err := st.WriteIncident(inc); err != nil {
		t.Fatalf("WriteIncident() error = %v", err)
	}

	got, err := st.ReadIncident("inc-1")
	if err != nil {
		t.Fatalf("ReadIncident() error = %v", err)
	}
	if got.Step != "download_invoices" {
		t.Errorf("Step = %q", got.Step)
	}

	marker, err := st.ReadStatusMarker("inc-1")
	if err != nil {
		t.Fatalf("ReadStatusMarker() error = %v", err)
	}
	if marker != incident.StatusNew {
		t.Errorf("marker = %q, want %q", marker, incident.StatusNew)
	}
}

func TestWriteIncidentRejectsInformalStatus(t *testing.T) {
	st := testStore(t)
	inc := testIncident("inc-1")
	inc.Status = incident.StatusApproved

	err := st.WriteIncident(inc)
	if !errors.Is(err, errors.EInvalidStatus) {
		t.Errorf("error code = %q, want E_INVALID_STATUS", errors.GetCode(err))
	}
}

func TestSetStatusKeepsMarkerInLockstep(t *testing.T) {
	st := testStore(t)
	inc := testIncident("inc-1")
	if err := st.WriteIncident(inc); err != nil {
		t.Fatal(err)
	}

	if err := st.SetStatus(inc, incident.StatusPlanned); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	got, err := st.ReadIncident("inc-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != incident.StatusPlanned {
		t.Errorf("record status = %q", got.Status)
	}
	if got.UpdatedAt != "2026-01-10T12:00:00Z" {
		t.Errorf("UpdatedAt = %q", got.UpdatedAt)
	}
	marker, _ := st.ReadStatusMarker("inc-1")
	if marker != incident.StatusPlanned {
		t.Errorf("marker = %q, want %q", marker, incident.StatusPlanned)
	}
}

func TestWriteStatusRawAllowsInformal(t *testing.T) {
	st := testStore(t)
	inc := testIncident("inc-1")
	if err := st.WriteIncident(inc); err != nil {
		t.Fatal(err)
	}

	if err := st.WriteStatusRaw(inc, incident.StatusHandedOff); err != nil {
		t.Fatalf("WriteStatusRaw() error = %v", err)
	}
	marker, _ := st.ReadStatusMarker("inc-1")
	if marker != incident.StatusHandedOff {
		t.Errorf("marker = %q", marker)
	}
}

func TestReadIncidentNotFound(t *testing.T) {
	st := testStore(t)

	_, err := st.ReadIncident("absent")
	if !errors.Is(err, errors.ENotFound) {
		t.Errorf("error code = %q, want E_NOT_FOUND", errors.GetCode(err))
	}
}

func TestReadIncidentCorrupt(t *testing.T) {
	st := testStore(t)
	if err := fs.WriteFileAtomic(st.FS, st.RecordPath("inc-1"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := st.ReadIncident("inc-1")
	if !errors.Is(err, errors.EStoreCorrupt) {
		t.Errorf("error code = %q, want E_STORE_CORRUPT", errors.GetCode(err))
	}
}

// failOnWrite fails the Nth WriteFile call, exposing stage atomicity.
type failOnWrite struct {
	fs.RealFS
	failAt int
	calls  int
}

func (f *failOnWrite) WriteFile(path string, data []byte, perm os.FileMode) error {
	f.calls++
	if f.calls == f.failAt {
		return os.ErrPermission
	}
	return f.RealFS.WriteFile(path, data, perm)
}

func TestStageCommitAllOrNothing(t *testing.T) {
	t.Run("commits every file together", func(t *testing.T) {
		st := testStore(t)
		stage := NewStage(st.FS)
		stage.Add(st.StatusPath("inc-1"), []byte("new\n"))
		stage.Add(st.LogTailPath("inc-1"), []byte("log"))

		if err := stage.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		for _, path := range []string{st.StatusPath("inc-1"), st.LogTailPath("inc-1")} {
			if !fs.Exists(st.FS, path) {
				t.Errorf("missing committed file %s", path)
			}
		}
	})

	t.Run("failed stage leaves nothing visible", func(t *testing.T) {
		root := t.TempDir()
		fsys := &failOnWrite{failAt: 2}
		st := NewStore(fsys, root, fixedNow)

		stage := NewStage(fsys)
		stage.Add(st.StatusPath("inc-1"), []byte("new\n"))
		stage.Add(st.LogTailPath("inc-1"), []byte("log"))

		err := stage.Commit()
		if !errors.Is(err, errors.EPersistFailed) {
			t.Fatalf("error code = %q, want E_PERSIST_FAILED", errors.GetCode(err))
		}

		for _, path := range []string{st.StatusPath("inc-1"), st.LogTailPath("inc-1")} {
			if fs.Exists(fs.NewRealFS(), path) {
				t.Errorf("file %s visible after failed stage", path)
			}
			if fs.Exists(fs.NewRealFS(), path+".tmp") {
				t.Errorf("temp file %s.tmp left behind", path)
			}
		}
	})
}

func TestScanInbox(t *testing.T) {
	st := testStore(t)

	t.Run("missing inbox yields empty list", func(t *testing.T) {
		out, err := st.ScanInbox()
		if err != nil {
			t.Fatalf("ScanInbox() error = %v", err)
		}
		if len(out) != 0 {
			t.Errorf("got %d entries, want 0", len(out))
		}
	})

	if err := st.WriteIncident(testIncident("inc-b")); err != nil {
		t.Fatal(err)
	}
	if err := st.WriteIncident(testIncident("inc-a")); err != nil {
		t.Fatal(err)
	}

	// inc-broken has a record but a disagreeing marker.
	if err := st.WriteIncident(testIncident("inc-broken")); err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteFileAtomic(st.FS, st.StatusPath("inc-broken"), []byte("planned\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := st.ScanInbox()
	if err != nil {
		t.Fatalf("ScanInbox() error = %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d entries, want 3", len(out))
	}

	// Sorted by incident id ascending.
	if out[0].IncidentID != "inc-a" || out[1].IncidentID != "inc-b" || out[2].IncidentID != "inc-broken" {
		t.Errorf("order = %s, %s, %s", out[0].IncidentID, out[1].IncidentID, out[2].IncidentID)
	}
	if out[0].Broken || out[1].Broken {
		t.Error("healthy incidents flagged broken")
	}
	if !out[2].Broken {
		t.Error("marker mismatch not flagged broken")
	}
}

func TestLookupRunLog(t *testing.T) {
	dir := t.TempDir()
	fsys := fs.NewRealFS()

	t.Run("wrapped form", func(t *testing.T) {
		path := dir + "/registry_wrapped.json"
		if err := fs.WriteFileAtomic(fsys, path, []byte(`{"runs":{"run-1":"/logs/run-1.log"}}`), 0o644); err != nil {
			t.Fatal(err)
		}
		if got := LookupRunLog(fsys, path, "run-1"); got != "/logs/run-1.log" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("flat form", func(t *testing.T) {
		path := dir + "/registry_flat.json"
		if err := fs.WriteFileAtomic(fsys, path, []byte(`{"run-2":"/logs/run-2.log"}`), 0o644); err != nil {
			t.Fatal(err)
		}
		if got := LookupRunLog(fsys, path, "run-2"); got != "/logs/run-2.log" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("missing registry or run id yields empty", func(t *testing.T) {
		if got := LookupRunLog(fsys, dir+"/absent.json", "run-1"); got != "" {
			t.Errorf("got %q", got)
		}
		if got := LookupRunLog(fsys, "", "run-1"); got != "" {
			t.Errorf("got %q", got)
		}
	})
}

func TestFindArchivedIncidentDir(t *testing.T) {
	st := testStore(t)

	if got := st.FindArchivedIncidentDir("inc-1"); got != "" {
		t.Errorf("got %q for unarchived incident", got)
	}

	dest := st.ArchivedIncidentDir("resolved", "inc-1")
	if err := st.FS.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if got := st.FindArchivedIncidentDir("inc-1"); got != dest {
		t.Errorf("got %q, want %q", got, dest)
	}
}
