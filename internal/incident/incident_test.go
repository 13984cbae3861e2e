package incident

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "inc-1", false},
		{"full charset", "20260110T120000Z-run_42.a", false},
		{"empty", "", true},
		{"slash", "a/b", true},
		{"space", "a b", true},
		{"dotdot allowed by charset", "..", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.EInvalidIdentifier) {
				t.Errorf("error code = %q, want E_INVALID_IDENTIFIER", errors.GetCode(err))
			}
		})
	}
}

func TestNewID(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		runID string
		want  string
	}{
		{"clean run id", "run-42", "20260110T120000Z-run-42"},
		{"sanitized run id", "run 42/a", "20260110T120000Z-run-42-a"},
		{"empty run id", "", "20260110T120000Z-manual"},
		{"only junk", "///", "20260110T120000Z-manual"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewID(now, tt.runID)
			if got != tt.want {
				t.Errorf("NewID() = %q, want %q", got, tt.want)
			}
			if err := ValidateID(got); err != nil {
				t.Errorf("generated id fails validation: %v", err)
			}
		})
	}
}

func TestErrorSignature(t *testing.T) {
	t.Run("normalizes whitespace", func(t *testing.T) {
		got := ErrorSignature("transient", "download  invoices", "timed\nout")
		want := "transient | download invoices | timed out"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("redacts secrets", func(t *testing.T) {
		got := ErrorSignature("auth", "login", "failed with token=abc123")
		if !strings.Contains(got, "token=[REDACTED]") {
			t.Errorf("signature not redacted: %q", got)
		}
	})

	t.Run("caps total length", func(t *testing.T) {
		got := ErrorSignature(strings.Repeat("a", 200), strings.Repeat("b", 200), strings.Repeat("c", 400))
		if len(got) > 300 {
			t.Errorf("signature length = %d, want <= 300", len(got))
		}
	})

	t.Run("stable for identical input", func(t *testing.T) {
		a := ErrorSignature("transient", "step", "msg")
		b := ErrorSignature("transient", "step", "msg")
		if a != b {
			t.Errorf("signatures differ: %q vs %q", a, b)
		}
	})
}

func TestIncidentExtraRoundTrip(t *testing.T) {
	raw := `{
		"incident_id": "inc-1",
		"status": "new",
		"created_at": "2026-01-10T12:00:00Z",
		"updated_at": "2026-01-10T12:00:00Z",
		"step": "download_invoices",
		"failure_class": "transient",
		"message": "m",
		"error_signature": "sig",
		"dashboard_note": "added by the dashboard",
		"custom": {"nested": true}
	}`

	var inc Incident
	if err := json.Unmarshal([]byte(raw), &inc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if inc.IncidentID != "inc-1" {
		t.Errorf("IncidentID = %q", inc.IncidentID)
	}
	if len(inc.Extra) != 2 {
		t.Fatalf("Extra holds %d keys, want 2", len(inc.Extra))
	}

	// Modify a known field, re-encode, and check foreign keys survive.
	inc.Status = StatusPlanned
	out, err := json.Marshal(&inc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("re-decode error = %v", err)
	}
	if string(decoded["dashboard_note"]) != `"added by the dashboard"` {
		t.Errorf("dashboard_note = %s", decoded["dashboard_note"])
	}
	if string(decoded["status"]) != `"planned"` {
		t.Errorf("status = %s", decoded["status"])
	}
	if string(decoded["custom"]) != `{"nested":true}` {
		t.Errorf("custom = %s", decoded["custom"])
	}
}

func TestTouch(t *testing.T) {
	inc := Incident{UpdatedAt: "old"}
	inc.Touch(time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC))
	if inc.UpdatedAt != "2026-02-01T08:30:00Z" {
		t.Errorf("UpdatedAt = %q", inc.UpdatedAt)
	}
}
