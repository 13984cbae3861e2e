// Package events provides per-incident event logging for remedy.
// Events are stored in append-only JSONL files under error_runs/<id>/.
package events

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Event represents a single event in events.jsonl.
// This is the public contract for the events file format.
type Event struct {
	Timestamp  string         `json:"timestamp"` // RFC3339
	IncidentID string         `json:"incident_id"`
	Event      string         `json:"event"` // "captured", "plan_generated", "loop_start", "attempt", "loop_end", "archived", "handed_off"
	Data       map[string]any `json:"data,omitempty"`
}

// AppendEvent appends a single event to the events.jsonl file.
// The file is created lazily if it doesn't exist.
//
// Best-effort: errors are returned but callers should typically ignore them
// and continue with the main operation.
func AppendEvent(path string, e Event) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}

// AttemptData returns the data map for an "attempt" event.
func AttemptData(iteration int, passed bool, signature string) map[string]any {
	data := map[string]any{
		"iteration": iteration,
		"passed":    passed,
	}
	if signature != "" {
		data["signature"] = signature
	}
	return data
}

// TransitionData returns the data map for a lifecycle transition event.
func TransitionData(fromStatus, toStatus string) map[string]any {
	return map[string]any{
		"from": fromStatus,
		"to":   toStatus,
	}
}
