// Package watch follows the error inbox for newly captured incidents.
// The dashboard polls; this gives a terminal operator the same feed.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/Igasawa/Skills-personal-sub001/internal/config"
	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
	"github.com/Igasawa/Skills-personal-sub001/internal/store"
)

// Notification is one JSON line emitted per new incident directory.
type Notification struct {
	Event      string `json:"event"` // always "incident_created"
	IncidentID string `json:"incident_id"`
	Path       string `json:"path"`
}

// Watch blocks until ctx is cancelled, emitting one JSON line to w per new
// incident directory created under error_inbox.
func Watch(ctx context.Context, env config.Environment, w io.Writer) error {
	inbox := filepath.Join(env.ReportsRoot, store.InboxDirName)
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		return errors.Wrap(errors.EInternal, "failed to create inbox for watching", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to create filesystem watcher", err)
	}
	defer watcher.Close()

	if err := watcher.Add(inbox); err != nil {
		return errors.Wrap(errors.EInternal, "failed to watch "+inbox, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			info, statErr := os.Stat(event.Name)
			if statErr != nil || !info.IsDir() {
				continue
			}
			n := Notification{
				Event:      "incident_created",
				IncidentID: filepath.Base(event.Name),
				Path:       event.Name,
			}
			line, _ := json.Marshal(n)
			fmt.Fprintln(w, string(line))
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(errors.EInternal, "filesystem watcher failed", watchErr)
		}
	}
}
