// Run registry lookup. The upstream pipeline maintains run_registry.json
// mapping run_id -> execution log path; capture consults it when no explicit
// log path is supplied.
package store

import (
	"encoding/json"

	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
)

// runRegistry is the on-disk shape of run_registry.json. Both the flat map
// form and the wrapped {"runs": {...}} form are accepted.
type runRegistry struct {
	Runs map[string]string `json:"runs"`
}

// LookupRunLog resolves the log path for a run id from the registry at
// registryPath. A missing registry or unknown run id yields an empty string:
// absent evidence is tolerated, not an error.
func LookupRunLog(fsys fs.FS, registryPath, runID string) string {
	if registryPath == "" || runID == "" {
		return ""
	}
	data, err := fsys.ReadFile(registryPath)
	if err != nil {
		return ""
	}

	var wrapped runRegistry
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Runs) > 0 {
		return wrapped.Runs[runID]
	}

	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err == nil {
		return flat[runID]
	}
	return ""
}
