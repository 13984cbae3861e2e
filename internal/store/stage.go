// Staged multi-file writes. One logical mutation (e.g. capture writing the
// status marker, record, and three evidence files) is collected into a Stage
// and committed in one pass: all temp files are written first, then renamed
// into place, so a concurrent reader never observes a half-written stage.
package store

import (
	"os"
	"path/filepath"

	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
)

type stagedFile struct {
	path string
	data []byte
	perm os.FileMode
}

// Stage collects files for one logical mutation.
type Stage struct {
	fsys  fs.FS
	files []stagedFile
}

// NewStage creates an empty stage.
func NewStage(fsys fs.FS) *Stage {
	return &Stage{fsys: fsys}
}

// Add queues raw bytes for path.
func (st *Stage) Add(path string, data []byte) {
	st.files = append(st.files, stagedFile{path: path, data: data, perm: 0o644})
}

// AddJSON queues v encoded as an indented JSON record for path.
func (st *Stage) AddJSON(path string, v any) error {
	data, err := MarshalRecord(v)
	if err != nil {
		return errors.Wrap(errors.EPersistFailed, "failed to encode "+path, err)
	}
	st.Add(path, data)
	return nil
}

// Commit writes every staged file to a temp sibling, then renames all of
// them into place. If any temp write fails, nothing is renamed and the temp
// files are cleaned up.
func (st *Stage) Commit() error {
	// Phase 1: temp writes.
	tmpPaths := make([]string, len(st.files))
	for i, f := range st.files {
		if err := st.fsys.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			st.cleanup(tmpPaths[:i])
			return errors.Wrap(errors.EPersistFailed, "failed to create directory for "+f.path, err)
		}
		tmp := f.path + ".tmp"
		if err := st.fsys.WriteFile(tmp, f.data, f.perm); err != nil {
			st.cleanup(tmpPaths[:i])
			return errors.Wrap(errors.EPersistFailed, "failed to stage "+f.path, err)
		}
		tmpPaths[i] = tmp
	}

	// Phase 2: renames.
	for i, f := range st.files {
		if err := st.fsys.Rename(tmpPaths[i], f.path); err != nil {
			st.cleanup(tmpPaths[i+1:])
			return errors.Wrap(errors.EPersistFailed, "failed to commit "+f.path, err)
		}
	}
	return nil
}

func (st *Stage) cleanup(tmpPaths []string) {
	for _, tmp := range tmpPaths {
		if tmp != "" {
			_ = st.fsys.Remove(tmp)
		}
	}
}
