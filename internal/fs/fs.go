// Package fs provides filesystem utilities for remedy.
// All record writes go through atomic temp-file + rename so a concurrent
// reader never observes a partially written file.
package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

// FS is the filesystem interface used by stores and services.
// RealFS is the production implementation; tests may stub it.
type FS interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Stat(path string) (os.FileInfo, error)
	Rename(oldPath, newPath string) error
	ReadDir(path string) ([]os.DirEntry, error)
	Remove(path string) error
}

// RealFS implements FS against the OS filesystem.
type RealFS struct{}

// NewRealFS creates a RealFS.
func NewRealFS() RealFS { return RealFS{} }

func (RealFS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (RealFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (RealFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (RealFS) Stat(path string) (os.FileInfo, error) { return os.Stat(path) }

func (RealFS) Rename(oldPath, newPath string) error { return os.Rename(oldPath, newPath) }

func (RealFS) ReadDir(path string) ([]os.DirEntry, error) { return os.ReadDir(path) }

func (RealFS) Remove(path string) error { return os.Remove(path) }

// WriteFileAtomic writes data to path via a temp file in the same directory
// followed by rename. The parent directory is created if missing.
func WriteFileAtomic(fsys FS, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := fsys.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("rename temp file into %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists (file or directory).
func Exists(fsys FS, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}
