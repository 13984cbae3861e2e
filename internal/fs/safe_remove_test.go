package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSafeRemoveAll(t *testing.T) {
	t.Run("removes directory under prefix", func(t *testing.T) {
		prefix := t.TempDir()
		target := filepath.Join(prefix, "error_archive", "resolved", "inc-1")
		if err := os.MkdirAll(target, 0o755); err != nil {
			t.Fatal(err)
		}

		if err := SafeRemoveAll(target, prefix); err != nil {
			t.Fatalf("SafeRemoveAll() error = %v", err)
		}
		if _, err := os.Stat(target); !os.IsNotExist(err) {
			t.Error("target still exists")
		}
	})

	t.Run("refuses target outside prefix", func(t *testing.T) {
		prefix := t.TempDir()
		outside := t.TempDir()

		err := SafeRemoveAll(outside, prefix)
		var notUnder *ErrNotUnderPrefix
		if !errors.As(err, &notUnder) {
			t.Fatalf("error = %v, want ErrNotUnderPrefix", err)
		}
		if _, statErr := os.Stat(outside); statErr != nil {
			t.Error("outside directory was removed")
		}
	})

	t.Run("refuses prefix itself", func(t *testing.T) {
		prefix := t.TempDir()

		err := SafeRemoveAll(prefix, prefix)
		var notUnder *ErrNotUnderPrefix
		if !errors.As(err, &notUnder) {
			t.Fatalf("error = %v, want ErrNotUnderPrefix", err)
		}
	})

	t.Run("missing target is a no-op", func(t *testing.T) {
		prefix := t.TempDir()
		if err := SafeRemoveAll(filepath.Join(prefix, "absent"), prefix); err != nil {
			t.Errorf("SafeRemoveAll() error = %v", err)
		}
	})
}

func TestIsSubpath(t *testing.T) {
	tests := []struct {
		name   string
		target string
		prefix string
		want   bool
	}{
		{"direct child", "/a/b", "/a", true},
		{"deep child", "/a/b/c/d", "/a", true},
		{"equal", "/a", "/a", false},
		{"sibling with shared name prefix", "/ab", "/a", false},
		{"outside", "/b/c", "/a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSubpath(tt.target, tt.prefix); got != tt.want {
				t.Errorf("IsSubpath(%q, %q) = %v, want %v", tt.target, tt.prefix, got, tt.want)
			}
		})
	}
}
