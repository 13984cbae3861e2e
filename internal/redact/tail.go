package redact

import (
	"io"
	"os"
	"strings"
)

// TailBytes reads at most maxBytes from the end of the file at path and
// returns the redacted result. A missing file yields an empty string, not an
// error: absence of evidence is tolerated everywhere in the pipeline.
func TailBytes(path string, maxBytes int64) (string, error) {
	if path == "" || maxBytes <= 0 {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.Size() > maxBytes {
		if _, err := f.Seek(-maxBytes, io.SeekEnd); err != nil {
			return "", err
		}
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return Redact(string(data)), nil
}

// TailLines reads the last maxLines lines of the file at path and returns
// the redacted result. A missing file yields an empty string.
func TailLines(path string, maxLines int) (string, error) {
	if path == "" || maxLines <= 0 {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return "", nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return Redact(strings.Join(lines, "\n") + "\n"), nil
}
