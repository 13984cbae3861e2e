// Error formatting for remedy CLI output.
package errors

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// PrintOptions controls error output formatting.
type PrintOptions struct {
	// Verbose enables detailed error output with the full details map.
	Verbose bool
}

// Context key whitelist for default (non-verbose) mode, printed in order.
var defaultContextKeys = []string{
	"op",
	"incident_id",
	"run_id",
	"step",
	"status",
	"path",
	"command",
	"branch",
	"scope",
	"exit_code",
	"hint",
}

const maxValueLen = 256

// Format formats an error for display without I/O.
// Pure function: never reads files.
func Format(err error, opts PrintOptions) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	re, ok := AsRemedyError(err)
	if !ok {
		sb.WriteString(err.Error())
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString("error_code: ")
	sb.WriteString(string(re.Code))
	sb.WriteString("\n")
	sb.WriteString(re.Msg)
	sb.WriteString("\n")

	if len(re.Details) > 0 {
		sb.WriteString("\n")
		printed := make(map[string]bool)
		for _, key := range defaultContextKeys {
			if v, ok := re.Details[key]; ok {
				sb.WriteString(fmt.Sprintf("  %s: %s\n", key, truncateValue(v)))
				printed[key] = true
			}
		}
		if opts.Verbose {
			var extra []string
			for key := range re.Details {
				if !printed[key] {
					extra = append(extra, key)
				}
			}
			sort.Strings(extra)
			for _, key := range extra {
				sb.WriteString(fmt.Sprintf("  %s: %s\n", key, truncateValue(re.Details[key])))
			}
		}
	}

	if opts.Verbose && re.Cause != nil {
		sb.WriteString("\ncause: ")
		sb.WriteString(re.Cause.Error())
		sb.WriteString("\n")
	}

	return sb.String()
}

// PrintWithOptions formats and writes the error to w.
func PrintWithOptions(w io.Writer, err error, opts PrintOptions) {
	_, _ = io.WriteString(w, Format(err, opts))
}

func truncateValue(v string) string {
	v = strings.ReplaceAll(v, "\n", " ")
	if len(v) > maxValueLen {
		return v[:maxValueLen-3] + "..."
	}
	return v
}
