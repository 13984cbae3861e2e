// Incident identifier validation and synthesis.
package incident

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
)

// validIDRe is the restricted charset for incident ids. Ids become directory
// names, so anything outside letters/digits/./_/- is rejected before I/O.
var validIDRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// invalidIDCharRe matches characters stripped during run-id sanitization.
var invalidIDCharRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ValidateID checks an explicitly supplied incident id against the
// restricted charset.
func ValidateID(id string) error {
	if id == "" || !validIDRe.MatchString(id) {
		return errors.NewWithDetails(
			errors.EInvalidIdentifier,
			fmt.Sprintf("invalid incident id %q: only letters, digits, '.', '_', '-' are allowed", id),
			map[string]string{"incident_id": id},
		)
	}
	return nil
}

// NewID synthesizes an incident id from a UTC timestamp and a sanitized
// run-id suffix. Falls back to "manual" when no run id is supplied.
func NewID(now time.Time, runID string) string {
	suffix := SanitizeRunID(runID)
	return now.UTC().Format("20060102T150405Z") + "-" + suffix
}

// SanitizeRunID maps an arbitrary run id into the restricted charset.
func SanitizeRunID(runID string) string {
	s := invalidIDCharRe.ReplaceAllString(strings.TrimSpace(runID), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "manual"
	}
	return s
}
