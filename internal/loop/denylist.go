// Destructive-command denylist. Verification commands are literal strings
// supplied by the plan; a small set of patterns is refused without
// execution and recorded as a blocked failing result.
package loop

import (
	"regexp"
	"strings"
)

var denyPatterns = []*regexp.Regexp{
	// Root or home deletion.
	regexp.MustCompile(`rm\s+(-[a-zA-Z]*\s+)*(/|~)(\s|$)`),
	regexp.MustCompile(`rm\s+-rf?\s+/\S*`),
	// Hard git resets and destructive checkouts.
	regexp.MustCompile(`git\s+reset\s+--hard`),
	regexp.MustCompile(`git\s+checkout\s+(--\s+)?\.`),
	regexp.MustCompile(`git\s+clean\s+-[a-zA-Z]*f`),
	// Filesystem re-creation.
	regexp.MustCompile(`\bmkfs\b`),
	regexp.MustCompile(`\bdd\s+.*of=/dev/`),
}

// BlockReason returns a human-readable reason when command matches the
// destructive denylist, or empty string when the command is allowed.
func BlockReason(command string) string {
	normalized := strings.Join(strings.Fields(command), " ")
	for _, pattern := range denyPatterns {
		if pattern.MatchString(normalized) {
			return "command matches destructive pattern " + pattern.String()
		}
	}
	return ""
}
