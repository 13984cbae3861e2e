// Package redact provides secret masking and bounded file tailing for
// incident evidence. All evidence written to an incident directory passes
// through Redact first.
package redact

import (
	"regexp"
)

// Placeholder replaces masked secret values.
const Placeholder = "[REDACTED]"

// EmailPlaceholder replaces email addresses.
const EmailPlaceholder = "[EMAIL]"

// Patterns are applied in fixed order. Each replacement is a fixed point of
// its own pattern, which is what makes Redact idempotent.
var (
	// token=..., api_key=... in query strings and form bodies.
	queryParamRe = regexp.MustCompile(`(?i)((?:token|api[_-]?key|access[_-]?token|refresh[_-]?token|secret|password|session[_-]?id|sig)=)([^&\s"']+)`)

	// Authorization: Bearer <token> headers.
	bearerRe = regexp.MustCompile(`(?i)(authorization:\s*bearer)\s+\S+`)

	// Cookie: header lines, masked wholesale.
	cookieRe = regexp.MustCompile(`(?i)(cookie:)[^\n]*`)

	// Generic key/value secret fields in JSON, YAML, or log lines.
	secretFieldRe = regexp.MustCompile(`(?i)((?:api[_\- ]?key|access[_\- ]?token|refresh[_\- ]?token|session[_\- ]?id|password|secret)"?\s*[:=]\s*"?)([^"\s,}&]+)`)

	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// Redact masks secret-shaped substrings in text. Idempotent: applying Redact
// to already-redacted text is a no-op. Non-matching text is never altered.
func Redact(text string) string {
	if text == "" {
		return text
	}
	out := queryParamRe.ReplaceAllString(text, "${1}"+Placeholder)
	out = bearerRe.ReplaceAllString(out, "${1} "+Placeholder)
	out = cookieRe.ReplaceAllString(out, "${1} "+Placeholder)
	out = secretFieldRe.ReplaceAllString(out, "${1}"+Placeholder)
	out = emailRe.ReplaceAllString(out, EmailPlaceholder)
	return out
}

// RedactStructured applies Redact to every string leaf of a nested
// map/slice value. Non-string leaves are returned untouched.
func RedactStructured(value any) any {
	switch v := value.(type) {
	case string:
		return Redact(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = RedactStructured(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = RedactStructured(item)
		}
		return out
	default:
		return value
	}
}
