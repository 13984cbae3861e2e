// Error signature computation for coarse dedup against re-capture.
package incident

import (
	"strings"

	"github.com/Igasawa/Skills-personal-sub001/internal/redact"
)

const (
	// messageCap bounds the message component before redaction.
	messageCap = 180

	// signatureCap bounds the full composite signature.
	signatureCap = 300
)

// ErrorSignature builds the redacted, truncated composite signature of
// failure_class | step | message. Each component is space-normalized.
func ErrorSignature(failureClass, step, message string) string {
	msg := normalizeSpace(message)
	if len(msg) > messageCap {
		msg = msg[:messageCap]
	}
	composite := strings.Join([]string{
		normalizeSpace(failureClass),
		normalizeSpace(step),
		msg,
	}, " | ")
	composite = redact.Redact(composite)
	if len(composite) > signatureCap {
		composite = composite[:signatureCap]
	}
	return composite
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
