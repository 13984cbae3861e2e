// Evidence extraction and scoring.
//
// Candidates come from three walks: scalar fields of the incident record,
// scalar leaves of the structured context, and line-grouped chunks of the
// log tail (plus trailing audit events). Weak boilerplate is dropped before
// scoring so the same shallow fact restated three ways cannot manufacture
// confidence.
package plan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Igasawa/Skills-personal-sub001/internal/incident"
)

const (
	excerptMax     = 240
	logChunkLines  = 8
	maxLogChunks   = 6
	maxAuditEvents = 5
)

// failureSignalRe matches concrete failure indicators: exception names,
// non-zero return codes, and explicit failure keywords.
var failureSignalRe = regexp.MustCompile(`(?i)(\b[A-Z][A-Za-z]*(Error|Exception)\b|traceback|\berror\b|\bfailed\b|\bfailure\b|\btimeout\b|timed out|\bfatal\b|\bdenied\b|\brefused\b|returncode[^0-9]*[1-9]|exit code[^0-9]*[1-9]|non-zero)`)

// dropMarkers are pure-noise values discarded outright.
var dropMarkers = map[string]bool{
	"":                            true,
	"none":                        true,
	"n/a":                         true,
	"unknown":                     true,
	"no further detail available": true,
}

// genericMarkers are failure signals that carry no command-level detail.
// They are kept as evidence but cannot lift the quality score above the
// weak-evidence cap.
var genericMarkers = []string{
	"process_ended_without_final_status",
	"process ended without final status",
	"process exited unexpectedly",
	"unknown_error",
	"unexpected failure",
}

// candidate is an evidence entry before ids are assigned.
type candidate struct {
	source  string
	path    string
	kind    string
	excerpt string
}

// extractCandidates walks the incident record, context, log tail, and audit
// tail into a filtered candidate list.
func extractCandidates(inc *incident.Incident, ctx map[string]any, logTail, auditTail string) []candidate {
	var out []candidate

	fields := []struct {
		path  string
		value string
	}{
		{"step", inc.Step},
		{"failure_class", inc.FailureClass},
		{"message", inc.Message},
		{"run_id", inc.RunID},
		{"ym", inc.YM},
	}
	seen := map[string]bool{}
	for _, f := range fields {
		norm := normalize(f.value)
		if dropMarkers[norm] || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, candidate{
			source:  SourceIncidentField,
			path:    f.path,
			kind:    f.path,
			excerpt: clip(f.value),
		})
	}

	// The composite error_signature restates failure_class|step|message. It
	// only earns a slot when it carries substance the specific fields above
	// did not already capture.
	if sig := normalize(inc.ErrorSignature); sig != "" && !duplicatesExisting(sig, seen) {
		out = append(out, candidate{
			source:  SourceIncidentField,
			path:    "error_signature",
			kind:    "error_signature",
			excerpt: clip(inc.ErrorSignature),
		})
	}

	for _, leaf := range contextLeaves(ctx, "") {
		norm := normalize(leaf.value)
		if dropMarkers[norm] || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, candidate{
			source:  SourceContextField,
			path:    leaf.path,
			kind:    leaf.path,
			excerpt: clip(leaf.value),
		})
	}

	for _, chunk := range logChunks(logTail) {
		out = append(out, candidate{
			source:  SourceLogTail,
			path:    "log_tail",
			kind:    KindLogContext,
			excerpt: clip(chunk),
		})
	}

	for i, line := range auditEvents(auditTail) {
		out = append(out, candidate{
			source:  SourceAuditTail,
			path:    fmt.Sprintf("audit_tail[%d]", i),
			kind:    "audit_event",
			excerpt: clip(line),
		})
	}

	return out
}

type leaf struct {
	path  string
	value string
}

// contextLeaves flattens the context into dotted-path string leaves. The
// capture sub-record is metadata about the capture itself, not failure
// evidence, and is skipped.
func contextLeaves(value any, prefix string) []leaf {
	var out []leaf
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if prefix == "" && k == "capture" {
				continue
			}
			childPrefix := k
			if prefix != "" {
				childPrefix = prefix + "." + k
			}
			out = append(out, contextLeaves(v[k], childPrefix)...)
		}
	case []any:
		for i, item := range v {
			out = append(out, contextLeaves(item, fmt.Sprintf("%s[%d]", prefix, i))...)
		}
	case string:
		out = append(out, leaf{path: prefix, value: v})
	case bool, float64, json.Number:
		// Non-string scalars are locators without failure text; skip.
	}
	return out
}

// logChunks groups the log tail into line chunks and keeps the ones that
// carry a failure indicator, always including the final chunk.
func logChunks(logTail string) []string {
	text := strings.TrimSpace(logTail)
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	var chunks []string
	for start := 0; start < len(lines); start += logChunkLines {
		end := start + logChunkLines
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, strings.Join(lines[start:end], "\n"))
	}

	var kept []string
	for i, chunk := range chunks {
		if failureSignalRe.MatchString(chunk) || i == len(chunks)-1 {
			kept = append(kept, chunk)
		}
	}
	if len(kept) > maxLogChunks {
		kept = kept[len(kept)-maxLogChunks:]
	}
	return kept
}

// auditEvents returns the trailing audit lines that look like failures.
func auditEvents(auditTail string) []string {
	text := strings.TrimSpace(auditTail)
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	var kept []string
	for _, line := range lines {
		if failureSignalRe.MatchString(line) {
			kept = append(kept, line)
		}
	}
	if len(kept) > maxAuditEvents {
		kept = kept[len(kept)-maxAuditEvents:]
	}
	return kept
}

// assess computes the evidence quality for the surviving entries.
func assess(entries []Evidence) EvidenceQuality {
	q := EvidenceQuality{}
	distinguishing := false
	for _, e := range entries {
		if !isFailureSignal(e.Excerpt) {
			continue
		}
		q.HasFailureSignal = true
		q.StrongSignalCount++
		if !isGeneric(e.Excerpt) {
			distinguishing = true
		}
	}

	score := 0.25 + 0.12*float64(q.StrongSignalCount)
	if score > 0.9 {
		score = 0.9
	}
	if !q.HasFailureSignal {
		if score > 0.3 {
			score = 0.3
		}
	}
	// Without a strong distinguishing signal the score stays below the
	// weak-evidence ceiling: restating the same shallow fact several ways
	// must not look like certainty.
	if !distinguishing && score > 0.55 {
		score = 0.55
	}
	q.Score = score
	return q
}

func isFailureSignal(text string) bool {
	return failureSignalRe.MatchString(text) || isGeneric(text)
}

func isGeneric(text string) bool {
	norm := normalize(text)
	for _, marker := range genericMarkers {
		if strings.Contains(norm, marker) {
			return true
		}
	}
	return false
}

func duplicatesExisting(normalized string, seen map[string]bool) bool {
	for existing := range seen {
		if existing == "" {
			continue
		}
		if strings.Contains(normalized, existing) || strings.Contains(existing, normalized) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > excerptMax {
		return s[:excerptMax-3] + "..."
	}
	return s
}
