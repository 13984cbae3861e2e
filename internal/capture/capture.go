// Package capture creates incident records from failure contexts. It is the
// entry point of the remediation pipeline: the business-process hook calls it
// when a run fails, handing over a run id, a log path, and free-form context.
package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Igasawa/Skills-personal-sub001/internal/config"
	"github.com/Igasawa/Skills-personal-sub001/internal/errors"
	"github.com/Igasawa/Skills-personal-sub001/internal/events"
	"github.com/Igasawa/Skills-personal-sub001/internal/fs"
	"github.com/Igasawa/Skills-personal-sub001/internal/incident"
	"github.com/Igasawa/Skills-personal-sub001/internal/redact"
	"github.com/Igasawa/Skills-personal-sub001/internal/store"
)

// Markers preserved in the context payload when a side input cannot be
// parsed. Capture never fails on malformed context; it keeps the raw text.
const (
	InlineParseErrorKey = "inline_context_parse_error"
	FileParseErrorKey   = "context_file_parse_error"
)

// Service performs incident capture.
type Service struct {
	Env config.Environment
	FS  fs.FS
	Now func() time.Time
}

// NewService creates a capture service.
func NewService(env config.Environment, fsys fs.FS) *Service {
	return &Service{Env: env, FS: fsys, Now: time.Now}
}

// Options are the capture inputs. Zero values mean "not supplied".
type Options struct {
	RunID        string
	IncidentID   string // explicit id; must pass the charset validator
	Step         string
	FailureClass string
	Message      string

	LogPath       string // explicit log path wins over registry lookup
	AuditPath     string // explicit audit path wins over the per-cycle default
	ContextPath   string // file merged into the structured context
	ContextInline string // literal payload; overrides file values per key

	Year  int
	Month int

	Status string // initial status, default "new"
	Force  bool   // replace evidence for an existing incident
}

// Capture resolves identity and evidence, then writes the incident directory
// atomically as one staged mutation.
func (s *Service) Capture(opts Options) (*incident.Incident, error) {
	now := s.Now().UTC()

	id := opts.IncidentID
	if id != "" {
		if err := incident.ValidateID(id); err != nil {
			return nil, err
		}
	} else {
		id = incident.NewID(now, opts.RunID)
	}

	status := opts.Status
	if status == "" {
		status = incident.StatusNew
	}
	if !incident.FormalStatuses[status] {
		return nil, errors.NewWithDetails(
			errors.EInvalidStatus,
			fmt.Sprintf("initial status %q is outside the validated lifecycle vocabulary", status),
			map[string]string{"incident_id": id, "status": status},
		)
	}

	st := store.NewStore(s.FS, s.Env.ReportsRoot, s.Now)

	createdAt := now.Format(incident.TimestampFormat)
	if st.IncidentExists(id) {
		if !opts.Force {
			return nil, errors.NewWithDetails(
				errors.EAlreadyExists,
				fmt.Sprintf("incident %s already exists; use --force to replace its evidence", id),
				map[string]string{"incident_id": id, "path": st.IncidentDir(id)},
			)
		}
		// Force replaces evidence but preserves the original created_at.
		if prior, err := st.ReadIncident(id); err == nil && prior.CreatedAt != "" {
			createdAt = prior.CreatedAt
		}
	}

	ym := opts.YM()
	logPath := opts.LogPath
	if logPath == "" {
		logPath = store.LookupRunLog(s.FS, s.Env.RunRegistryPath, opts.RunID)
	}
	auditPath := opts.AuditPath
	if auditPath == "" {
		auditPath = s.Env.MonthlyAuditPath(ym)
	}

	logTail, err := redact.TailBytes(logPath, s.Env.LogTailMaxBytes)
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to read log tail", err)
	}
	auditTail, err := redact.TailLines(auditPath, s.Env.AuditTailMaxLines)
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to read audit tail", err)
	}

	ctx := s.buildContext(opts, now, logPath, auditPath)

	inc := &incident.Incident{
		IncidentID:     id,
		Status:         status,
		CreatedAt:      createdAt,
		UpdatedAt:      now.Format(incident.TimestampFormat),
		RunID:          opts.RunID,
		Year:           opts.Year,
		Month:          opts.Month,
		YM:             ym,
		Step:           opts.Step,
		FailureClass:   opts.FailureClass,
		Message:        redact.Redact(opts.Message),
		ErrorSignature: incident.ErrorSignature(opts.FailureClass, opts.Step, opts.Message),
	}

	stage := store.NewStage(s.FS)
	if err := stage.AddJSON(st.RecordPath(id), inc); err != nil {
		return nil, err
	}
	stage.Add(st.StatusPath(id), []byte(status+"\n"))
	stage.Add(st.LogTailPath(id), []byte(logTail))
	stage.Add(st.AuditTailPath(id), []byte(auditTail))
	if err := stage.AddJSON(st.ContextPath(id), ctx); err != nil {
		return nil, err
	}
	if err := stage.Commit(); err != nil {
		return nil, err
	}

	_ = events.AppendEvent(st.EventsPath(id), events.Event{
		Timestamp:  now.Format(time.RFC3339),
		IncidentID: id,
		Event:      "captured",
		Data: map[string]any{
			"step":          opts.Step,
			"failure_class": opts.FailureClass,
			"forced":        opts.Force,
		},
	})

	return inc, nil
}

// YM formats the optional year/month scoping as YYYY-MM.
func (o Options) YM() string {
	if o.Year == 0 || o.Month == 0 {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", o.Year, o.Month)
}

// buildContext merges the context file and inline payload, annotates the
// capture sub-record, and redacts every string leaf.
func (s *Service) buildContext(opts Options, now time.Time, logPath, auditPath string) map[string]any {
	ctx := map[string]any{}

	if opts.ContextPath != "" {
		data, err := s.FS.ReadFile(opts.ContextPath)
		switch {
		case err != nil && os.IsNotExist(err):
			// Missing context file is tolerated.
		case err != nil:
			ctx[FileParseErrorKey] = fmt.Sprintf("read %s: %v", opts.ContextPath, err)
		default:
			var fileCtx map[string]any
			if jerr := json.Unmarshal(data, &fileCtx); jerr != nil {
				ctx[FileParseErrorKey] = string(data)
			} else {
				for k, v := range fileCtx {
					ctx[k] = v
				}
			}
		}
	}

	if opts.ContextInline != "" {
		var inline map[string]any
		if err := json.Unmarshal([]byte(opts.ContextInline), &inline); err != nil {
			// Parse failure preserves the raw text instead of failing capture.
			ctx[InlineParseErrorKey] = opts.ContextInline
		} else {
			for k, v := range inline {
				ctx[k] = v
			}
		}
	}

	ctx["capture"] = map[string]any{
		"captured_at":  now.Format(incident.TimestampFormat),
		"log_path":     logPath,
		"audit_path":   auditPath,
		"context_path": opts.ContextPath,
		"inline":       opts.ContextInline != "",
		"forced":       opts.Force,
	}

	redacted, _ := redact.RedactStructured(ctx).(map[string]any)
	if redacted == nil {
		return ctx
	}
	return redacted
}
