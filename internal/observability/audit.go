package observability

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const auditEventVersion = 1

type AuditInput struct {
	EventName string
	AccountID string
	Action    string
	Outcome   string
	Reason    string
}

// AuditEvent is one structured audit record. It never carries credentials
// or rendered tokens.
type AuditEvent struct {
	EventVersion int    `json:"event_version"`
	EventName    string `json:"event_name"`
	AccountID    string `json:"account_id"`
	Action       string `json:"action"`
	Outcome      string `json:"outcome"`
	Reason       string `json:"reason"`
	TraceID      string `json:"trace_id"`
	TS           string `json:"ts"`
}

func BuildAuditEvent(ctx context.Context, in AuditInput) AuditEvent {
	ev := AuditEvent{
		EventVersion: auditEventVersion,
		EventName:    in.EventName,
		AccountID:    in.AccountID,
		Action:       in.Action,
		Outcome:      in.Outcome,
		Reason:       in.Reason,
		TS:           time.Now().UTC().Format(time.RFC3339),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		ev.TraceID = sc.TraceID().String()
	}
	if ev.AccountID == "" {
		ev.AccountID = "anonymous"
	}
	if ev.Reason == "" {
		ev.Reason = "none"
	}
	return ev
}

func (e AuditEvent) Validate() error {
	var missing []string
	if e.EventVersion <= 0 {
		missing = append(missing, "event_version")
	}
	if strings.TrimSpace(e.EventName) == "" {
		missing = append(missing, "event_name")
	}
	if strings.TrimSpace(e.Action) == "" {
		missing = append(missing, "action")
	}
	if strings.TrimSpace(e.Outcome) == "" {
		missing = append(missing, "outcome")
	}
	if strings.TrimSpace(e.TS) == "" {
		missing = append(missing, "ts")
	}
	if len(missing) > 0 {
		return errors.New("audit event missing fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// Audit writes ev through logger. Invalid events are still written, flagged
// with audit_invalid so they can be found.
func Audit(ctx context.Context, logger *slog.Logger, in AuditInput) {
	if logger == nil {
		logger = slog.Default()
	}
	ev := BuildAuditEvent(ctx, in)
	attrs := []any{
		"event_version", ev.EventVersion,
		"event_name", ev.EventName,
		"account_id", ev.AccountID,
		"action", ev.Action,
		"outcome", ev.Outcome,
		"reason", ev.Reason,
		"ts", ev.TS,
	}
	if err := ev.Validate(); err != nil {
		attrs = append(attrs, "audit_invalid", err.Error())
	}
	logger.InfoContext(ctx, "audit", attrs...)
}
