package audit

import (
	"context"

	"github.com/valinor-ai/hrgate/internal/access"
)

// Recorder turns authorization decisions into audit events.
type Recorder struct {
	logger Logger
}

func NewRecorder(logger Logger) *Recorder {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Recorder{logger: logger}
}

// Record implements access.AuditSink.
func (r *Recorder) Record(ctx context.Context, d access.Decision) {
	r.logger.Log(ctx, EventFromDecision(d))
}

// EventFromDecision maps a terminal decision onto an audit event. Internal
// fault detail stays out of the event; only the generic reason is kept.
func EventFromDecision(d access.Decision) Event {
	e := Event{
		Action:       actionForVerdict(d.Verdict),
		ResourceType: string(d.ResourceType),
		Source:       SourceEngine,
		CreatedAt:    d.Timestamp,
		Metadata: map[string]any{
			MetadataRoute:   d.Action,
			MetadataVerdict: string(d.Verdict),
		},
	}
	if d.PrincipalID > 0 {
		uid := d.PrincipalID
		e.UserID = &uid
	}
	if d.ResourceID != nil {
		rid := *d.ResourceID
		e.ResourceID = &rid
	}
	if d.Gate != access.GateNone {
		e.Metadata[MetadataGate] = string(d.Gate)
	}
	if d.Reason != "" {
		e.Metadata[MetadataReason] = d.Reason
	}
	addClient(e.Metadata, d.ClientIP, d.UserAgent)
	return e
}

// addClient records where a request came from. Empty values are left out.
func addClient(m map[string]any, ip, userAgent string) {
	if ip != "" {
		m[MetadataIP] = ip
	}
	if userAgent != "" {
		m[MetadataUserAgent] = userAgent
	}
}

func actionForVerdict(v access.Verdict) string {
	switch v {
	case access.VerdictAllow:
		return ActionAccessAllowed
	case access.VerdictDeny:
		return ActionAccessDenied
	case access.VerdictNotFound:
		return ActionAccessNotFound
	default:
		return ActionAccessError
	}
}
