package access

import (
	"context"
	"time"
)

// Verdict is the terminal outcome of one authorization.
type Verdict string

const (
	VerdictAllow    Verdict = "allow"
	VerdictDeny     Verdict = "deny"
	VerdictNotFound Verdict = "not_found"
	VerdictError    Verdict = "error"
)

// Gate identifies the stage that produced a terminal decision.
type Gate string

const (
	GateNone   Gate = ""
	GateRBAC   Gate = "rbac"
	GateMAC    Gate = "mac"
	GateDAC    Gate = "dac"
	GateABAC   Gate = "abac"
	GateRuBAC  Gate = "rubac"
	GateLabel  Gate = "label"
	GateLoader Gate = "loader"
)

// Action is the operation a gate is asked about.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionEdit   Action = "edit"
)

const faultReason = "authorization check failed"

// Decision is the single result of Composer.Authorize.
type Decision struct {
	Verdict      Verdict      `json:"verdict"`
	Gate         Gate         `json:"gate,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	Action       string       `json:"action"`
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   *int64       `json:"resource_id,omitempty"`
	PrincipalID  int64        `json:"principal_id"`
	Timestamp    time.Time    `json:"timestamp"`
	ClientIP     string       `json:"client_ip,omitempty"`
	UserAgent    string       `json:"user_agent,omitempty"`

	// Err holds the internal cause of a VerdictError decision. It is logged
	// but never written to a client.
	Err error `json:"-"`
}

func (d Decision) Allowed() bool {
	return d.Verdict == VerdictAllow
}

// Result is the outcome of a single gate.
type Result struct {
	Allowed bool
	Reason  string
}

func allow() Result {
	return Result{Allowed: true}
}

func deny(reason string) Result {
	return Result{Reason: reason}
}

// AuditSink receives every terminal decision. Record must not block for long;
// its failures never change a decision already made.
type AuditSink interface {
	Record(ctx context.Context, d Decision)
}

// Observer receives timing for every terminal decision.
type Observer interface {
	ObserveDecision(route, verdict, gate string, elapsed time.Duration)
}

type nopSink struct{}

func (nopSink) Record(context.Context, Decision) {}
