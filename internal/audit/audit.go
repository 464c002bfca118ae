package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/valinor-ai/hrgate/internal/auth"
	"github.com/valinor-ai/hrgate/internal/platform/middleware"
)

// Event represents a single auditable action in the system.
type Event struct {
	ID           uuid.UUID      `json:"id"`
	UserID       *int64         `json:"user_id"` // nil for system events
	Action       string         `json:"action"`  // e.g. "access.denied", "document.created"
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   *int64         `json:"resource_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Source       string         `json:"source"` // "engine", "api", "system"
	CreatedAt    time.Time      `json:"created_at"`
}

// Authorization outcomes.
const (
	ActionAccessAllowed  = "access.allowed"
	ActionAccessDenied   = "access.denied"
	ActionAccessNotFound = "access.not_found"
	ActionAccessError    = "access.error"
)

const (
	// CRUD actions
	ActionDepartmentCreated = "department.created"
	ActionDepartmentUpdated = "department.updated"
	ActionDepartmentDeleted = "department.deleted"

	ActionUserCreated = "user.created"
	ActionUserUpdated = "user.updated"
	ActionUserDeleted = "user.deleted"

	ActionProfileCreated = "profile.created"
	ActionProfileUpdated = "profile.updated"
	ActionProfileDeleted = "profile.deleted"

	ActionDocumentCreated = "document.created"
	ActionDocumentUpdated = "document.updated"
	ActionDocumentDeleted = "document.deleted"
	ActionGrantCreated    = "document_permission.granted"
	ActionGrantRevoked    = "document_permission.revoked"

	ActionSalaryCreated = "salary.created"
	ActionSalaryUpdated = "salary.updated"
	ActionSalaryDeleted = "salary.deleted"

	ActionLeaveRequested = "leave.requested"
	ActionLeaveApproved  = "leave.approved"
	ActionLeaveDeleted   = "leave.deleted"

	ActionUserRoleAssigned = "user_role.assigned"
	ActionUserRoleRevoked  = "user_role.revoked"

	ActionRoleChangeRequested = "role_change.requested"
	ActionRoleChangeApproved  = "role_change.approved"
	ActionRoleChangeRejected  = "role_change.rejected"

	ActionRuleCreated = "rule.created"
	ActionRuleDeleted = "rule.deleted"
)

const (
	SourceEngine = "engine"
	SourceAPI    = "api"
	SourceSystem = "system"
)

const (
	MetadataRoute   = "route"
	MetadataVerdict = "verdict"
	MetadataGate    = "gate"
	MetadataReason  = "reason"

	MetadataIP        = "ip"
	MetadataUserAgent = "user_agent"
)

// Logger is the audit logging interface. Log is fire-and-forget.
type Logger interface {
	Log(ctx context.Context, event Event)
	Close() error
}

// NopLogger is a no-op audit logger for testing and when audit is disabled.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
func (NopLogger) Close() error               { return nil }

// ActorIDFromContext extracts the authenticated user's id from the request
// context, returning nil if no identity is present.
func ActorIDFromContext(ctx context.Context) *int64 {
	identity := auth.GetIdentity(ctx)
	if identity == nil || identity.UserID <= 0 {
		return nil
	}
	uid := identity.UserID
	return &uid
}

// WithClientMetadata adds the caller's IP and user agent from ctx to m,
// allocating m when it is nil.
func WithClientMetadata(ctx context.Context, m map[string]any) map[string]any {
	if m == nil {
		m = map[string]any{}
	}
	client := middleware.GetClientInfo(ctx)
	addClient(m, client.IP, client.UserAgent)
	return m
}
