package hr

import (
	"context"
	"errors"
	"net/http"

	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/audit"
	"github.com/valinor-ai/hrgate/internal/platform/database"
	"github.com/valinor-ai/hrgate/internal/rbac"
)

// Handlers bundles every HR endpoint handler. All of them expect to run
// behind access.Require, which puts the admitted principal in the context.
type Handlers struct {
	Departments *DepartmentHandler
	Users       *UserHandler
	Roles       *RoleHandler
	Profiles    *ProfileHandler
	Documents   *DocumentHandler
	Salaries    *SalaryHandler
	Leave       *LeaveHandler
	Rules       *RuleHandler
	RoleChanges *RoleChangeHandler
}

// NewHandlers builds the HR handlers over pool. reloader may be nil.
func NewHandlers(pool *database.Pool, auditLog audit.Logger, reloader RoleReloader) *Handlers {
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Handlers{
		Departments: NewDepartmentHandler(pool, auditLog),
		Users:       NewUserHandler(pool, auditLog),
		Roles:       NewRoleHandler(pool, auditLog, reloader),
		Profiles:    NewProfileHandler(pool, auditLog),
		Documents:   NewDocumentHandler(pool, auditLog),
		Salaries:    NewSalaryHandler(pool, auditLog),
		Leave:       NewLeaveHandler(pool, auditLog),
		Rules:       NewRuleHandler(pool, auditLog),
		RoleChanges: NewRoleChangeHandler(pool, auditLog, reloader),
	}
}

// statusFor maps domain errors to HTTP status codes. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrDepartmentNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrRoleNotFound),
		errors.Is(err, ErrProfileNotFound),
		errors.Is(err, ErrDocumentNotFound),
		errors.Is(err, ErrGrantNotFound),
		errors.Is(err, ErrSalaryNotFound),
		errors.Is(err, ErrLeaveNotFound),
		errors.Is(err, ErrRuleNotFound),
		errors.Is(err, ErrRoleRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDepartmentNameEmpty),
		errors.Is(err, ErrInvalidReference),
		errors.Is(err, ErrEmailInvalid),
		errors.Is(err, ErrUsernameInvalid),
		errors.Is(err, ErrPositionRequired),
		errors.Is(err, ErrTitleRequired),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrEffectiveDateReq),
		errors.Is(err, ErrInvalidLeave),
		errors.Is(err, ErrRuleNameRequired),
		errors.Is(err, access.ErrMalformedRule),
		errors.Is(err, access.ErrInvalidLevel):
		return http.StatusBadRequest
	case errors.Is(err, ErrDepartmentNameTaken),
		errors.Is(err, ErrUserDuplicate),
		errors.Is(err, ErrProfileExists),
		errors.Is(err, ErrLeaveNotPending),
		errors.Is(err, ErrRoleRequestProcessed),
		errors.Is(err, ErrRoleRequestDuplicate),
		errors.Is(err, ErrRoleAlreadyHeld):
		return http.StatusConflict
	case errors.Is(err, ErrNotDocumentOwner):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeStoreError writes err with its mapped status. Internal failures get
// the fallback message so storage detail never reaches the client.
func writeStoreError(w http.ResponseWriter, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, err.Error())
}

// principal returns the principal admitted by access.Require.
func principal(w http.ResponseWriter, r *http.Request) (access.Principal, bool) {
	p, ok := access.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return access.Principal{}, false
	}
	return p, true
}

// departmentScope decides which department a listing is limited to.
// Admins and non-managers see everything the route admits them to; managers
// see their own department. ok is false when a manager has no department.
func departmentScope(ctx context.Context, q database.Querier, p access.Principal) (dept *int64, scoped, ok bool) {
	if p.Can(rbac.BypassAllPolicy) || !p.HasRole(access.RoleManager) {
		return nil, false, true
	}
	if profile, err := NewProfileStore().GetByUserID(ctx, q, p.ID); err == nil && profile.DepartmentID != nil {
		return profile.DepartmentID, true, true
	}
	if p.DepartmentID != nil {
		return p.DepartmentID, true, true
	}
	return nil, true, false
}

// recordActivity logs a successful mutation as an api-sourced audit event.
func recordActivity(ctx context.Context, log audit.Logger, action string, rt access.ResourceType, id int64, metadata map[string]any) {
	rid := id
	log.Log(ctx, audit.Event{
		UserID:       audit.ActorIDFromContext(ctx),
		Action:       action,
		ResourceType: string(rt),
		ResourceID:   &rid,
		Metadata:     audit.WithClientMetadata(ctx, metadata),
		Source:       audit.SourceAPI,
	})
}
