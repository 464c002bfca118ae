package hr

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/audit"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

// RoleReloader refreshes cached role capabilities. *rbac.Registry implements it.
type RoleReloader interface {
	ReloadRoles(ctx context.Context) error
}

// RoleHandler handles role listing and user role assignment.
type RoleHandler struct {
	db       database.Querier
	store    *RoleStore
	users    *UserStore
	auditLog audit.Logger
	reloader RoleReloader
}

func NewRoleHandler(db database.Querier, auditLog audit.Logger, reloader RoleReloader) *RoleHandler {
	return &RoleHandler{
		db:       db,
		store:    NewRoleStore(),
		users:    NewUserStore(),
		auditLog: auditLog,
		reloader: reloader,
	}
}

// HandleList returns every role with its capabilities.
func (h *RoleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.List(r.Context(), h.db)
	if err != nil {
		writeStoreError(w, err, "listing roles failed")
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

// HandleListForUser returns a user's role names, primary role first.
func (h *RoleHandler) HandleListForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.users.GetByID(r.Context(), h.db, userID); err != nil {
		writeStoreError(w, err, "fetching user failed")
		return
	}

	names, err := h.store.ListForUser(r.Context(), h.db, userID)
	if err != nil {
		writeStoreError(w, err, "listing user roles failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "roles": names})
}

type roleAssignment struct {
	Role string `json:"role"`
}

// HandleAssign gives a user a role by name.
func (h *RoleHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, true)
}

// HandleRemove takes a role away from a user.
func (h *RoleHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, false)
}

func (h *RoleHandler) changeRole(w http.ResponseWriter, r *http.Request, assign bool) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req roleAssignment
	if !decodeBody(w, r, &req) {
		return
	}
	req.Role = strings.TrimSpace(req.Role)
	if req.Role == "" {
		writeError(w, http.StatusBadRequest, "role is required")
		return
	}

	role, err := h.store.GetByName(r.Context(), h.db, req.Role)
	if err != nil {
		writeStoreError(w, err, "fetching role failed")
		return
	}

	action := audit.ActionUserRoleAssigned
	if assign {
		err = h.store.AssignToUser(r.Context(), h.db, userID, role.ID)
	} else {
		action = audit.ActionUserRoleRevoked
		err = h.store.RemoveFromUser(r.Context(), h.db, userID, role.ID)
	}
	if err != nil {
		writeStoreError(w, err, "role change failed")
		return
	}

	reloadRoles(r.Context(), h.reloader)
	recordActivity(r.Context(), h.auditLog, action, access.ResourceRole, role.ID,
		map[string]any{"user_id": userID, "role": role.Name})

	if assign {
		writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "role": role.Name})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reloadRoles refreshes the registry after a role change. A failure keeps
// the cached roles until the next periodic reload.
func reloadRoles(ctx context.Context, reloader RoleReloader) {
	if reloader == nil {
		return
	}
	if err := reloader.ReloadRoles(ctx); err != nil {
		slog.Warn("role registry reload failed", "error", err)
	}
}
