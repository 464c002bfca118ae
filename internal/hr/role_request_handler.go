package hr

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/audit"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

// RoleChangeHandler handles the request/approve/reject workflow for roles.
type RoleChangeHandler struct {
	pool     *database.Pool
	store    *RoleRequestStore
	roles    *RoleStore
	auditLog audit.Logger
	reloader RoleReloader
}

func NewRoleChangeHandler(pool *database.Pool, auditLog audit.Logger, reloader RoleReloader) *RoleChangeHandler {
	return &RoleChangeHandler{
		pool:     pool,
		store:    NewRoleRequestStore(),
		roles:    NewRoleStore(),
		auditLog: auditLog,
		reloader: reloader,
	}
}

type roleChangeInput struct {
	Role   string  `json:"role"`
	Reason *string `json:"reason"`
}

// HandleRequest files a request by the caller for another role.
func (h *RoleChangeHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in roleChangeInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.Role = strings.TrimSpace(in.Role)
	if in.Role == "" {
		writeError(w, http.StatusBadRequest, "role is required")
		return
	}

	role, err := h.roles.GetByName(r.Context(), h.pool, in.Role)
	if err != nil {
		writeStoreError(w, err, "fetching role failed")
		return
	}
	held, err := h.roles.ListForUser(r.Context(), h.pool, p.ID)
	if err != nil {
		writeStoreError(w, err, "listing user roles failed")
		return
	}
	if slices.Contains(held, role.Name) {
		writeStoreError(w, ErrRoleAlreadyHeld, "")
		return
	}

	req, err := h.store.Create(r.Context(), h.pool, p.ID, role.ID, in.Reason)
	if err != nil {
		writeStoreError(w, err, "role change request failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionRoleChangeRequested, access.ResourceRoleChangeRequest, req.ID,
		map[string]any{"role": role.Name})
	writeJSON(w, http.StatusCreated, req)
}

// HandleListPending returns every open request.
func (h *RoleChangeHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.store.ListPending(r.Context(), h.pool)
	if err != nil {
		writeStoreError(w, err, "listing role change requests failed")
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// HandleApprove closes the request and assigns the role in one transaction.
func (h *RoleChangeHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req *RoleChangeRequest
	err = database.WithTx(r.Context(), h.pool, func(ctx context.Context, q database.Querier) error {
		var txErr error
		if req, txErr = h.store.Decide(ctx, q, id, p.ID, RoleRequestApproved); txErr != nil {
			return txErr
		}
		return h.roles.AssignToUser(ctx, q, req.UserID, req.RequestedRoleID)
	})
	if err != nil {
		writeStoreError(w, err, "role change approval failed")
		return
	}

	reloadRoles(r.Context(), h.reloader)
	recordActivity(r.Context(), h.auditLog, audit.ActionRoleChangeApproved, access.ResourceRoleChangeRequest, req.ID,
		map[string]any{"user_id": req.UserID, "role": req.RoleName})
	writeJSON(w, http.StatusOK, req)
}

// HandleReject closes the request without changing any roles.
func (h *RoleChangeHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := h.store.Decide(r.Context(), h.pool, id, p.ID, RoleRequestRejected)
	if err != nil {
		writeStoreError(w, err, "role change rejection failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionRoleChangeRejected, access.ResourceRoleChangeRequest, req.ID,
		map[string]any{"user_id": req.UserID, "role": req.RoleName})
	writeJSON(w, http.StatusOK, req)
}
