package hr

import (
	"net/http"

	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/audit"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

// UserHandler handles user HTTP endpoints.
type UserHandler struct {
	db       database.Querier
	store    *UserStore
	auditLog audit.Logger
}

func NewUserHandler(db database.Querier, auditLog audit.Logger) *UserHandler {
	return &UserHandler{db: db, store: NewUserStore(), auditLog: auditLog}
}

// HandleCreate creates a user account.
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in UserInput
	if !decodeBody(w, r, &in) {
		return
	}
	if err := in.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.store.Create(r.Context(), h.db, in)
	if err != nil {
		writeStoreError(w, err, "user creation failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionUserCreated, access.ResourceUser, user.ID,
		map[string]any{"username": user.Username})
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.store.GetByID(r.Context(), h.db, id)
	if err != nil {
		writeStoreError(w, err, "fetching user failed")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.List(r.Context(), h.db)
	if err != nil {
		writeStoreError(w, err, "listing users failed")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleUpdate updates a user. Employees reach this route only for their
// own account, and only admins get past the label guard with a new clearance.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in UserInput
	if !decodeBody(w, r, &in) {
		return
	}

	user, err := h.store.Update(r.Context(), h.db, id, in)
	if err != nil {
		writeStoreError(w, err, "user update failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionUserUpdated, access.ResourceUser, user.ID, nil)
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Delete(r.Context(), h.db, id); err != nil {
		writeStoreError(w, err, "user deletion failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionUserDeleted, access.ResourceUser, id, nil)
	w.WriteHeader(http.StatusNoContent)
}
