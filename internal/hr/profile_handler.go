package hr

import (
	"net/http"

	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/audit"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

// ProfileHandler handles employee profile endpoints.
type ProfileHandler struct {
	db       database.Querier
	store    *ProfileStore
	auditLog audit.Logger
}

func NewProfileHandler(db database.Querier, auditLog audit.Logger) *ProfileHandler {
	return &ProfileHandler{db: db, store: NewProfileStore(), auditLog: auditLog}
}

func (h *ProfileHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in ProfileInput
	if !decodeBody(w, r, &in) {
		return
	}
	if in.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if in.Position == "" {
		writeError(w, http.StatusBadRequest, ErrPositionRequired.Error())
		return
	}

	profile, err := h.store.Create(r.Context(), h.db, in)
	if err != nil {
		writeStoreError(w, err, "profile creation failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionProfileCreated, access.ResourceEmployeeProfile, profile.ID,
		map[string]any{"user_id": profile.UserID})
	writeJSON(w, http.StatusCreated, profile)
}

func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.store.GetByID(r.Context(), h.db, id)
	if err != nil {
		writeStoreError(w, err, "fetching profile failed")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleList returns profiles. Managers only see their own department.
func (h *ProfileHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	dept, _, ok := departmentScope(r.Context(), h.db, p)
	if !ok {
		writeJSON(w, http.StatusOK, []Profile{})
		return
	}

	profiles, err := h.store.List(r.Context(), h.db, dept)
	if err != nil {
		writeStoreError(w, err, "listing profiles failed")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in ProfileInput
	if !decodeBody(w, r, &in) {
		return
	}

	profile, err := h.store.Update(r.Context(), h.db, id, in)
	if err != nil {
		writeStoreError(w, err, "profile update failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionProfileUpdated, access.ResourceEmployeeProfile, profile.ID, nil)
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Delete(r.Context(), h.db, id); err != nil {
		writeStoreError(w, err, "profile deletion failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionProfileDeleted, access.ResourceEmployeeProfile, id, nil)
	w.WriteHeader(http.StatusNoContent)
}
