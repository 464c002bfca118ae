package hr

import (
	"net/http"

	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/audit"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

// DepartmentHandler handles department HTTP endpoints.
type DepartmentHandler struct {
	db       database.Querier
	store    *DepartmentStore
	auditLog audit.Logger
}

func NewDepartmentHandler(db database.Querier, auditLog audit.Logger) *DepartmentHandler {
	return &DepartmentHandler{db: db, store: NewDepartmentStore(), auditLog: auditLog}
}

// HandleCreate creates a department.
func (h *DepartmentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in DepartmentInput
	if !decodeBody(w, r, &in) {
		return
	}
	if err := ValidateDepartmentName(in.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dept, err := h.store.Create(r.Context(), h.db, in)
	if err != nil {
		writeStoreError(w, err, "department creation failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionDepartmentCreated, access.ResourceDepartment, dept.ID,
		map[string]any{"name": dept.Name})
	writeJSON(w, http.StatusCreated, dept)
}

// HandleGet returns a department by ID.
func (h *DepartmentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dept, err := h.store.GetByID(r.Context(), h.db, id)
	if err != nil {
		writeStoreError(w, err, "fetching department failed")
		return
	}
	writeJSON(w, http.StatusOK, dept)
}

// HandleList returns all departments.
func (h *DepartmentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	departments, err := h.store.List(r.Context(), h.db)
	if err != nil {
		writeStoreError(w, err, "listing departments failed")
		return
	}
	writeJSON(w, http.StatusOK, departments)
}

func (h *DepartmentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in DepartmentInput
	if !decodeBody(w, r, &in) {
		return
	}

	dept, err := h.store.Update(r.Context(), h.db, id, in)
	if err != nil {
		writeStoreError(w, err, "department update failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionDepartmentUpdated, access.ResourceDepartment, dept.ID,
		map[string]any{"name": dept.Name})
	writeJSON(w, http.StatusOK, dept)
}

func (h *DepartmentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Delete(r.Context(), h.db, id); err != nil {
		writeStoreError(w, err, "department deletion failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionDepartmentDeleted, access.ResourceDepartment, id, nil)
	w.WriteHeader(http.StatusNoContent)
}
