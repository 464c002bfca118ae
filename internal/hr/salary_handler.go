package hr

import (
	"net/http"

	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/audit"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

// SalaryHandler handles salary record endpoints.
type SalaryHandler struct {
	db       database.Querier
	store    *SalaryStore
	auditLog audit.Logger
}

func NewSalaryHandler(db database.Querier, auditLog audit.Logger) *SalaryHandler {
	return &SalaryHandler{db: db, store: NewSalaryStore(), auditLog: auditLog}
}

func (h *SalaryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in SalaryInput
	if !decodeBody(w, r, &in) {
		return
	}
	if in.EmployeeID <= 0 {
		writeError(w, http.StatusBadRequest, "employee_id is required")
		return
	}
	if err := in.normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.store.Create(r.Context(), h.db, in)
	if err != nil {
		writeStoreError(w, err, "salary record creation failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionSalaryCreated, access.ResourceSalaryRecord, rec.ID,
		map[string]any{"employee_id": rec.EmployeeID})
	writeJSON(w, http.StatusCreated, rec)
}

func (h *SalaryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.store.GetByID(r.Context(), h.db, id)
	if err != nil {
		writeStoreError(w, err, "fetching salary record failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleList returns salary records. Managers only see their own department.
func (h *SalaryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	dept, _, ok := departmentScope(r.Context(), h.db, p)
	if !ok {
		writeJSON(w, http.StatusOK, []SalaryRecord{})
		return
	}

	records, err := h.store.List(r.Context(), h.db, dept)
	if err != nil {
		writeStoreError(w, err, "listing salary records failed")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *SalaryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in SalaryInput
	if !decodeBody(w, r, &in) {
		return
	}

	rec, err := h.store.Update(r.Context(), h.db, id, in)
	if err != nil {
		writeStoreError(w, err, "salary record update failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionSalaryUpdated, access.ResourceSalaryRecord, rec.ID, nil)
	writeJSON(w, http.StatusOK, rec)
}

func (h *SalaryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Delete(r.Context(), h.db, id); err != nil {
		writeStoreError(w, err, "salary record deletion failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionSalaryDeleted, access.ResourceSalaryRecord, id, nil)
	w.WriteHeader(http.StatusNoContent)
}
