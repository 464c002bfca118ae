package hr

import (
	"net/http"
	"strconv"

	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/audit"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

// LeaveHandler handles leave request endpoints.
type LeaveHandler struct {
	db       database.Querier
	store    *LeaveStore
	auditLog audit.Logger
}

func NewLeaveHandler(db database.Querier, auditLog audit.Logger) *LeaveHandler {
	return &LeaveHandler{db: db, store: NewLeaveStore(), auditLog: auditLog}
}

// HandleCreate files a leave request for the caller.
func (h *LeaveHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in LeaveInput
	if !decodeBody(w, r, &in) {
		return
	}
	if err := in.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	leave, err := h.store.Create(r.Context(), h.db, p.ID, in)
	if err != nil {
		writeStoreError(w, err, "leave request creation failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionLeaveRequested, access.ResourceLeaveRequest, leave.ID,
		map[string]any{"start_date": leave.StartDate, "end_date": leave.EndDate})
	writeJSON(w, http.StatusCreated, leave)
}

func (h *LeaveHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	leave, err := h.store.GetByID(r.Context(), h.db, id)
	if err != nil {
		writeStoreError(w, err, "fetching leave request failed")
		return
	}
	writeJSON(w, http.StatusOK, leave)
}

// HandleList returns leave requests, optionally for one employee_id.
func (h *LeaveHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var employeeID *int64
	if raw := r.URL.Query().Get("employee_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid employee_id")
			return
		}
		employeeID = &id
	}

	requests, err := h.store.List(r.Context(), h.db, employeeID)
	if err != nil {
		writeStoreError(w, err, "listing leave requests failed")
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// HandleApprove approves a pending request on behalf of the caller.
func (h *LeaveHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	leave, err := h.store.Approve(r.Context(), h.db, id, p.ID)
	if err != nil {
		writeStoreError(w, err, "leave approval failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionLeaveApproved, access.ResourceLeaveRequest, leave.ID,
		map[string]any{"employee_id": leave.EmployeeID})
	writeJSON(w, http.StatusOK, leave)
}

func (h *LeaveHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Delete(r.Context(), h.db, id); err != nil {
		writeStoreError(w, err, "leave request deletion failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionLeaveDeleted, access.ResourceLeaveRequest, id, nil)
	w.WriteHeader(http.StatusNoContent)
}
