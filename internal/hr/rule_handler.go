package hr

import (
	"net/http"

	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/audit"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

// RuleHandler exposes rule policy administration.
type RuleHandler struct {
	db       database.Querier
	store    *RuleStore
	auditLog audit.Logger
}

func NewRuleHandler(db database.Querier, auditLog audit.Logger) *RuleHandler {
	return &RuleHandler{db: db, store: NewRuleStore(), auditLog: auditLog}
}

func (h *RuleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	policies, err := h.store.List(r.Context(), h.db)
	if err != nil {
		writeStoreError(w, err, "listing rule policies failed")
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

// HandleCreate stores a new policy. Conditions that could never be evaluated
// are rejected here rather than at decision time.
func (h *RuleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req access.RulePolicy
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrRuleNameRequired.Error())
		return
	}
	if err := req.Conditions.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	policy, err := h.store.Create(r.Context(), h.db, req)
	if err != nil {
		writeStoreError(w, err, "rule policy creation failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionRuleCreated, access.ResourceRole, policy.ID,
		map[string]any{"name": policy.Name})
	writeJSON(w, http.StatusCreated, policy)
}

func (h *RuleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Delete(r.Context(), h.db, id); err != nil {
		writeStoreError(w, err, "rule policy deletion failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionRuleDeleted, access.ResourceRole, id, nil)
	w.WriteHeader(http.StatusNoContent)
}
