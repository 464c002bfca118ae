package hr

import (
	"context"
	"net/http"

	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/audit"
	"github.com/valinor-ai/hrgate/internal/platform/database"
	"github.com/valinor-ai/hrgate/internal/rbac"
)

// DocumentHandler handles document metadata and sharing endpoints.
type DocumentHandler struct {
	pool     *database.Pool
	store    *DocumentStore
	auditLog audit.Logger
}

func NewDocumentHandler(pool *database.Pool, auditLog audit.Logger) *DocumentHandler {
	return &DocumentHandler{pool: pool, store: NewDocumentStore(), auditLog: auditLog}
}

// HandleCreate stores a document owned by the caller. Ids in shared_with
// get view-only grants in the same transaction.
func (h *DocumentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in DocumentInput
	if !decodeBody(w, r, &in) {
		return
	}
	if _, err := in.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var doc *Document
	err := database.WithTx(r.Context(), h.pool, func(ctx context.Context, q database.Querier) error {
		var createErr error
		doc, createErr = h.store.Create(ctx, q, p.ID, in)
		return createErr
	})
	if err != nil {
		writeStoreError(w, err, "document creation failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionDocumentCreated, access.ResourceDocument, doc.ID,
		map[string]any{"title": doc.Title, "shared_with": len(in.SharedWith)})
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.store.GetByID(r.Context(), h.pool, id)
	if err != nil {
		writeStoreError(w, err, "fetching document failed")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// HandleList returns the documents the caller owns or may view.
func (h *DocumentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	docs, err := h.store.ListAccessible(r.Context(), h.pool, p.ID, p.Can(rbac.BypassAllPolicy))
	if err != nil {
		writeStoreError(w, err, "listing documents failed")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in DocumentInput
	if !decodeBody(w, r, &in) {
		return
	}

	doc, err := h.store.Update(r.Context(), h.pool, id, in)
	if err != nil {
		writeStoreError(w, err, "document update failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionDocumentUpdated, access.ResourceDocument, doc.ID, nil)
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Delete(r.Context(), h.pool, id); err != nil {
		writeStoreError(w, err, "document deletion failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionDocumentDeleted, access.ResourceDocument, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

type grantRequest struct {
	UserID  int64 `json:"user_id"`
	CanView *bool `json:"can_view,omitempty"`
	CanEdit bool  `json:"can_edit"`
}

// HandleGrant adds a permission row for another user. Only the owner may grant.
func (h *DocumentHandler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	doc, p, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}
	var req grantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.UserID == doc.OwnerID {
		writeError(w, http.StatusBadRequest, "the owner already has full access")
		return
	}
	canView := true
	if req.CanView != nil {
		canView = *req.CanView
	}

	g, err := h.store.Grant(r.Context(), h.pool, doc.ID, req.UserID, p.ID, canView, req.CanEdit)
	if err != nil {
		writeStoreError(w, err, "granting permission failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionGrantCreated, access.ResourceDocument, doc.ID,
		map[string]any{"user_id": g.UserID, "can_view": g.CanView, "can_edit": g.CanEdit})
	writeJSON(w, http.StatusCreated, g)
}

// HandleRevoke removes every permission row a user holds on the document.
func (h *DocumentHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	doc, _, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Revoke(r.Context(), h.pool, doc.ID, userID); err != nil {
		writeStoreError(w, err, "revoking permission failed")
		return
	}

	recordActivity(r.Context(), h.auditLog, audit.ActionGrantRevoked, access.ResourceDocument, doc.ID,
		map[string]any{"user_id": userID})
	w.WriteHeader(http.StatusNoContent)
}

// HandleListGrants returns the effective grant per user.
func (h *DocumentHandler) HandleListGrants(w http.ResponseWriter, r *http.Request) {
	doc, _, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}

	grants, err := h.store.ListGrants(r.Context(), h.pool, doc.ID)
	if err != nil {
		writeStoreError(w, err, "listing permissions failed")
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

// ownedDocument loads the {id} document and checks the caller owns it.
// Holders of the bypass capability manage any document.
func (h *DocumentHandler) ownedDocument(w http.ResponseWriter, r *http.Request) (*Document, access.Principal, bool) {
	p, ok := principal(w, r)
	if !ok {
		return nil, p, false
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, p, false
	}

	doc, err := h.store.GetByID(r.Context(), h.pool, id)
	if err != nil {
		writeStoreError(w, err, "fetching document failed")
		return nil, p, false
	}
	if doc.OwnerID != p.ID && !p.Can(rbac.BypassAllPolicy) {
		writeStoreError(w, ErrNotDocumentOwner, "")
		return nil, p, false
	}
	return doc, p, true
}
