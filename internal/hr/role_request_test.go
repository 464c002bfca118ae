package hr_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/audit"
	"github.com/valinor-ai/hrgate/internal/hr"
)

type countingReloader struct{ calls atomic.Int32 }

func (c *countingReloader) ReloadRoles(context.Context) error {
	c.calls.Add(1)
	return nil
}

func asPrincipal(req *http.Request, id int64, roles ...string) *http.Request {
	p := access.Principal{ID: id, Roles: roles, Clearance: access.LevelInternal}
	return req.WithContext(access.WithPrincipal(req.Context(), p))
}

func TestRoleRequestStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := hr.NewRoleRequestStore()
	users := hr.NewUserStore()
	roles := hr.NewRoleStore()

	carol, err := users.Create(ctx, pool, hr.UserInput{Username: "carol", Email: "carol@example.com"})
	require.NoError(t, err)
	admin, err := users.Create(ctx, pool, hr.UserInput{Username: "root", Email: "root@example.com"})
	require.NoError(t, err)
	manager, err := roles.GetByName(ctx, pool, access.RoleManager)
	require.NoError(t, err)
	hrRole, err := roles.GetByName(ctx, pool, access.RoleHR)
	require.NoError(t, err)

	reason := "leading the payroll team"
	req, err := store.Create(ctx, pool, carol.ID, manager.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, hr.RoleRequestPending, req.Status)
	assert.Equal(t, "carol", req.Username)
	assert.Equal(t, access.RoleManager, req.RoleName)
	require.NotNil(t, req.Reason)
	assert.Equal(t, reason, *req.Reason)

	_, err = store.Create(ctx, pool, carol.ID, manager.ID, nil)
	assert.ErrorIs(t, err, hr.ErrRoleRequestDuplicate)

	_, err = store.Create(ctx, pool, carol.ID, 9999, nil)
	assert.ErrorIs(t, err, hr.ErrInvalidReference)

	other, err := store.Create(ctx, pool, carol.ID, hrRole.ID, nil)
	require.NoError(t, err)

	pending, err := store.ListPending(ctx, pool)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, req.ID, pending[0].ID, "oldest first")

	rejected, err := store.Decide(ctx, pool, other.ID, admin.ID, hr.RoleRequestRejected)
	require.NoError(t, err)
	assert.Equal(t, hr.RoleRequestRejected, rejected.Status)
	require.NotNil(t, rejected.DecidedBy)
	assert.Equal(t, admin.ID, *rejected.DecidedBy)

	_, err = store.Decide(ctx, pool, other.ID, admin.ID, hr.RoleRequestApproved)
	assert.ErrorIs(t, err, hr.ErrRoleRequestProcessed)

	_, err = store.Decide(ctx, pool, 424242, admin.ID, hr.RoleRequestApproved)
	assert.ErrorIs(t, err, hr.ErrRoleRequestNotFound)

	pending, err = store.ListPending(ctx, pool)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	// A closed request no longer blocks a new one for the same role.
	_, err = store.Create(ctx, pool, carol.ID, hrRole.ID, nil)
	assert.NoError(t, err)
}

func TestRoleChangeHandler_Workflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	users := hr.NewUserStore()
	roles := hr.NewRoleStore()

	dawit, err := users.Create(ctx, pool, hr.UserInput{Username: "dawit", Email: "dawit@example.com"})
	require.NoError(t, err)
	admin, err := users.Create(ctx, pool, hr.UserInput{Username: "admin", Email: "admin@example.com"})
	require.NoError(t, err)
	employee, err := roles.GetByName(ctx, pool, access.RoleEmployee)
	require.NoError(t, err)
	require.NoError(t, roles.AssignToUser(ctx, pool, dawit.ID, employee.ID))

	log := &capturingLogger{}
	reloader := &countingReloader{}
	h := hr.NewRoleChangeHandler(pool, log, reloader)

	request := func(body string) *httptest.ResponseRecorder {
		req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/v1/role-requests", strings.NewReader(body)),
			dawit.ID, access.RoleEmployee)
		w := httptest.NewRecorder()
		h.HandleRequest(w, req)
		return w
	}
	decide := func(fn http.HandlerFunc, id int64) *httptest.ResponseRecorder {
		req := asPrincipal(httptest.NewRequest(http.MethodPost, "/", nil), admin.ID, access.RoleAdmin)
		req.SetPathValue("id", strconv.FormatInt(id, 10))
		w := httptest.NewRecorder()
		fn(w, req)
		return w
	}

	w := request(`{"role":"Employee"}`)
	assert.Equal(t, http.StatusConflict, w.Code, "already held")

	w = request(`{"role":"Overlord"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = request(`{"role":"Manager","reason":"team lead"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created hr.RoleChangeRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, dawit.ID, created.UserID)

	list := httptest.NewRecorder()
	h.HandleListPending(list, httptest.NewRequest(http.MethodGet, "/api/v1/role-requests/pending", nil))
	require.Equal(t, http.StatusOK, list.Code)
	var pending []hr.RoleChangeRequest
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &pending))
	require.Len(t, pending, 1)

	w = decide(h.HandleApprove, created.ID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	names, err := roles.ListForUser(ctx, pool, dawit.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{access.RoleEmployee, access.RoleManager}, names)
	assert.Equal(t, int32(1), reloader.calls.Load(), "approval reloads the registry")

	w = decide(h.HandleReject, created.ID)
	assert.Equal(t, http.StatusConflict, w.Code, "already processed")

	w = request(`{"role":"HR"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	w = decide(h.HandleReject, created.ID)
	require.Equal(t, http.StatusOK, w.Code)
	names, err = roles.ListForUser(ctx, pool, dawit.ID)
	require.NoError(t, err)
	assert.NotContains(t, names, access.RoleHR)
	assert.Equal(t, int32(1), reloader.calls.Load(), "rejection leaves roles alone")

	var actions []string
	for _, e := range log.events {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{
		audit.ActionRoleChangeRequested,
		audit.ActionRoleChangeApproved,
		audit.ActionRoleChangeRequested,
		audit.ActionRoleChangeRejected,
	}, actions)
}
