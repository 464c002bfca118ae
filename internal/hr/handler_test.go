package hr_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/hr"
)

// These cases are rejected before any store call, so the handlers run
// without a database.

func employeeRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	p := access.Principal{ID: 7, Roles: []string{access.RoleEmployee}, Clearance: access.LevelInternal}
	return req.WithContext(access.WithPrincipal(req.Context(), p))
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestHandlers_RejectBadInput(t *testing.T) {
	h := hr.NewHandlers(nil, nil, nil)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		req     *http.Request
		wantErr string
	}{
		{
			name:    "department without name",
			handler: h.Departments.HandleCreate,
			req:     employeeRequest(http.MethodPost, "/api/v1/departments", `{"name":"  "}`),
			wantErr: hr.ErrDepartmentNameEmpty.Error(),
		},
		{
			name:    "role change without role",
			handler: h.RoleChanges.HandleRequest,
			req:     employeeRequest(http.MethodPost, "/api/v1/role-requests", `{"role":" ","reason":"x"}`),
			wantErr: "role is required",
		},
		{
			name:    "malformed json",
			handler: h.Departments.HandleCreate,
			req:     employeeRequest(http.MethodPost, "/api/v1/departments", `{"name":`),
			wantErr: "invalid request body",
		},
		{
			name:    "user with bad email",
			handler: h.Users.HandleCreate,
			req:     employeeRequest(http.MethodPost, "/api/v1/users", `{"username":"abebe","email":"nope"}`),
		},
		{
			name:    "user with short username",
			handler: h.Users.HandleCreate,
			req:     employeeRequest(http.MethodPost, "/api/v1/users", `{"username":"ab","email":"ab@example.com"}`),
		},
		{
			name:    "profile without user",
			handler: h.Profiles.HandleCreate,
			req:     employeeRequest(http.MethodPost, "/api/v1/profiles", `{"position":"Clerk"}`),
			wantErr: "user_id is required",
		},
		{
			name:    "document without title",
			handler: h.Documents.HandleCreate,
			req:     employeeRequest(http.MethodPost, "/api/v1/documents", `{"title":""}`),
			wantErr: hr.ErrTitleRequired.Error(),
		},
		{
			name:    "document with unknown visibility",
			handler: h.Documents.HandleCreate,
			req:     employeeRequest(http.MethodPost, "/api/v1/documents", `{"title":"Plan","visibility":"SECRET"}`),
		},
		{
			name:    "salary with zero amount",
			handler: h.Salaries.HandleCreate,
			req:     employeeRequest(http.MethodPost, "/api/v1/salaries", `{"employee_id":3,"amount":0,"effective_date":"2024-01-01"}`),
			wantErr: hr.ErrInvalidAmount.Error(),
		},
		{
			name:    "salary without date",
			handler: h.Salaries.HandleCreate,
			req:     employeeRequest(http.MethodPost, "/api/v1/salaries", `{"employee_id":3,"amount":1200}`),
			wantErr: hr.ErrEffectiveDateReq.Error(),
		},
		{
			name:    "leave ending before it starts",
			handler: h.Leave.HandleCreate,
			req:     employeeRequest(http.MethodPost, "/api/v1/leave-requests", `{"start_date":"2024-05-10","end_date":"2024-05-01"}`),
			wantErr: hr.ErrInvalidLeave.Error(),
		},
		{
			name:    "leave list with bad employee filter",
			handler: h.Leave.HandleList,
			req:     employeeRequest(http.MethodGet, "/api/v1/leave-requests?employee_id=x", ""),
			wantErr: "invalid employee_id",
		},
		{
			name:    "rule with inverted hours",
			handler: h.Rules.HandleCreate,
			req:     employeeRequest(http.MethodPost, "/api/v1/rules", `{"name":"viewSalary","conditions":{"startHour":18,"endHour":8}}`),
		},
		{
			name:    "rule without name",
			handler: h.Rules.HandleCreate,
			req:     employeeRequest(http.MethodPost, "/api/v1/rules", `{"conditions":{}}`),
			wantErr: hr.ErrRuleNameRequired.Error(),
		},
		{
			name:    "role assignment without role",
			handler: h.Roles.HandleAssign,
			req:     withPath(employeeRequest(http.MethodPost, "/api/v1/users/4/roles", `{"role":""}`), "id", "4"),
			wantErr: "role is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, tt.req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			msg := errorBody(t, w)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func withPath(req *http.Request, key, value string) *http.Request {
	req.SetPathValue(key, value)
	return req
}

func TestHandlers_InvalidPathID(t *testing.T) {
	h := hr.NewHandlers(nil, nil, nil)

	for _, fn := range []http.HandlerFunc{
		h.Departments.HandleGet,
		h.Users.HandleDelete,
		h.Profiles.HandleUpdate,
		h.Salaries.HandleGet,
		h.Leave.HandleApprove,
		h.Rules.HandleDelete,
		h.RoleChanges.HandleApprove,
		h.RoleChanges.HandleReject,
	} {
		req := withPath(employeeRequest(http.MethodGet, "/x/abc", ""), "id", "abc")
		w := httptest.NewRecorder()
		fn.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid id", errorBody(t, w))
	}
}

func TestHandlers_RequirePrincipal(t *testing.T) {
	h := hr.NewHandlers(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/leave-requests",
		strings.NewReader(`{"start_date":"2024-05-01","end_date":"2024-05-03"}`))
	w := httptest.NewRecorder()
	h.Leave.HandleCreate(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlers_OversizedBody(t *testing.T) {
	h := hr.NewHandlers(nil, nil, nil)

	big := `{"name":"` + strings.Repeat("a", 70<<10) + `"}`
	w := httptest.NewRecorder()
	h.Departments.HandleCreate(w, employeeRequest(http.MethodPost, "/api/v1/departments", big))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
