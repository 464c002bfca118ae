package hr

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/rbac"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrDocumentNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", ErrLeaveNotFound), http.StatusNotFound},
		{ErrInvalidReference, http.StatusBadRequest},
		{fmt.Errorf("policy: %w", access.ErrMalformedRule), http.StatusBadRequest},
		{ErrUserDuplicate, http.StatusConflict},
		{ErrLeaveNotPending, http.StatusConflict},
		{ErrNotDocumentOwner, http.StatusForbidden},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestDepartmentScope_WithoutStore(t *testing.T) {
	ctx := context.Background()

	admin := access.Principal{ID: 1, Roles: []string{access.RoleAdmin}, Capabilities: []rbac.Capability{rbac.BypassAllPolicy}}
	dept, scoped, ok := departmentScope(ctx, nil, admin)
	assert.Nil(t, dept)
	assert.False(t, scoped)
	assert.True(t, ok)

	hrUser := access.Principal{ID: 2, Roles: []string{access.RoleHR}}
	_, scoped, ok = departmentScope(ctx, nil, hrUser)
	assert.False(t, scoped)
	assert.True(t, ok)
}

func TestLevelOr(t *testing.T) {
	assert.Equal(t, access.LevelInternal, levelOr(0, access.LevelInternal))
	assert.Equal(t, access.LevelPublic, levelOr(access.LevelPublic, access.LevelInternal))
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "s.id, s.amount::float8", prefixed("s", "id, amount::float8"))
}
