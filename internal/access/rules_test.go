package access_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/hrgate/internal/access"
)

func TestDateRange_Days(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 8, d, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, 1, access.DateRange{Start: day(1), End: day(1)}.Days())
	assert.Equal(t, 12, access.DateRange{Start: day(1), End: day(12)}.Days())

	late := time.Date(2024, 8, 1, 23, 30, 0, 0, time.UTC)
	early := time.Date(2024, 8, 2, 0, 15, 0, 0, time.UTC)
	assert.Equal(t, 2, access.DateRange{Start: late, End: early}.Days())
}

func TestConditions_Validate(t *testing.T) {
	assert.NoError(t, access.Conditions{}.Validate())
	assert.NoError(t, access.Conditions{StartHour: ptr(0), EndHour: ptr(24)}.Validate())

	for name, c := range map[string]access.Conditions{
		"start only":    {StartHour: ptr(8)},
		"end only":      {EndHour: ptr(18)},
		"inverted":      {StartHour: ptr(18), EndHour: ptr(8)},
		"empty window":  {StartHour: ptr(9), EndHour: ptr(9)},
		"hour too big":  {StartHour: ptr(8), EndHour: ptr(25)},
		"zero max days": {MaxDays: ptr(0)},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, c.Validate(), access.ErrMalformedRule)
		})
	}
}

func TestCheckRules(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.policies["viewSalary"] = []access.RulePolicy{
		{Name: "viewSalary", Conditions: access.Conditions{StartHour: ptr(8), EndHour: ptr(18)}},
		{Name: "viewSalary", Conditions: access.Conditions{AllowedRoles: []string{"Admin", "Manager"}}},
	}
	store.policies["createUser"] = []access.RulePolicy{
		{Name: "createUser", Conditions: access.Conditions{
			AllowedCountries: []string{"ET"},
			AllowedIPs:       []string{"10.0.0.1"},
			AllowedDevices:   []string{"Mozilla"},
		}},
	}
	store.policies["lockdown"] = []access.RulePolicy{
		{Name: "lockdown", Conditions: access.Conditions{AllowedRoles: []string{}}},
	}

	okClient := access.RequestContext{Hour: 10, PrimaryRole: "Admin", IP: "10.0.0.1", Country: "ET", UserAgent: "Mozilla/5.0"}

	tests := []struct {
		name   string
		action string
		rc     func(access.RequestContext) access.RequestContext
		reason string
	}{
		{"inside window with role", "viewSalary", nil, ""},
		{"at window end", "viewSalary", func(rc access.RequestContext) access.RequestContext { rc.Hour = 18; return rc },
			"outside allowed hours (8-18)"},
		{"at window start", "viewSalary", func(rc access.RequestContext) access.RequestContext { rc.Hour = 8; return rc }, ""},
		{"before window", "viewSalary", func(rc access.RequestContext) access.RequestContext { rc.Hour = 7; return rc },
			"outside allowed hours (8-18)"},
		{"after window", "viewSalary", func(rc access.RequestContext) access.RequestContext { rc.Hour = 20; return rc },
			"outside allowed hours (8-18)"},
		{"second policy fails", "viewSalary", func(rc access.RequestContext) access.RequestContext { rc.PrimaryRole = "Employee"; return rc },
			"role not allowed"},
		{"country", "createUser", func(rc access.RequestContext) access.RequestContext { rc.Country = "Unknown"; return rc },
			"country not allowed"},
		{"ip", "createUser", func(rc access.RequestContext) access.RequestContext { rc.IP = "10.0.0.2"; return rc },
			"IP not allowed"},
		{"device", "createUser", func(rc access.RequestContext) access.RequestContext { rc.UserAgent = "curl/8.0"; return rc },
			"device not allowed"},
		{"empty list matches nothing", "lockdown", nil, "role not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := okClient
			if tt.rc != nil {
				rc = tt.rc(rc)
			}
			res, err := access.CheckRules(ctx, store, tt.action, rc, false)
			require.NoError(t, err)
			if tt.reason == "" {
				assert.True(t, res.Allowed, res.Reason)
				return
			}
			assert.False(t, res.Allowed)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestCheckRules_NoPolicy(t *testing.T) {
	store := newFakeStore()

	res, err := access.CheckRules(context.Background(), store, "viewRoles", access.RequestContext{}, true)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = access.CheckRules(context.Background(), store, "viewRoles", access.RequestContext{}, false)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "no rule policy configured for viewRoles", res.Reason)
}

func TestCheckRules_LeaveLength(t *testing.T) {
	store := newFakeStore()
	store.policies[access.RouteApproveLeave] = []access.RulePolicy{
		{Name: access.RouteApproveLeave, Conditions: access.Conditions{MaxDays: ptr(10), OverrideRoles: []string{"HR"}}},
	}
	start := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	rangeOf := func(days int) *access.DateRange {
		return &access.DateRange{Start: start, End: start.AddDate(0, 0, days-1)}
	}
	ctx := context.Background()

	res, err := access.CheckRules(ctx, store, access.RouteApproveLeave,
		access.RequestContext{PrimaryRole: "Manager", Leave: rangeOf(10)}, false)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "ten days is within the limit")

	res, err = access.CheckRules(ctx, store, access.RouteApproveLeave,
		access.RequestContext{PrimaryRole: "Manager", Leave: rangeOf(11)}, false)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "leave exceeds 10 days", res.Reason)

	res, err = access.CheckRules(ctx, store, access.RouteApproveLeave,
		access.RequestContext{PrimaryRole: "HR", Leave: rangeOf(30)}, false)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "override role")

	_, err = access.CheckRules(ctx, store, access.RouteApproveLeave,
		access.RequestContext{PrimaryRole: "Manager"}, false)
	assert.ErrorIs(t, err, access.ErrMissingLeaveRange)
}

func TestCheckRules_MaxDaysIgnoredElsewhere(t *testing.T) {
	store := newFakeStore()
	store.policies["viewLeaveRequest"] = []access.RulePolicy{
		{Name: "viewLeaveRequest", Conditions: access.Conditions{MaxDays: ptr(1)}},
	}
	res, err := access.CheckRules(context.Background(), store, "viewLeaveRequest", access.RequestContext{}, false)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckRules_Errors(t *testing.T) {
	store := newFakeStore()
	store.policies["broken"] = []access.RulePolicy{
		{Name: "broken", Conditions: access.Conditions{StartHour: ptr(8)}},
	}
	_, err := access.CheckRules(context.Background(), store, "broken", access.RequestContext{}, true)
	assert.ErrorIs(t, err, access.ErrMalformedRule)

	boom := errors.New("db down")
	store.ruleErr = boom
	_, err = access.CheckRules(context.Background(), store, "anything", access.RequestContext{}, true)
	assert.ErrorIs(t, err, boom)
}
