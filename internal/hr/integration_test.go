package hr_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/hr"
	"github.com/valinor-ai/hrgate/internal/platform/database"
	"github.com/valinor-ai/hrgate/internal/rbac"
)

func setupTestDB(t *testing.T) (*database.Pool, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("hrgate_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
		),
	)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.RunMigrations(connStr, "file://../../migrations"))

	pool, err := database.Connect(ctx, connStr, 5)
	require.NoError(t, err)

	return pool, func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
}

func ptr[T any](v T) *T { return &v }

func mustDate(t *testing.T, s string) hr.Date {
	t.Helper()
	d, err := hr.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestStores(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	departments := hr.NewDepartmentStore()
	users := hr.NewUserStore()
	roles := hr.NewRoleStore()
	profiles := hr.NewProfileStore()
	documents := hr.NewDocumentStore()
	salaries := hr.NewSalaryStore()
	leave := hr.NewLeaveStore()
	engine := hr.NewAccessStore(pool)

	alice, err := users.Create(ctx, pool, hr.UserInput{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, access.LevelPublic, alice.SensitivityLevel)

	bob, err := users.Create(ctx, pool, hr.UserInput{Username: "bob", Email: "bob@example.com", SensitivityLevel: access.LevelInternal})
	require.NoError(t, err)

	finance, err := departments.Create(ctx, pool, hr.DepartmentInput{Name: "Finance"})
	require.NoError(t, err)
	assert.Equal(t, access.LevelInternal, finance.SensitivityLevel)

	t.Run("Department", func(t *testing.T) {
		payroll, err := departments.Create(ctx, pool, hr.DepartmentInput{Name: "Payroll", ParentID: &finance.ID})
		require.NoError(t, err)
		assert.Equal(t, &finance.ID, payroll.ParentID)

		_, err = departments.Create(ctx, pool, hr.DepartmentInput{Name: "Finance"})
		assert.ErrorIs(t, err, hr.ErrDepartmentNameTaken)

		_, err = departments.Create(ctx, pool, hr.DepartmentInput{Name: "Orphan", ParentID: ptr(int64(9999))})
		assert.ErrorIs(t, err, hr.ErrInvalidReference)

		updated, err := departments.Update(ctx, pool, payroll.ID, hr.DepartmentInput{Name: "Payroll Ops", ParentID: &finance.ID})
		require.NoError(t, err)
		assert.Equal(t, "Payroll Ops", updated.Name)
		assert.Equal(t, access.LevelInternal, updated.SensitivityLevel, "unset level is preserved")

		require.NoError(t, departments.Delete(ctx, pool, payroll.ID))
		_, err = departments.GetByID(ctx, pool, payroll.ID)
		assert.ErrorIs(t, err, hr.ErrDepartmentNotFound)
	})

	t.Run("User", func(t *testing.T) {
		_, err := users.Create(ctx, pool, hr.UserInput{Username: "alice", Email: "other@example.com"})
		assert.ErrorIs(t, err, hr.ErrUserDuplicate)

		got, err := users.GetByID(ctx, pool, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, "bob@example.com", got.Email)

		_, err = users.GetByID(ctx, pool, 424242)
		assert.ErrorIs(t, err, hr.ErrUserNotFound)
	})

	t.Run("Roles", func(t *testing.T) {
		employee, err := roles.GetByName(ctx, pool, access.RoleEmployee)
		require.NoError(t, err)
		manager, err := roles.GetByName(ctx, pool, access.RoleManager)
		require.NoError(t, err)

		require.NoError(t, roles.AssignToUser(ctx, pool, bob.ID, employee.ID))
		require.NoError(t, roles.AssignToUser(ctx, pool, bob.ID, employee.ID), "assigning twice is a no-op")
		require.NoError(t, roles.AssignToUser(ctx, pool, bob.ID, manager.ID))

		names, err := roles.ListForUser(ctx, pool, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{access.RoleEmployee, access.RoleManager}, names)

		require.NoError(t, roles.RemoveFromUser(ctx, pool, bob.ID, manager.ID))
		assert.ErrorIs(t, roles.RemoveFromUser(ctx, pool, bob.ID, manager.ID), hr.ErrRoleNotFound)

		reg := rbac.NewRegistry(rbac.WithRoleLoader(hr.NewRoleLoader(pool)))
		require.NoError(t, reg.ReloadRoles(ctx))
		assert.Equal(t, []rbac.Capability{rbac.BypassAllPolicy}, reg.Capabilities([]string{access.RoleAdmin}))
		assert.ElementsMatch(t, []string{"Admin", "Manager", "Employee", "HR"}, reg.Roles())
	})

	var bobProfile *hr.Profile
	t.Run("Profile", func(t *testing.T) {
		var err error
		bobProfile, err = profiles.Create(ctx, pool, hr.ProfileInput{
			UserID:           bob.ID,
			DepartmentID:     &finance.ID,
			Position:         "Accountant",
			SensitivityLevel: access.LevelConfidential,
		})
		require.NoError(t, err)

		_, err = profiles.Create(ctx, pool, hr.ProfileInput{UserID: bob.ID, Position: "Twice"})
		assert.ErrorIs(t, err, hr.ErrProfileExists)

		byUser, err := profiles.GetByUserID(ctx, pool, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, bobProfile.ID, byUser.ID)

		inFinance, err := profiles.List(ctx, pool, &finance.ID)
		require.NoError(t, err)
		assert.Len(t, inFinance, 1)

		all, err := profiles.List(ctx, pool, nil)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Documents", func(t *testing.T) {
		var doc *hr.Document
		err := database.WithTx(ctx, pool, func(ctx context.Context, q database.Querier) error {
			var createErr error
			doc, createErr = documents.Create(ctx, q, alice.ID, hr.DocumentInput{
				Title:      "Budget",
				SharedWith: []int64{bob.ID, alice.ID},
			})
			return createErr
		})
		require.NoError(t, err)
		assert.Equal(t, access.VisibilityPrivate, doc.Visibility)

		g, err := engine.FindGrant(ctx, doc.ID, bob.ID)
		require.NoError(t, err)
		require.NotNil(t, g)
		assert.True(t, g.CanView)
		assert.False(t, g.CanEdit)

		none, err := engine.FindGrant(ctx, doc.ID, alice.ID)
		require.NoError(t, err)
		assert.Nil(t, none, "the owner never gets a grant row")

		_, err = documents.Grant(ctx, pool, doc.ID, bob.ID, alice.ID, false, true)
		require.NoError(t, err)
		latest, err := engine.FindGrant(ctx, doc.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, latest.CanView, "the newest row wins")
		assert.True(t, latest.CanEdit)

		grants, err := documents.ListGrants(ctx, pool, doc.ID)
		require.NoError(t, err)
		require.Len(t, grants, 1)
		assert.Equal(t, latest.ID, grants[0].ID)

		bobDocs, err := documents.ListAccessible(ctx, pool, bob.ID, false)
		require.NoError(t, err)
		assert.Empty(t, bobDocs, "view revoked by the newer grant")

		require.NoError(t, documents.Revoke(ctx, pool, doc.ID, bob.ID))
		assert.ErrorIs(t, documents.Revoke(ctx, pool, doc.ID, bob.ID), hr.ErrGrantNotFound)

		aliceDocs, err := documents.ListAccessible(ctx, pool, alice.ID, false)
		require.NoError(t, err)
		require.Len(t, aliceDocs, 1)

		attrs, err := engine.Load(ctx, access.ResourceDocument, doc.ID)
		require.NoError(t, err)
		d, ok := attrs.(access.Document)
		require.True(t, ok)
		assert.Equal(t, alice.ID, *d.OwnerID)
		assert.Equal(t, access.LevelInternal, d.Label)
	})

	t.Run("Documents_BadGranteeRollsBack", func(t *testing.T) {
		err := database.WithTx(ctx, pool, func(ctx context.Context, q database.Querier) error {
			_, createErr := documents.Create(ctx, q, alice.ID, hr.DocumentInput{
				Title:      "Ghost",
				SharedWith: []int64{777777},
			})
			return createErr
		})
		assert.ErrorIs(t, err, hr.ErrInvalidReference)

		docs, err := documents.ListAccessible(ctx, pool, 0, true)
		require.NoError(t, err)
		for _, d := range docs {
			assert.NotEqual(t, "Ghost", d.Title)
		}
	})

	t.Run("SalaryAttributes", func(t *testing.T) {
		rec, err := salaries.Create(ctx, pool, hr.SalaryInput{
			EmployeeID:    bob.ID,
			Amount:        15000.50,
			EffectiveDate: mustDate(t, "2024-07-01"),
		})
		require.NoError(t, err)
		assert.Equal(t, "ETB", rec.Currency)
		assert.Equal(t, access.LevelConfidential, rec.SensitivityLevel)
		assert.InDelta(t, 15000.50, rec.Amount, 0.001)
		assert.Equal(t, "2024-07-01", rec.EffectiveDate.Format("2006-01-02"))

		attrs, err := engine.Load(ctx, access.ResourceSalaryRecord, rec.ID)
		require.NoError(t, err)
		common := access.AttributesOf(attrs)
		assert.Equal(t, bob.ID, *common.OwnerID)
		require.NotNil(t, common.DepartmentID, "department comes from the owner's profile")
		assert.Equal(t, finance.ID, *common.DepartmentID)

		scoped, err := salaries.List(ctx, pool, &finance.ID)
		require.NoError(t, err)
		assert.Len(t, scoped, 1)
		other, err := salaries.List(ctx, pool, ptr(int64(9999)))
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("LeaveLifecycle", func(t *testing.T) {
		req, err := leave.Create(ctx, pool, bob.ID, hr.LeaveInput{
			StartDate: mustDate(t, "2024-08-01"),
			EndDate:   mustDate(t, "2024-08-12"),
		})
		require.NoError(t, err)
		assert.Equal(t, hr.LeavePending, req.Status)

		attrs, err := engine.Load(ctx, access.ResourceLeaveRequest, req.ID)
		require.NoError(t, err)
		l, ok := attrs.(access.LeaveRequest)
		require.True(t, ok)
		assert.Equal(t, 12, access.DateRange{Start: l.StartDate, End: l.EndDate}.Days())
		assert.Equal(t, finance.ID, *l.DepartmentID)

		approved, err := leave.Approve(ctx, pool, req.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, hr.LeaveApproved, approved.Status)
		assert.Equal(t, &alice.ID, approved.ApprovedBy)

		_, err = leave.Approve(ctx, pool, req.ID, alice.ID)
		assert.ErrorIs(t, err, hr.ErrLeaveNotPending)
		_, err = leave.Approve(ctx, pool, 999999, alice.ID)
		assert.ErrorIs(t, err, hr.ErrLeaveNotFound)

		mine, err := leave.List(ctx, pool, &bob.ID)
		require.NoError(t, err)
		assert.Len(t, mine, 1)
	})

	t.Run("UserAndDepartmentAttributes", func(t *testing.T) {
		attrs, err := engine.Load(ctx, access.ResourceUser, bob.ID)
		require.NoError(t, err)
		u := attrs.(access.User)
		assert.Equal(t, bob.ID, *u.OwnerID)
		assert.Equal(t, access.LevelInternal, u.Clearance)
		assert.Equal(t, finance.ID, *u.DepartmentID)

		attrs, err = engine.Load(ctx, access.ResourceDepartment, finance.ID)
		require.NoError(t, err)
		dept := attrs.(access.Department)
		assert.Equal(t, finance.ID, *dept.DepartmentID)
		assert.Nil(t, dept.OwnerID)

		dept2, err := engine.ProfileDepartment(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, &finance.ID, dept2)

		noProfile, err := engine.ProfileDepartment(ctx, alice.ID)
		require.NoError(t, err)
		assert.Nil(t, noProfile)

		_, err = engine.Load(ctx, access.ResourceEmployeeProfile, 31337)
		assert.ErrorIs(t, err, access.ErrNotFound)
	})

	t.Run("ComposerOverStore", func(t *testing.T) {
		composer := access.NewComposer(engine, engine, engine)
		employee := access.Principal{ID: bob.ID, Roles: []string{access.RoleEmployee}, Clearance: access.LevelInternal}

		d := composer.Authorize(ctx, access.Request{
			Route:      access.RouteViewProfile,
			Principal:  employee,
			ResourceID: bobProfile.ID,
		})
		assert.Equal(t, access.VerdictDeny, d.Verdict)
		assert.Equal(t, access.GateMAC, d.Gate)
		assert.Equal(t, "read-up forbidden by MAC", d.Reason)

		d = composer.Authorize(ctx, access.Request{
			Route:      access.RouteViewProfile,
			Principal:  employee,
			ResourceID: 31337,
		})
		assert.Equal(t, access.VerdictNotFound, d.Verdict)
	})
}

func TestRuleStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := hr.NewRuleStore()
	engine := hr.NewAccessStore(pool)

	first, err := store.Create(ctx, pool, access.RulePolicy{
		Name:       "approveLeave",
		Conditions: access.Conditions{MaxDays: ptr(10), OverrideRoles: []string{"HR"}},
	})
	require.NoError(t, err)
	_, err = store.Create(ctx, pool, access.RulePolicy{
		Name:       "approveLeave",
		Conditions: access.Conditions{StartHour: ptr(8), EndHour: ptr(18)},
	})
	require.NoError(t, err)

	_, err = store.Create(ctx, pool, access.RulePolicy{
		Name:       "broken",
		Conditions: access.Conditions{MaxDays: ptr(0)},
	})
	assert.ErrorIs(t, err, access.ErrMalformedRule)

	policies, err := engine.FindPoliciesByName(ctx, "approveLeave")
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, first.ID, policies[0].ID)
	assert.Equal(t, 10, *policies[0].Conditions.MaxDays)
	assert.Nil(t, policies[0].Conditions.AllowedRoles, "absent lists stay absent through JSONB")

	t.Run("EmptyListSurvivesRoundTrip", func(t *testing.T) {
		_, err := store.Create(ctx, pool, access.RulePolicy{
			Name:       "lockdown",
			Conditions: access.Conditions{AllowedCountries: []string{}},
		})
		require.NoError(t, err)

		got, err := engine.FindPoliciesByName(ctx, "lockdown")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.NotNil(t, got[0].Conditions.AllowedCountries)
		assert.Empty(t, got[0].Conditions.AllowedCountries)
	})

	t.Run("MalformedStoredCondition", func(t *testing.T) {
		_, err := pool.Exec(ctx,
			`INSERT INTO rule_policies (name, conditions) VALUES ('corrupt', '{"maxDays":"ten"}')`)
		require.NoError(t, err)

		_, err = engine.FindPoliciesByName(ctx, "corrupt")
		assert.ErrorIs(t, err, access.ErrMalformedRule)
	})

	t.Run("SeedFromFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
policies:
  - name: viewSalary
    conditions: {startHour: 9, endHour: 17}
`), 0o600))

		n, err := store.SeedFromFile(ctx, pool, path)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		all, err := store.List(ctx, pool)
		require.NoError(t, err)
		require.Len(t, all, 1, "seeding replaces existing policies")
		assert.Equal(t, "viewSalary", all[0].Name)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		assert.ErrorIs(t, store.Delete(ctx, pool, 987654), hr.ErrRuleNotFound)
	})
}

func TestAccessStore_Timeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := hr.NewAccessStore(pool).Load(ctx, access.ResourceDocument, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, access.ErrNotFound)
}
