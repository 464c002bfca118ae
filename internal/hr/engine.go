package hr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

// AccessStore serves the decision engine's reads: resource attribute
// snapshots, profile departments, document grants and rule policies.
type AccessStore struct {
	db    database.Querier
	rules *RuleStore
}

var (
	_ access.ResourceStore = (*AccessStore)(nil)
	_ access.GrantStore    = (*AccessStore)(nil)
	_ access.RuleStore     = (*AccessStore)(nil)
)

func NewAccessStore(db database.Querier) *AccessStore {
	return &AccessStore{db: db, rules: NewRuleStore()}
}

// Load implements access.ResourceStore.
func (s *AccessStore) Load(ctx context.Context, t access.ResourceType, id int64) (access.Attributes, error) {
	var (
		attrs access.Attributes
		err   error
	)
	switch t {
	case access.ResourceEmployeeProfile:
		attrs, err = s.loadProfile(ctx, id)
	case access.ResourceDocument:
		attrs, err = s.loadDocument(ctx, id)
	case access.ResourceSalaryRecord:
		attrs, err = s.loadSalary(ctx, id)
	case access.ResourceLeaveRequest:
		attrs, err = s.loadLeave(ctx, id)
	case access.ResourceUser:
		attrs, err = s.loadUser(ctx, id)
	case access.ResourceDepartment:
		attrs, err = s.loadDepartment(ctx, id)
	case access.ResourceRole:
		attrs, err = s.loadRole(ctx, id)
	default:
		return nil, fmt.Errorf("unknown resource type %q", t)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, access.ErrNotFound
		}
		return nil, fmt.Errorf("loading %s %d: %w", t, id, err)
	}
	return attrs, nil
}

func (s *AccessStore) loadProfile(ctx context.Context, id int64) (access.Attributes, error) {
	var (
		a     access.EmployeeProfile
		owner int64
		level string
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, department_id, manager_id, position, sensitivity_level
		 FROM employee_profiles WHERE id = $1`, id,
	).Scan(&a.ID, &owner, &a.DepartmentID, &a.ManagerID, &a.Position, &level)
	if err != nil {
		return nil, err
	}
	a.OwnerID = &owner
	if a.Label, err = parseLevel(level); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AccessStore) loadDocument(ctx context.Context, id int64) (access.Attributes, error) {
	var (
		a          access.Document
		owner      int64
		visibility string
		level      string
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, owner_id, visibility, sensitivity_level FROM documents WHERE id = $1`, id,
	).Scan(&a.ID, &owner, &visibility, &level)
	if err != nil {
		return nil, err
	}
	a.OwnerID = &owner
	if a.Visibility, err = access.ParseVisibility(visibility); err != nil {
		return nil, err
	}
	if a.Label, err = parseLevel(level); err != nil {
		return nil, err
	}
	return a, nil
}

// Salary records and leave requests take department and manager from the
// owning employee's profile.
func (s *AccessStore) loadSalary(ctx context.Context, id int64) (access.Attributes, error) {
	var (
		a     access.SalaryRecord
		owner int64
		level string
	)
	err := s.db.QueryRow(ctx,
		`SELECT s.id, s.employee_id, p.department_id, p.manager_id, s.sensitivity_level
		 FROM salary_records s
		 LEFT JOIN employee_profiles p ON p.user_id = s.employee_id
		 WHERE s.id = $1`, id,
	).Scan(&a.ID, &owner, &a.DepartmentID, &a.ManagerID, &level)
	if err != nil {
		return nil, err
	}
	a.OwnerID = &owner
	if a.Label, err = parseLevel(level); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AccessStore) loadLeave(ctx context.Context, id int64) (access.Attributes, error) {
	var (
		a     access.LeaveRequest
		owner int64
		level string
	)
	err := s.db.QueryRow(ctx,
		`SELECT l.id, l.employee_id, p.department_id, p.manager_id,
		        l.start_date, l.end_date, l.status, l.sensitivity_level
		 FROM leave_requests l
		 LEFT JOIN employee_profiles p ON p.user_id = l.employee_id
		 WHERE l.id = $1`, id,
	).Scan(&a.ID, &owner, &a.DepartmentID, &a.ManagerID, &a.StartDate, &a.EndDate, &a.Status, &level)
	if err != nil {
		return nil, err
	}
	a.OwnerID = &owner
	if a.Label, err = parseLevel(level); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AccessStore) loadUser(ctx context.Context, id int64) (access.Attributes, error) {
	var (
		a     access.User
		level string
	)
	err := s.db.QueryRow(ctx,
		`SELECT u.id, p.department_id, p.manager_id, u.sensitivity_level
		 FROM users u
		 LEFT JOIN employee_profiles p ON p.user_id = u.id
		 WHERE u.id = $1`, id,
	).Scan(&a.ID, &a.DepartmentID, &a.ManagerID, &level)
	if err != nil {
		return nil, err
	}
	self := a.ID
	a.OwnerID = &self
	if a.Label, err = parseLevel(level); err != nil {
		return nil, err
	}
	a.Clearance = a.Label
	return a, nil
}

func (s *AccessStore) loadDepartment(ctx context.Context, id int64) (access.Attributes, error) {
	var (
		a     access.Department
		level string
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, parent_id, manager_id, sensitivity_level FROM departments WHERE id = $1`, id,
	).Scan(&a.ID, &a.ParentID, &a.ManagerID, &level)
	if err != nil {
		return nil, err
	}
	self := a.ID
	a.DepartmentID = &self
	if a.Label, err = parseLevel(level); err != nil {
		return nil, err
	}
	return a, nil
}

// Roles carry no label; they fall back to Internal.
func (s *AccessStore) loadRole(ctx context.Context, id int64) (access.Attributes, error) {
	var a access.Role
	err := s.db.QueryRow(ctx, `SELECT id, name FROM roles WHERE id = $1`, id).Scan(&a.ID, &a.Name)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ProfileDepartment implements access.ResourceStore.
func (s *AccessStore) ProfileDepartment(ctx context.Context, userID int64) (*int64, error) {
	var dept *int64
	err := s.db.QueryRow(ctx,
		`SELECT department_id FROM employee_profiles WHERE user_id = $1`, userID,
	).Scan(&dept)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading profile department: %w", err)
	}
	return dept, nil
}

// FindGrant implements access.GrantStore. The newest row for the pair wins.
func (s *AccessStore) FindGrant(ctx context.Context, resourceID, userID int64) (*access.Grant, error) {
	g, err := scanGrant(s.db.QueryRow(ctx,
		`SELECT `+grantColumns+` FROM document_permissions
		 WHERE resource_id = $1 AND user_id = $2
		 ORDER BY granted_at DESC, id DESC
		 LIMIT 1`,
		resourceID, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding grant: %w", err)
	}
	return g, nil
}

// FindPoliciesByName implements access.RuleStore.
func (s *AccessStore) FindPoliciesByName(ctx context.Context, name string) ([]access.RulePolicy, error) {
	return s.rules.FindByName(ctx, s.db, name)
}
