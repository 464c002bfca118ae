package hr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

// DepartmentStore handles department database operations.
// Methods accept database.Querier so they can run inside a transaction.
type DepartmentStore struct{}

// NewDepartmentStore creates a new department store.
func NewDepartmentStore() *DepartmentStore {
	return &DepartmentStore{}
}

const departmentColumns = `id, name, parent_id, manager_id, sensitivity_level, created_at, updated_at`

func scanDepartment(row pgx.Row) (*Department, error) {
	var (
		d     Department
		level string
	)
	if err := row.Scan(&d.ID, &d.Name, &d.ParentID, &d.ManagerID, &level, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	l, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	d.SensitivityLevel = l
	return &d, nil
}

// DepartmentInput carries the writable department fields.
type DepartmentInput struct {
	Name             string       `json:"name"`
	ParentID         *int64       `json:"parent_id,omitempty"`
	ManagerID        *int64       `json:"manager_id,omitempty"`
	SensitivityLevel access.Level `json:"sensitivity_level,omitempty"`
}

// Create inserts a new department. A parent, when given, must exist.
func (s *DepartmentStore) Create(ctx context.Context, q database.Querier, in DepartmentInput) (*Department, error) {
	if err := ValidateDepartmentName(in.Name); err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		if _, err := s.GetByID(ctx, q, *in.ParentID); err != nil {
			if errors.Is(err, ErrDepartmentNotFound) {
				return nil, fmt.Errorf("%w: parent department %d", ErrInvalidReference, *in.ParentID)
			}
			return nil, err
		}
	}

	dept, err := scanDepartment(q.QueryRow(ctx,
		`INSERT INTO departments (name, parent_id, manager_id, sensitivity_level)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+departmentColumns,
		in.Name, in.ParentID, in.ManagerID, levelOr(in.SensitivityLevel, access.LevelInternal).String(),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDepartmentNameTaken, in.Name)
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: manager", ErrInvalidReference)
		}
		return nil, fmt.Errorf("creating department: %w", err)
	}
	return dept, nil
}

// GetByID retrieves a department by ID.
func (s *DepartmentStore) GetByID(ctx context.Context, q database.Querier, id int64) (*Department, error) {
	dept, err := scanDepartment(q.QueryRow(ctx,
		`SELECT `+departmentColumns+` FROM departments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepartmentNotFound
		}
		return nil, fmt.Errorf("getting department: %w", err)
	}
	return dept, nil
}

// List returns all departments.
func (s *DepartmentStore) List(ctx context.Context, q database.Querier) ([]Department, error) {
	rows, err := q.Query(ctx, `SELECT `+departmentColumns+` FROM departments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}
	defer rows.Close()

	departments := []Department{}
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning department: %w", err)
		}
		departments = append(departments, *d)
	}
	return departments, rows.Err()
}

// Update replaces the writable fields. The sensitivity level is left alone
// when in.SensitivityLevel is unset.
func (s *DepartmentStore) Update(ctx context.Context, q database.Querier, id int64, in DepartmentInput) (*Department, error) {
	if err := ValidateDepartmentName(in.Name); err != nil {
		return nil, err
	}
	if in.ParentID != nil && *in.ParentID == id {
		return nil, fmt.Errorf("%w: a department cannot be its own parent", ErrInvalidReference)
	}

	var level *string
	if in.SensitivityLevel != 0 {
		v := in.SensitivityLevel.String()
		level = &v
	}

	dept, err := scanDepartment(q.QueryRow(ctx,
		`UPDATE departments
		 SET name = $2, parent_id = $3, manager_id = $4,
		     sensitivity_level = COALESCE($5, sensitivity_level), updated_at = now()
		 WHERE id = $1
		 RETURNING `+departmentColumns,
		id, in.Name, in.ParentID, in.ManagerID, level,
	))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrDepartmentNotFound
		case isUniqueViolation(err):
			return nil, fmt.Errorf("%w: %s", ErrDepartmentNameTaken, in.Name)
		case isForeignKeyViolation(err):
			return nil, fmt.Errorf("%w: parent department or manager", ErrInvalidReference)
		}
		return nil, fmt.Errorf("updating department: %w", err)
	}
	return dept, nil
}

// Delete removes a department. Profiles in it lose their department.
func (s *DepartmentStore) Delete(ctx context.Context, q database.Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting department: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDepartmentNotFound
	}
	return nil
}
