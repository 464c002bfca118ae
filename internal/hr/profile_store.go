package hr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

type ProfileStore struct{}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{}
}

const profileColumns = `id, user_id, department_id, manager_id, position, sensitivity_level, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		p     Profile
		level string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.DepartmentID, &p.ManagerID, &p.Position, &level, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	p.SensitivityLevel = l
	return &p, nil
}

// ProfileInput carries the writable profile fields.
type ProfileInput struct {
	UserID           int64        `json:"user_id"`
	DepartmentID     *int64       `json:"department_id,omitempty"`
	ManagerID        *int64       `json:"manager_id,omitempty"`
	Position         string       `json:"position"`
	SensitivityLevel access.Level `json:"sensitivity_level,omitempty"`
}

// Create inserts a profile. A user has at most one.
func (s *ProfileStore) Create(ctx context.Context, q database.Querier, in ProfileInput) (*Profile, error) {
	if strings.TrimSpace(in.Position) == "" {
		return nil, ErrPositionRequired
	}
	if in.UserID <= 0 {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidReference)
	}

	p, err := scanProfile(q.QueryRow(ctx,
		`INSERT INTO employee_profiles (user_id, department_id, manager_id, position, sensitivity_level)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+profileColumns,
		in.UserID, in.DepartmentID, in.ManagerID, in.Position,
		levelOr(in.SensitivityLevel, access.LevelInternal).String(),
	))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, ErrProfileExists
		case isForeignKeyViolation(err):
			return nil, fmt.Errorf("%w: user, department or manager", ErrInvalidReference)
		}
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) GetByID(ctx context.Context, q database.Querier, id int64) (*Profile, error) {
	p, err := scanProfile(q.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM employee_profiles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

// GetByUserID retrieves the profile belonging to a user.
func (s *ProfileStore) GetByUserID(ctx context.Context, q database.Querier, userID int64) (*Profile, error) {
	p, err := scanProfile(q.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM employee_profiles WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("getting profile by user: %w", err)
	}
	return p, nil
}

// List returns profiles, optionally limited to one department.
func (s *ProfileStore) List(ctx context.Context, q database.Querier, departmentID *int64) ([]Profile, error) {
	rows, err := q.Query(ctx,
		`SELECT `+profileColumns+` FROM employee_profiles
		 WHERE $1::bigint IS NULL OR department_id = $1
		 ORDER BY id`,
		departmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	profiles := []Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// Update changes department, manager and position. The owning user never changes.
func (s *ProfileStore) Update(ctx context.Context, q database.Querier, id int64, in ProfileInput) (*Profile, error) {
	if strings.TrimSpace(in.Position) == "" {
		return nil, ErrPositionRequired
	}

	var level *string
	if in.SensitivityLevel != 0 {
		v := in.SensitivityLevel.String()
		level = &v
	}

	p, err := scanProfile(q.QueryRow(ctx,
		`UPDATE employee_profiles
		 SET department_id = $2, manager_id = $3, position = $4,
		     sensitivity_level = COALESCE($5, sensitivity_level), updated_at = now()
		 WHERE id = $1
		 RETURNING `+profileColumns,
		id, in.DepartmentID, in.ManagerID, in.Position, level,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: department or manager", ErrInvalidReference)
		}
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) Delete(ctx context.Context, q database.Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM employee_profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}
