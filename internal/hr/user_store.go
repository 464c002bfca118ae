package hr

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/hrgate/internal/access"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

// UserStore handles user database operations.
type UserStore struct{}

// NewUserStore creates a new user store.
func NewUserStore() *UserStore {
	return &UserStore{}
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,64}$`)

const userColumns = `id, username, email, display_name, sensitivity_level, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var (
		u     User
		level string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &level, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	l, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	u.SensitivityLevel = l
	return &u, nil
}

// UserInput carries the writable user fields.
type UserInput struct {
	Username         string       `json:"username"`
	Email            string       `json:"email"`
	DisplayName      string       `json:"display_name"`
	SensitivityLevel access.Level `json:"sensitivity_level,omitempty"`
}

func (in UserInput) validate() error {
	if !usernamePattern.MatchString(in.Username) {
		return fmt.Errorf("%w: 3-64 letters, digits, '.', '_' or '-'", ErrUsernameInvalid)
	}
	return ValidateEmail(in.Email)
}

// Create inserts a new user. New users default to Public clearance.
func (s *UserStore) Create(ctx context.Context, q database.Querier, in UserInput) (*User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	user, err := scanUser(q.QueryRow(ctx,
		`INSERT INTO users (username, email, display_name, sensitivity_level)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		in.Username, in.Email, in.DisplayName, levelOr(in.SensitivityLevel, access.LevelPublic).String(),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserDuplicate, in.Username)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(ctx context.Context, q database.Querier, id int64) (*User, error) {
	user, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

// List returns all users.
func (s *UserStore) List(ctx context.Context, q database.Querier) ([]User, error) {
	rows, err := q.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Update replaces the user's profile fields. The clearance is left alone
// when in.SensitivityLevel is unset.
func (s *UserStore) Update(ctx context.Context, q database.Querier, id int64, in UserInput) (*User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var level *string
	if in.SensitivityLevel != 0 {
		v := in.SensitivityLevel.String()
		level = &v
	}

	user, err := scanUser(q.QueryRow(ctx,
		`UPDATE users
		 SET username = $2, email = $3, display_name = $4,
		     sensitivity_level = COALESCE($5, sensitivity_level), updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, in.Username, in.Email, in.DisplayName, level,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserDuplicate, in.Username)
		}
		return nil, fmt.Errorf("updating user: %w", err)
	}
	return user, nil
}

func (s *UserStore) Delete(ctx context.Context, q database.Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
