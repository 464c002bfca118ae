package hr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/hrgate/internal/platform/database"
	"github.com/valinor-ai/hrgate/internal/rbac"
)

// RoleStore handles roles and role assignments.
type RoleStore struct{}

func NewRoleStore() *RoleStore {
	return &RoleStore{}
}

// GetByName retrieves a role by its unique name.
func (s *RoleStore) GetByName(ctx context.Context, q database.Querier, name string) (*Role, error) {
	var r Role
	err := q.QueryRow(ctx,
		`SELECT id, name, capabilities, created_at FROM roles WHERE name = $1`, name,
	).Scan(&r.ID, &r.Name, &r.Capabilities, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("getting role: %w", err)
	}
	return &r, nil
}

// List returns every role.
func (s *RoleStore) List(ctx context.Context, q database.Querier) ([]Role, error) {
	rows, err := q.Query(ctx, `SELECT id, name, capabilities, created_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Capabilities, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// AssignToUser grants a role. Assigning a role the user already holds is a no-op.
func (s *RoleStore) AssignToUser(ctx context.Context, q database.Querier, userID, roleID int64) error {
	_, err := q.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, role_id) DO NOTHING`,
		userID, roleID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("assigning role: %w", err)
	}
	return nil
}

// RemoveFromUser revokes a role assignment.
func (s *RoleStore) RemoveFromUser(ctx context.Context, q database.Querier, userID, roleID int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return fmt.Errorf("removing role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// ListForUser returns the names of the user's roles, oldest assignment
// first. The first name is the user's primary role.
func (s *RoleStore) ListForUser(ctx context.Context, q database.Querier, userID int64) ([]string, error) {
	rows, err := q.Query(ctx,
		`SELECT r.name FROM user_roles ur
		 JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = $1
		 ORDER BY ur.assigned_at, r.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing user roles: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning user role: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RoleLoader feeds the rbac registry from the roles table.
type RoleLoader struct {
	db    database.Querier
	store *RoleStore
}

func NewRoleLoader(db database.Querier) *RoleLoader {
	return &RoleLoader{db: db, store: NewRoleStore()}
}

// LoadRoles implements rbac.RoleLoader.
func (l *RoleLoader) LoadRoles(ctx context.Context) ([]rbac.RoleDef, error) {
	roles, err := l.store.List(ctx, l.db)
	if err != nil {
		return nil, err
	}
	defs := make([]rbac.RoleDef, 0, len(roles))
	for _, r := range roles {
		defs = append(defs, rbac.RoleDef{Name: r.Name, Capabilities: r.Capabilities})
	}
	return defs, nil
}
