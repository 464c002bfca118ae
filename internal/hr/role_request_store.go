package hr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

const (
	RoleRequestPending  = "Pending"
	RoleRequestApproved = "Approved"
	RoleRequestRejected = "Rejected"
)

// RoleRequestStore handles role change requests.
type RoleRequestStore struct{}

func NewRoleRequestStore() *RoleRequestStore {
	return &RoleRequestStore{}
}

const roleRequestSelect = `SELECT rcr.id, rcr.user_id, u.username, rcr.requested_role_id, r.name,
	rcr.status, rcr.reason, rcr.decided_by, rcr.created_at, rcr.updated_at
	FROM role_change_requests rcr
	JOIN users u ON u.id = rcr.user_id
	JOIN roles r ON r.id = rcr.requested_role_id`

func scanRoleRequest(row pgx.Row) (*RoleChangeRequest, error) {
	var rr RoleChangeRequest
	err := row.Scan(&rr.ID, &rr.UserID, &rr.Username, &rr.RequestedRoleID, &rr.RoleName,
		&rr.Status, &rr.Reason, &rr.DecidedBy, &rr.CreatedAt, &rr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rr, nil
}

// Create files a pending request by userID for roleID.
func (s *RoleRequestStore) Create(ctx context.Context, q database.Querier, userID, roleID int64, reason *string) (*RoleChangeRequest, error) {
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO role_change_requests (user_id, requested_role_id, reason)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		userID, roleID, reason,
	).Scan(&id)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, ErrRoleRequestDuplicate
		case isForeignKeyViolation(err):
			return nil, fmt.Errorf("%w: user or role", ErrInvalidReference)
		}
		return nil, fmt.Errorf("creating role change request: %w", err)
	}
	return s.GetByID(ctx, q, id)
}

func (s *RoleRequestStore) GetByID(ctx context.Context, q database.Querier, id int64) (*RoleChangeRequest, error) {
	rr, err := scanRoleRequest(q.QueryRow(ctx, roleRequestSelect+` WHERE rcr.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleRequestNotFound
		}
		return nil, fmt.Errorf("getting role change request: %w", err)
	}
	return rr, nil
}

// ListPending returns open requests, oldest first.
func (s *RoleRequestStore) ListPending(ctx context.Context, q database.Querier) ([]RoleChangeRequest, error) {
	rows, err := q.Query(ctx,
		roleRequestSelect+` WHERE rcr.status = $1 ORDER BY rcr.created_at, rcr.id`,
		RoleRequestPending,
	)
	if err != nil {
		return nil, fmt.Errorf("listing role change requests: %w", err)
	}
	defer rows.Close()

	requests := []RoleChangeRequest{}
	for rows.Next() {
		rr, err := scanRoleRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning role change request: %w", err)
		}
		requests = append(requests, *rr)
	}
	return requests, rows.Err()
}

// Decide closes a pending request with status, recording who decided it.
// Requests that are no longer pending return ErrRoleRequestProcessed.
func (s *RoleRequestStore) Decide(ctx context.Context, q database.Querier, id, deciderID int64, status string) (*RoleChangeRequest, error) {
	var updated int64
	err := q.QueryRow(ctx,
		`UPDATE role_change_requests
		 SET status = $3, decided_by = $2, updated_at = now()
		 WHERE id = $1 AND status = $4
		 RETURNING id`,
		id, deciderID, status, RoleRequestPending,
	).Scan(&updated)
	if err == nil {
		return s.GetByID(ctx, q, id)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("deciding role change request: %w", err)
	}
	if _, err := s.GetByID(ctx, q, id); err != nil {
		return nil, err
	}
	return nil, ErrRoleRequestProcessed
}
