package hr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

type LeaveStore struct{}

func NewLeaveStore() *LeaveStore {
	return &LeaveStore{}
}

const leaveColumns = `id, employee_id, start_date, end_date, status, approved_by, sensitivity_level, created_at, updated_at`

func scanLeave(row pgx.Row) (*LeaveRequest, error) {
	var (
		l     LeaveRequest
		level string
	)
	err := row.Scan(&l.ID, &l.EmployeeID, &l.StartDate.Time, &l.EndDate.Time, &l.Status,
		&l.ApprovedBy, &level, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if l.SensitivityLevel, err = parseLevel(level); err != nil {
		return nil, err
	}
	return &l, nil
}

// LeaveInput is the body of a new leave request.
type LeaveInput struct {
	StartDate Date `json:"start_date"`
	EndDate   Date `json:"end_date"`
}

func (in LeaveInput) validate() error {
	if in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate.Time) {
		return ErrInvalidLeave
	}
	return nil
}

// Create files a pending request for employeeID.
func (s *LeaveStore) Create(ctx context.Context, q database.Querier, employeeID int64, in LeaveInput) (*LeaveRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	l, err := scanLeave(q.QueryRow(ctx,
		`INSERT INTO leave_requests (employee_id, start_date, end_date)
		 VALUES ($1, $2, $3)
		 RETURNING `+leaveColumns,
		employeeID, in.StartDate.Time, in.EndDate.Time,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: employee", ErrInvalidReference)
		}
		return nil, fmt.Errorf("creating leave request: %w", err)
	}
	return l, nil
}

func (s *LeaveStore) GetByID(ctx context.Context, q database.Querier, id int64) (*LeaveRequest, error) {
	l, err := scanLeave(q.QueryRow(ctx,
		`SELECT `+leaveColumns+` FROM leave_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeaveNotFound
		}
		return nil, fmt.Errorf("getting leave request: %w", err)
	}
	return l, nil
}

// List returns leave requests, newest first, optionally for one employee.
func (s *LeaveStore) List(ctx context.Context, q database.Querier, employeeID *int64) ([]LeaveRequest, error) {
	rows, err := q.Query(ctx,
		`SELECT `+leaveColumns+` FROM leave_requests
		 WHERE $1::bigint IS NULL OR employee_id = $1
		 ORDER BY created_at DESC, id DESC`,
		employeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing leave requests: %w", err)
	}
	defer rows.Close()

	requests := []LeaveRequest{}
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning leave request: %w", err)
		}
		requests = append(requests, *l)
	}
	return requests, rows.Err()
}

// Approve moves a pending request to Approved and records the approver.
func (s *LeaveStore) Approve(ctx context.Context, q database.Querier, id, approverID int64) (*LeaveRequest, error) {
	l, err := scanLeave(q.QueryRow(ctx,
		`UPDATE leave_requests
		 SET status = $3, approved_by = $2, updated_at = now()
		 WHERE id = $1 AND status = $4
		 RETURNING `+leaveColumns,
		id, approverID, LeaveApproved, LeavePending,
	))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("approving leave request: %w", err)
	}
	if _, err := s.GetByID(ctx, q, id); err != nil {
		return nil, err
	}
	return nil, ErrLeaveNotPending
}

func (s *LeaveStore) Delete(ctx context.Context, q database.Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM leave_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting leave request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaveNotFound
	}
	return nil
}
