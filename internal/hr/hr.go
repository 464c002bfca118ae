// Package hr holds the HR domain: entities, their Postgres stores, the
// store adapters the access engine reads through, and the HTTP handlers
// that sit behind access.Require.
package hr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/valinor-ai/hrgate/internal/access"
)

var (
	ErrDepartmentNotFound  = errors.New("department not found")
	ErrDepartmentNameEmpty = errors.New("department name is required")
	ErrDepartmentNameTaken = errors.New("department name already in use")

	ErrInvalidReference = errors.New("referenced record does not exist")

	ErrUserNotFound     = errors.New("user not found")
	ErrEmailInvalid     = errors.New("invalid email address")
	ErrUsernameInvalid  = errors.New("invalid username")
	ErrUserDuplicate    = errors.New("username or email already exists")
	ErrRoleNotFound     = errors.New("role not found")
	ErrProfileNotFound  = errors.New("employee profile not found")
	ErrProfileExists    = errors.New("user already has an employee profile")
	ErrPositionRequired = errors.New("position is required")

	ErrDocumentNotFound = errors.New("document not found")
	ErrTitleRequired    = errors.New("title is required")
	ErrNotDocumentOwner = errors.New("only the document owner can manage permissions")
	ErrGrantNotFound    = errors.New("permission not found")

	ErrSalaryNotFound   = errors.New("salary record not found")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrEffectiveDateReq = errors.New("effective_date is required")

	ErrLeaveNotFound    = errors.New("leave request not found")
	ErrInvalidLeave     = errors.New("end date must not precede start date")
	ErrLeaveNotPending  = errors.New("leave request is not pending")
	ErrRuleNotFound     = errors.New("rule policy not found")

	ErrRoleRequestNotFound  = errors.New("role change request not found")
	ErrRoleRequestProcessed = errors.New("role change request already processed")
	ErrRoleRequestDuplicate = errors.New("a pending request for this role already exists")
	ErrRoleAlreadyHeld      = errors.New("user already holds the requested role")
	ErrRuleNameRequired = errors.New("rule name is required")
)

// Department is an organisational unit. Departments nest through ParentID.
type Department struct {
	ID               int64        `json:"id"`
	Name             string       `json:"name"`
	ParentID         *int64       `json:"parent_id,omitempty"`
	ManagerID        *int64       `json:"manager_id,omitempty"`
	SensitivityLevel access.Level `json:"sensitivity_level"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// User is an account. SensitivityLevel doubles as the user's clearance.
type User struct {
	ID               int64        `json:"id"`
	Username         string       `json:"username"`
	Email            string       `json:"email"`
	DisplayName      string       `json:"display_name,omitempty"`
	SensitivityLevel access.Level `json:"sensitivity_level"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Profile is a user's employment record.
type Profile struct {
	ID               int64        `json:"id"`
	UserID           int64        `json:"user_id"`
	DepartmentID     *int64       `json:"department_id,omitempty"`
	ManagerID        *int64       `json:"manager_id,omitempty"`
	Position         string       `json:"position"`
	SensitivityLevel access.Level `json:"sensitivity_level"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Document is file metadata. The bytes live elsewhere; FilePath points at them.
type Document struct {
	ID               int64             `json:"id"`
	Title            string            `json:"title"`
	FilePath         string            `json:"file_path,omitempty"`
	OwnerID          int64             `json:"owner_id"`
	Visibility       access.Visibility `json:"visibility"`
	SensitivityLevel access.Level      `json:"sensitivity_level"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type SalaryRecord struct {
	ID               int64        `json:"id"`
	EmployeeID       int64        `json:"employee_id"`
	Amount           float64      `json:"amount"`
	Currency         string       `json:"currency"`
	EffectiveDate    Date         `json:"effective_date"`
	SensitivityLevel access.Level `json:"sensitivity_level"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

const (
	LeavePending  = "Pending"
	LeaveApproved = "Approved"
	LeaveRejected = "Rejected"
)

type LeaveRequest struct {
	ID               int64        `json:"id"`
	EmployeeID       int64        `json:"employee_id"`
	StartDate        Date         `json:"start_date"`
	EndDate          Date         `json:"end_date"`
	Status           string       `json:"status"`
	ApprovedBy       *int64       `json:"approved_by,omitempty"`
	SensitivityLevel access.Level `json:"sensitivity_level"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// RoleChangeRequest asks an admin to grant the requester another role.
// Username and RoleName are filled from the joined rows.
type RoleChangeRequest struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Username        string    `json:"username"`
	RequestedRoleID int64     `json:"requested_role_id"`
	RoleName        string    `json:"role"`
	Status          string    `json:"status"`
	Reason          *string   `json:"reason,omitempty"`
	DecidedBy       *int64    `json:"decided_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Role is a named role and the capabilities it confers.
type Role struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Capabilities []string  `json:"capabilities"`
	CreatedAt    time.Time `json:"created_at"`
}

// Date is a calendar date carried as YYYY-MM-DD on the wire.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ValidateEmail checks that an email address is syntactically valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrEmailInvalid)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: %s", ErrEmailInvalid, err)
	}
	return nil
}

// ValidateDepartmentName checks that a department name is non-empty and within length limits.
func ValidateDepartmentName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrDepartmentNameEmpty
	}
	if len(trimmed) > 255 {
		return fmt.Errorf("%w: must not exceed 255 characters", ErrDepartmentNameEmpty)
	}
	return nil
}

func parseLevel(s string) (access.Level, error) {
	l, err := access.ParseLevel(s)
	if err != nil {
		return 0, fmt.Errorf("stored sensitivity level: %w", err)
	}
	return l, nil
}

// levelOr returns l, or def when l is unset.
func levelOr(l, def access.Level) access.Level {
	if l == 0 {
		return def
	}
	return l
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

const maxBody = 64 << 10

// decodeBody reads a bounded JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathID parses a positive int64 path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}
