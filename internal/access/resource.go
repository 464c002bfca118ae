package access

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("resource not found")

// ResourceType enumerates the protected resource kinds.
type ResourceType string

const (
	ResourceEmployeeProfile ResourceType = "employee_profile"
	ResourceDocument        ResourceType = "document"
	ResourceSalaryRecord    ResourceType = "salary_record"
	ResourceUser            ResourceType = "user"
	ResourceDepartment      ResourceType = "department"
	ResourceRole            ResourceType = "role"
	ResourceLeaveRequest    ResourceType = "leave_request"

	// Role change requests are guarded by role and rule checks only and
	// have no attribute variant.
	ResourceRoleChangeRequest ResourceType = "role_change_request"
)

// Visibility is the document sharing tier. It is independent of Level.
type Visibility string

const (
	VisibilityPublic   Visibility = "PUBLIC"
	VisibilityInternal Visibility = "INTERNAL"
	VisibilityPrivate  Visibility = "PRIVATE"
)

func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(s); v {
	case VisibilityPublic, VisibilityInternal, VisibilityPrivate:
		return v, nil
	case "":
		return VisibilityPrivate, nil
	default:
		return "", fmt.Errorf("invalid visibility %q", s)
	}
}

// Common holds the access-relevant fields every resource carries.
type Common struct {
	ID           int64
	OwnerID      *int64
	Label        Level
	DepartmentID *int64
	ManagerID    *int64
}

func (c Common) common() Common { return c }

// EffectiveLabel returns the label, defaulting to Internal when unset.
func (c Common) EffectiveLabel() Level {
	if c.Label == 0 {
		return LevelInternal
	}
	return c.Label
}

func (c Common) ownedBy(userID int64) bool {
	return c.OwnerID != nil && *c.OwnerID == userID
}

// Attributes is the closed set of resource attribute snapshots. Only the
// types declared in this file implement it.
type Attributes interface {
	Type() ResourceType
	common() Common
}

type EmployeeProfile struct {
	Common
	Position string
}

type Document struct {
	Common
	Visibility Visibility
}

type SalaryRecord struct {
	Common
}

type User struct {
	Common
	Clearance Level
}

type Department struct {
	Common
	ParentID *int64
}

type Role struct {
	Common
	Name string
}

type LeaveRequest struct {
	Common
	StartDate time.Time
	EndDate   time.Time
	Status    string
}

func (EmployeeProfile) Type() ResourceType { return ResourceEmployeeProfile }
func (Document) Type() ResourceType        { return ResourceDocument }
func (SalaryRecord) Type() ResourceType    { return ResourceSalaryRecord }
func (User) Type() ResourceType            { return ResourceUser }
func (Department) Type() ResourceType      { return ResourceDepartment }
func (Role) Type() ResourceType            { return ResourceRole }
func (LeaveRequest) Type() ResourceType    { return ResourceLeaveRequest }

// AttributesOf exposes the common fields of a snapshot.
func AttributesOf(a Attributes) Common {
	return a.common()
}

// ResourceStore resolves resource references to attribute snapshots.
type ResourceStore interface {
	// Load returns ErrNotFound when the resource does not exist.
	Load(ctx context.Context, t ResourceType, id int64) (Attributes, error)
	// ProfileDepartment returns the department on the user's employee
	// profile, or nil when the user has no profile or no department.
	ProfileDepartment(ctx context.Context, userID int64) (*int64, error)
}
