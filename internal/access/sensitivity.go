package access

import (
	"fmt"

	"github.com/valinor-ai/hrgate/internal/rbac"
)

type tier string

const (
	tierPublic       tier = "Public"
	tierInternal     tier = "Internal"
	tierConfidential tier = "Confidential"
	tierDepartment   tier = "Department"
)

var tierRoles = map[tier][]string{
	tierPublic:       {RoleEmployee, RoleManager, RoleAdmin},
	tierInternal:     {RoleManager, RoleAdmin},
	tierConfidential: {RoleAdmin},
	tierDepartment:   {RoleAdmin, RoleManager},
}

// CheckSensitivity maps the resource to a sensitivity tier and requires the
// principal to hold one of the tier's roles. Document owners pass before any
// mapping happens. A nil attrs (collection or create) passes.
func CheckSensitivity(p Principal, attrs Attributes) Result {
	if attrs == nil {
		return allow()
	}

	var t tier
	switch a := attrs.(type) {
	case Document:
		if a.ownedBy(p.ID) {
			return allow()
		}
		if a.Visibility == VisibilityPublic {
			t = tierPublic
		} else {
			t = labelTier(a.EffectiveLabel())
		}
	case Department:
		t = tierDepartment
	case EmployeeProfile, SalaryRecord, User, Role, LeaveRequest:
		t = labelTier(attrs.common().EffectiveLabel())
	default:
		panic(fmt.Sprintf("access: unhandled attributes %T", attrs))
	}

	if !rbac.HasAnyRole(p.Roles, tierRoles[t]) {
		return deny(fmt.Sprintf("access denied for %s with sensitivity '%s'", p.PrimaryRole(), t))
	}

	if profile, ok := attrs.(EmployeeProfile); ok && p.HasRole(RoleEmployee) {
		if p.DepartmentID == nil || profile.DepartmentID == nil || *p.DepartmentID != *profile.DepartmentID {
			return deny("employees can only view profiles in their own department")
		}
	}

	return allow()
}

func labelTier(l Level) tier {
	switch l {
	case LevelPublic:
		return tierPublic
	case LevelConfidential:
		return tierConfidential
	default:
		return tierInternal
	}
}
