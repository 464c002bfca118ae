package access

import "github.com/valinor-ai/hrgate/internal/rbac"

const (
	reasonReadUp       = "read-up forbidden by MAC"
	reasonWriteDown    = "write-down forbidden by MAC"
	reasonManagerScope = "managers can only access resources in their own department"
	reasonSelfScope    = "employees can only access their own resources"
	reasonLabelChange  = "you cannot change resource sensitivity level"
)

// CheckMAC compares clearance against the resource label and applies
// department and self scoping.
//
// The update/delete rule denies when clearance exceeds the label. That is
// the reverse of the classical star property and is kept on purpose.
//
// attrs is nil for collection routes, which have nothing to compare.
func CheckMAC(p Principal, attrs Attributes, action Action) Result {
	if p.Can(rbac.BypassAllPolicy) {
		return allow()
	}
	if action == ActionCreate || attrs == nil {
		return allow()
	}

	c := attrs.common()
	label := c.EffectiveLabel()

	switch action {
	case ActionView:
		if p.Clearance < label {
			return deny(reasonReadUp)
		}
	case ActionUpdate, ActionDelete:
		if p.Clearance > label {
			return deny(reasonWriteDown)
		}
	}

	switch {
	case p.HasRole(RoleManager):
		if p.DepartmentID == nil || c.DepartmentID == nil || *p.DepartmentID != *c.DepartmentID {
			return deny(reasonManagerScope)
		}
	case p.HasRole(RoleEmployee) && !p.HasRole(RoleAdmin):
		if !c.ownedBy(p.ID) {
			return deny(reasonSelfScope)
		}
	}

	return allow()
}

// CheckLabelChange rejects any attempt to set a sensitivity label unless the
// principal holds the bypass capability.
func CheckLabelChange(p Principal, requested bool) Result {
	if !requested || p.Can(rbac.BypassAllPolicy) {
		return allow()
	}
	return deny(reasonLabelChange)
}
