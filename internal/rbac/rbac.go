package rbac

// Capability is a named privilege attached to a role rather than checked by
// role name throughout the gates.
type Capability string

const (
	// BypassAllPolicy skips sensitivity, department, ownership and label checks.
	BypassAllPolicy Capability = "bypass_all_policy"
)

// HasAnyRole reports whether roles and allowed share at least one element.
func HasAnyRole(roles, allowed []string) bool {
	for _, r := range roles {
		for _, a := range allowed {
			if r == a {
				return true
			}
		}
	}
	return false
}
