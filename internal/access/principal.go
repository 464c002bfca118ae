package access

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/valinor-ai/hrgate/internal/auth"
	"github.com/valinor-ai/hrgate/internal/rbac"
)

// Role names issued in tokens and stored in the roles table.
const (
	RoleAdmin    = "Admin"
	RoleManager  = "Manager"
	RoleEmployee = "Employee"
	RoleHR       = "HR"
)

var ErrInvalidLevel = errors.New("invalid sensitivity level")

// Level is a position on the sensitivity lattice. It is used both as a
// resource label and as a principal clearance.
type Level int

const (
	LevelPublic Level = iota + 1
	LevelInternal
	LevelConfidential
)

func (l Level) String() string {
	switch l {
	case LevelPublic:
		return "Public"
	case LevelInternal:
		return "Internal"
	case LevelConfidential:
		return "Confidential"
	default:
		return "Level(" + strconv.Itoa(int(l)) + ")"
	}
}

// ParseLevel parses the canonical level names. Matching is case-sensitive.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "Public":
		return LevelPublic, nil
	case "Internal":
		return LevelInternal, nil
	case "Confidential":
		return LevelConfidential, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

func (l Level) MarshalText() ([]byte, error) {
	if l < LevelPublic || l > LevelConfidential {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, int(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Principal is the authenticated actor for one request. Treat it as a value:
// WithDepartment returns a modified copy.
type Principal struct {
	ID           int64
	Roles        []string
	Clearance    Level
	DepartmentID *int64
	Capabilities []rbac.Capability
}

// PrimaryRole is the first role as issued. Rule predicates look only at this role.
func (p Principal) PrimaryRole() string {
	if len(p.Roles) == 0 {
		return ""
	}
	return p.Roles[0]
}

func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

func (p Principal) Can(c rbac.Capability) bool {
	return slices.Contains(p.Capabilities, c)
}

func (p Principal) WithDepartment(id *int64) Principal {
	p.DepartmentID = id
	return p
}

// CapabilityResolver resolves the capability set granted by a role set.
type CapabilityResolver interface {
	Capabilities(roles []string) []rbac.Capability
}

// PrincipalFromIdentity builds a Principal from verified token claims.
// A missing clearance claim means Public.
func PrincipalFromIdentity(identity *auth.Identity, caps CapabilityResolver) (Principal, error) {
	if identity == nil {
		return Principal{}, errors.New("no identity")
	}
	if len(identity.Roles) == 0 {
		return Principal{}, errors.New("identity has no roles")
	}

	clearance := LevelPublic
	if identity.Clearance != "" {
		lvl, err := ParseLevel(identity.Clearance)
		if err != nil {
			return Principal{}, fmt.Errorf("clearance claim: %w", err)
		}
		clearance = lvl
	}

	p := Principal{
		ID:           identity.UserID,
		Roles:        slices.Clone(identity.Roles),
		Clearance:    clearance,
		DepartmentID: identity.DepartmentID,
	}
	if caps != nil {
		p.Capabilities = caps.Capabilities(p.Roles)
	}
	return p, nil
}
