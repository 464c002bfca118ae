package rbac

import (
	"context"
	"fmt"
	"sync"
)

// RoleDef is a role name with its capability strings, used by RoleLoader.
type RoleDef struct {
	Name         string
	Capabilities []string
}

// RoleLoader loads role definitions from a backing store.
type RoleLoader interface {
	LoadRoles(ctx context.Context) ([]RoleDef, error)
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithRoleLoader sets a RoleLoader for DB-backed role loading.
func WithRoleLoader(loader RoleLoader) RegistryOption {
	return func(r *Registry) {
		r.loader = loader
	}
}

// Registry maps role names to capabilities. It is the only piece of shared
// mutable authorization state; readers take a snapshot under the read lock.
type Registry struct {
	loader RoleLoader
	roles  map[string][]Capability
	mu     sync.RWMutex
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		roles: make(map[string][]Capability),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReloadRoles loads roles from the RoleLoader and replaces the in-memory map.
// If loading fails, the existing map is preserved.
func (r *Registry) ReloadRoles(ctx context.Context) error {
	if r.loader == nil {
		return fmt.Errorf("no role loader configured")
	}

	defs, err := r.loader.LoadRoles(ctx)
	if err != nil {
		return fmt.Errorf("loading roles: %w", err)
	}

	next := make(map[string][]Capability, len(defs))
	for _, d := range defs {
		caps := make([]Capability, 0, len(d.Capabilities))
		for _, c := range d.Capabilities {
			caps = append(caps, Capability(c))
		}
		next[d.Name] = caps
	}

	r.mu.Lock()
	r.roles = next
	r.mu.Unlock()

	return nil
}

// RegisterRole adds or replaces a role in the in-memory map.
func (r *Registry) RegisterRole(name string, caps ...Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[name] = caps
}

// Capabilities returns the union of capabilities granted by roles.
// Unknown roles contribute nothing.
func (r *Registry) Capabilities(roles []string) []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[Capability]bool)
	var out []Capability
	for _, role := range roles {
		for _, c := range r.roles[role] {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// Roles returns the names of all registered roles.
func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.roles))
	for name := range r.roles {
		names = append(names, name)
	}
	return names
}
