// Package rbac defines the closed role set and the request principal used by
// authorization decisions.
package rbac

import (
	"context"
	"fmt"
	"strings"
)

// Role is one of the closed set of role identifiers. Free-form role strings
// are rejected at the boundary so a typo cannot silently grant or deny
// access.
type Role string

const (
	// RoleAdmin may approve accounts and manage any article.
	RoleAdmin Role = "Admin"
	// RoleContributor may create articles and manage their own.
	RoleContributor Role = "Contributor"
)

// ParseRole validates a stored role name against the closed enumeration.
func ParseRole(name string) (Role, error) {
	switch strings.TrimSpace(name) {
	case string(RoleAdmin):
		return RoleAdmin, nil
	case string(RoleContributor):
		return RoleContributor, nil
	default:
		return "", fmt.Errorf("rbac: unknown role %q", name)
	}
}

// RoleSet is the set of roles held by a principal.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the role.
func (s RoleSet) Has(role Role) bool {
	_, ok := s[role]
	return ok
}

// Principal is the decision-time snapshot of the acting user. It is read
// once per request and never mutated.
type Principal struct {
	ID       int64
	Email    string
	Approved bool
	Roles    RoleSet
}

// HasRole reports whether the principal holds the role.
func (p Principal) HasRole(role Role) bool {
	return p.Roles.Has(role)
}

// IsAdmin is a convenience for templates, which cannot pass typed Role
// arguments.
func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context. The second
// return is false for anonymous requests.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok && p != nil
}
