// Package gate maps pre-resolved caller roles to permissions. Session and
// token verification happen upstream; this package only answers "may this
// role perform this action", which is the sole authorization decision the
// engine consumes.
package gate

import (
	"errors"
	"strings"
)

// Action describes the kind of operation a caller wants to perform.
type Action string

const (
	ActionView            Action = "view"
	ActionCreate          Action = "create"
	ActionUpdate          Action = "update"
	ActionDelete          Action = "delete"
	ActionList            Action = "list"
	ActionReplacePayments Action = "replace_payments"
)

// Permission represents an allowed action on a resource type.
// Format: "resource:action" (e.g., "convention:replace_payments").
type Permission string

func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

func (p Permission) Parse() (resourceType string, action Action) {
	parts := strings.SplitN(string(p), ":", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], Action(parts[1])
}

// Wildcards for super permissions
const (
	WildcardAll                     = "*"
	PermissionSuperAdmin Permission = "*:*"
)

// Matches checks if this permission matches a requested permission.
// Supports wildcards: "*:*" matches all, "convention:*" matches all
// convention actions.
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionSuperAdmin {
		return true
	}
	if p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, _ := requested.Parse()
	if res == reqRes && string(act) == WildcardAll {
		return true
	}
	return false
}

// Profile represents a role with a set of permissions.
type Profile struct {
	name        string
	permissions map[Permission]bool
}

func NewProfile(name string, permissions ...Permission) *Profile {
	p := &Profile{name: name, permissions: make(map[Permission]bool)}
	for _, perm := range permissions {
		p.permissions[perm] = true
	}
	return p
}

func (p *Profile) Name() string { return p.name }

// HasPermission checks if the profile has the requested permission.
// Supports wildcard matching.
func (p *Profile) HasPermission(requested Permission) bool {
	for perm := range p.permissions {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}

// Sentinel errors returned by Gate.Authorize.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoProfile    = errors.New("no profile defined for role")
)

// Gate is the central authorization checkpoint: a registry of role profiles.
type Gate struct {
	profiles map[string]*Profile
}

func New() *Gate {
	return &Gate{profiles: make(map[string]*Profile)}
}

// Register adds a profile for a role name, overwriting any existing one.
func (g *Gate) Register(role string, p *Profile) {
	g.profiles[role] = p
}

// Authorize returns an error when the role is unknown or lacks the permission.
func (g *Gate) Authorize(role string, requested Permission) error {
	p, ok := g.profiles[role]
	if !ok {
		return ErrNoProfile
	}
	if !p.HasPermission(requested) {
		return ErrUnauthorized
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate) Can(role string, requested Permission) bool {
	return g.Authorize(role, requested) == nil
}
