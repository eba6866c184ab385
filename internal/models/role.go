package models

import (
	"fmt"
	"strings"
)

// Role is the caller's marketplace role, resolved once from the access token.
type Role string

const (
	RoleClient          Role = "client"
	RoleProvider        Role = "provider"
	RolePendingProvider Role = "pending_provider"
	RoleAdmin           Role = "admin"
)

// ParseRole accepts the known roles case-insensitively; "pending-provider" is tolerated.
func ParseRole(raw string) (Role, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	switch Role(normalized) {
	case RoleClient, RoleProvider, RolePendingProvider, RoleAdmin:
		return Role(normalized), nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

func (r Role) String() string { return string(r) }

// CanManageProfile reports whether the role owns a provider profile.
func (r Role) CanManageProfile() bool {
	return r == RoleProvider || r == RolePendingProvider
}

// CanOfferServices reports whether the role may publish services.
func (r Role) CanOfferServices() bool {
	return r == RoleProvider || r == RoleAdmin
}

// Actor is an authenticated caller.
type Actor struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
