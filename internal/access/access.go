// Package access decides whether a guild member may act as staff.
package access

import (
	"slices"

	"github.com/lollopanta/simpleReviewBot/internal/storage"
)

// Actor is the identity snapshot of whoever triggered an interaction
type Actor struct {
	ID            string
	Username      string
	Administrator bool
	RoleIDs       []string
}

// IsStaff reports whether the actor is an administrator or holds the guild's staff role
func IsStaff(actor Actor, settings *storage.GuildSettings) bool {
	if actor.Administrator {
		return true
	}
	if settings == nil || settings.Roles.StaffRole == "" {
		return false
	}
	return slices.Contains(actor.RoleIDs, settings.Roles.StaffRole)
}
