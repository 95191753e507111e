// Package team manages the organization roster: who can log in, what role
// they hold, and which members can be assigned to deals.
package team

import (
	"time"

	"github.com/google/uuid"
)

// Role is a team member's function within the organization.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleTelesales Role = "telesales"
	RoleBDM       Role = "bdm"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTelesales, RoleBDM:
		return true
	}
	return false
}

// CanManageTeam reports whether the role may add or edit members.
func CanManageTeam(r Role) bool {
	return r == RoleAdmin || r == RoleManager
}

// Member is one person on the organization roster. CommissionRateBps is
// display metadata only; the commission engines carry their own rates.
type Member struct {
	ID                uuid.UUID `json:"id"`
	OrganizationID    uuid.UUID `json:"organizationId"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Role              Role      `json:"role"`
	CommissionRateBps int32     `json:"commissionRateBps"`
	Active            bool      `json:"active"`
	PasswordHash      string    `json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
