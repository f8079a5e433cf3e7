// Package models defines the server-side domain types for the license
// authority: customers, active connections, and connection events.
package models

import (
	"time"

	"github.com/google/uuid"

	wire "github.com/glaciersoft/snowgate/pkg/models"
)

// Customer is a licensed organization. Org is the opaque token carried in
// the license key and is unique per customer. Seat totals use
// wire.UnlimitedSeats (-1) as the unlimited sentinel; the database stores
// the sentinel verbatim.
type Customer struct {
	ID               uuid.UUID `json:"id"`
	Org              string    `json:"org"`
	Name             string    `json:"name"`
	Tier             string    `json:"tier"`
	DeveloperSeats   int       `json:"developer_seats"`
	StakeholderSeats int       `json:"stakeholder_seats"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewCustomer creates a Customer with the given org token and seat totals.
func NewCustomer(org, name, tier string, devSeats, stakeSeats int, expiresAt time.Time) *Customer {
	now := time.Now()
	return &Customer{
		ID:               uuid.New(),
		Org:              org,
		Name:             name,
		Tier:             tier,
		DeveloperSeats:   devSeats,
		StakeholderSeats: stakeSeats,
		ExpiresAt:        expiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// SeatLimit returns the configured seat total for a role.
func (c *Customer) SeatLimit(role wire.Role) int {
	switch role {
	case wire.RoleDeveloper:
		return c.DeveloperSeats
	case wire.RoleStakeholder:
		return c.StakeholderSeats
	default:
		return 0
	}
}

// Expired reports whether the customer's entitlement has lapsed.
func (c *Customer) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
