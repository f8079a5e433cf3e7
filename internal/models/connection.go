package models

import (
	"time"

	"github.com/google/uuid"

	wire "github.com/glaciersoft/snowgate/pkg/models"
)

// ActiveConnection is the authoritative row for one admitted seat.
// At most one row exists per (customer, user hash, role); a reconnect
// replaces the row rather than adding a second one.
type ActiveConnection struct {
	ID            uuid.UUID `json:"id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	UserHash      string    `json:"user_hash"`
	Role          wire.Role `json:"role"`
	Peer          string    `json:"peer,omitempty"`
	Client        string    `json:"client,omitempty"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// NewActiveConnection creates a connection row for a fresh admission.
func NewActiveConnection(customerID uuid.UUID, userHash string, role wire.Role, peer, client string) *ActiveConnection {
	now := time.Now()
	return &ActiveConnection{
		ID:            uuid.New(),
		CustomerID:    customerID,
		UserHash:      userHash,
		Role:          role,
		Peer:          peer,
		Client:        client,
		FirstSeenAt:   now,
		LastHeartbeat: now,
	}
}

// Stale reports whether the connection's heartbeat lapsed before the cutoff.
func (c *ActiveConnection) Stale(cutoff time.Time) bool {
	return c.LastHeartbeat.Before(cutoff)
}
