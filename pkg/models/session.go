package models

import (
	"time"

	"github.com/google/uuid"
)

// OpenSessionRequest is the admission handshake for a working connection.
// UserHash is the hashed user identity; the server never sees raw usernames.
type OpenSessionRequest struct {
	Customer string `json:"customer" binding:"required"`
	UserHash string `json:"user_hash" binding:"required"`
	Role     Role   `json:"role" binding:"required"`
	Peer     string `json:"peer,omitempty"`
	Client   string `json:"client,omitempty"`
}

// OpenSessionResponse is returned on successful admission.
type OpenSessionResponse struct {
	ConnectionID      uuid.UUID `json:"connection_id"`
	HeartbeatInterval int       `json:"heartbeat_interval_seconds"`
}

// SessionRejection explains a refused admission. SeatLimit and ActiveCount
// are the budget and occupancy observed by the admission transaction.
type SessionRejection struct {
	Reason      string `json:"reason"`
	SeatLimit   int    `json:"seat_limit"`
	ActiveCount int    `json:"active_count"`
}

// SessionHeartbeat acknowledges a heartbeat.
type SessionHeartbeat struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	SeenAt       time.Time `json:"seen_at"`
}
