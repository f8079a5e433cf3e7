package models

import (
	"time"

	"github.com/google/uuid"

	wire "github.com/glaciersoft/snowgate/pkg/models"
)

// ConnectionEventType is a seat lifecycle transition.
type ConnectionEventType string

const (
	// EventConnect records a successful admission (fresh or reconnect).
	EventConnect ConnectionEventType = "connect"
	// EventDisconnect records a graceful release.
	EventDisconnect ConnectionEventType = "disconnect"
	// EventHeartbeat records a heartbeat refresh.
	EventHeartbeat ConnectionEventType = "heartbeat"
	// EventTimeout records a sweep eviction after a lapsed heartbeat.
	EventTimeout ConnectionEventType = "timeout"
	// EventRejected records an admission refused for lack of seats.
	EventRejected ConnectionEventType = "rejected"
)

// ConnectionEvent is one immutable audit record. SeatLimit and ActiveCount
// capture the budget and occupancy at decision time so a rejection's cause
// can be reconstructed later.
type ConnectionEvent struct {
	ID           uuid.UUID           `json:"id"`
	CustomerID   uuid.UUID           `json:"customer_id"`
	ConnectionID *uuid.UUID          `json:"connection_id,omitempty"`
	UserHash     string              `json:"user_hash"`
	Role         wire.Role           `json:"role"`
	Type         ConnectionEventType `json:"type"`
	SeatLimit    int                 `json:"seat_limit"`
	ActiveCount  int                 `json:"active_count"`
	Detail       string              `json:"detail,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// NewConnectionEvent creates an audit record for a lifecycle transition.
func NewConnectionEvent(customerID uuid.UUID, connectionID *uuid.UUID, userHash string, role wire.Role, typ ConnectionEventType, seatLimit, activeCount int) *ConnectionEvent {
	return &ConnectionEvent{
		ID:           uuid.New(),
		CustomerID:   customerID,
		ConnectionID: connectionID,
		UserHash:     userHash,
		Role:         role,
		Type:         typ,
		SeatLimit:    seatLimit,
		ActiveCount:  activeCount,
		CreatedAt:    time.Now(),
	}
}
