// Package models contains wire types shared between the SnowGate client SDK
// and the license authority server.
package models

// APIError represents a standard API error response.
type APIError struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Role identifies the seat class a connection consumes.
type Role string

const (
	// RoleDeveloper is a full-access seat.
	RoleDeveloper Role = "developer"
	// RoleStakeholder is a read-mostly seat.
	RoleStakeholder Role = "stakeholder"
)

// ValidRoles returns all recognized roles.
func ValidRoles() []Role {
	return []Role{RoleDeveloper, RoleStakeholder}
}

// IsValid checks if the role is a recognized value.
func (r Role) IsValid() bool {
	for _, valid := range ValidRoles() {
		if r == valid {
			return true
		}
	}
	return false
}

// UnlimitedSeats is the sentinel seat count meaning no limit for a role.
// On the wire (license keys, customer records) unlimited renders as 0 or -1
// depending on the format; in memory it is always this value.
const UnlimitedSeats = -1

// SeatsUnlimited reports whether a seat count represents unlimited.
func SeatsUnlimited(count int) bool {
	return count == UnlimitedSeats
}
