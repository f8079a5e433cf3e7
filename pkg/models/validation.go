package models

import "time"

// ValidationRequest is the signed phone-home request sent to the license
// authority. The signature binds every other field; the authority rejects
// requests whose signature does not verify or whose timestamp is stale.
type ValidationRequest struct {
	LicenseKey    string `json:"license_key"`
	ClientVersion string `json:"client_version"`
	InstanceID    string `json:"instance_id"`
	Timestamp     int64  `json:"timestamp"`
	Signature     string `json:"signature"`
}

// SeatUsage is a point-in-time snapshot of one role's seat pressure.
// Limit is UnlimitedSeats when the role has no cap.
type SeatUsage struct {
	Limit  int `json:"limit"`
	Active int `json:"active"`
}

// ValidationResponse is the authority's verdict on a license.
// Valid=false is final: the client must not fall back to a cached result.
type ValidationResponse struct {
	Valid       bool                 `json:"valid"`
	Tier        string               `json:"tier,omitempty"`
	Features    []string             `json:"features,omitempty"`
	ExpiresAt   *time.Time           `json:"expires_at,omitempty"`
	Seats       map[string]SeatUsage `json:"seats,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
	Error       string               `json:"error,omitempty"`
	ValidatedAt time.Time            `json:"validated_at"`
}
