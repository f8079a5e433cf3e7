package models

import "github.com/google/uuid"

// AdmissionDecision is the outcome of one seat admission attempt.
// SeatLimit and ActiveCount are the values observed inside the admission
// transaction; for admitted connections ActiveCount includes the new row.
type AdmissionDecision struct {
	Admitted     bool
	Reconnect    bool
	ConnectionID uuid.UUID
	Reason       string
	SeatLimit    int
	ActiveCount  int
}
