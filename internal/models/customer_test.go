package models

import (
	"testing"
	"time"

	wire "github.com/glaciersoft/snowgate/pkg/models"
)

func TestCustomerSeatLimit(t *testing.T) {
	c := NewCustomer("acme", "Acme Inc", "enterprise", 5, wire.UnlimitedSeats,
		time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC))

	if got := c.SeatLimit(wire.RoleDeveloper); got != 5 {
		t.Errorf("SeatLimit(developer) = %d, want 5", got)
	}
	if got := c.SeatLimit(wire.RoleStakeholder); !wire.SeatsUnlimited(got) {
		t.Errorf("SeatLimit(stakeholder) = %d, want unlimited", got)
	}
	if got := c.SeatLimit(wire.Role("admin")); got != 0 {
		t.Errorf("SeatLimit(unknown role) = %d, want 0", got)
	}
}

func TestCustomerExpired(t *testing.T) {
	expiry := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	c := NewCustomer("acme", "Acme Inc", "team", 1, 1, expiry)

	if c.Expired(expiry.Add(-time.Second)) {
		t.Error("Expired() = true before the expiry instant")
	}
	if c.Expired(expiry) {
		t.Error("Expired() = true at the expiry instant; expiry is inclusive")
	}
	if !c.Expired(expiry.Add(time.Second)) {
		t.Error("Expired() = false after expiry")
	}
}

func TestConnectionStale(t *testing.T) {
	conn := NewActiveConnection(NewCustomer("acme", "Acme", "team", 1, 1, time.Now()).ID,
		"user-1", wire.RoleDeveloper, "10.0.0.1", "client/1.0")

	cutoff := conn.LastHeartbeat.Add(time.Second)
	if !conn.Stale(cutoff) {
		t.Error("Stale() = false for a heartbeat before the cutoff")
	}
	if conn.Stale(conn.LastHeartbeat) {
		t.Error("Stale() = true at exactly the heartbeat instant")
	}
}
