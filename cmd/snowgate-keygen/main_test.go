package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	wire "github.com/glaciersoft/snowgate/pkg/models"
)

// execute runs the CLI with the given args and returns the error.
func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	return root.Execute()
}

func TestCustomerCreateRejectsUnknownTier(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	err := execute(t, "customer", "create",
		"--org", "ACME", "--name", "Acme Corp", "--tier", "gold", "--expires", "2026-12-31")
	if err == nil || !strings.Contains(err.Error(), "unknown tier") {
		t.Fatalf("customer create error = %v, want unknown tier rejection", err)
	}
}

func TestCustomerCreateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	err := execute(t, "customer", "create",
		"--org", "ACME", "--name", "Acme Corp", "--tier", "enterprise", "--expires", "2026-12-31")
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("customer create error = %v, want DATABASE_URL requirement", err)
	}
}

func TestCustomerCreateRequiresFlags(t *testing.T) {
	if err := execute(t, "customer", "create", "--org", "ACME"); err == nil {
		t.Fatal("customer create without required flags succeeded")
	}
}

func TestCustomerSetSeatsRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	err := execute(t, "customer", "set-seats", "--org", "ACME", "--dev-seats", "10")
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("customer set-seats error = %v, want DATABASE_URL requirement", err)
	}
}

func TestEndOfDay(t *testing.T) {
	got, err := endOfDay("2026-12-31")
	if err != nil {
		t.Fatalf("endOfDay() error = %v", err)
	}
	want := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("endOfDay() = %v, want %v", got, want)
	}

	if _, err := endOfDay("31-12-2026"); err == nil {
		t.Error("endOfDay() accepted a non YYYY-MM-DD date")
	}
}

func TestSeatCount(t *testing.T) {
	if got := seatCount(0); got != wire.UnlimitedSeats {
		t.Errorf("seatCount(0) = %d, want the unlimited sentinel", got)
	}
	if got := seatCount(25); got != 25 {
		t.Errorf("seatCount(25) = %d, want 25", got)
	}
}
