package license

import (
	"strings"
	"testing"
	"time"
)

func TestSignerRoundTrip(t *testing.T) {
	s := NewSigner(testSecret)
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Unix()

	sig, err := s.Sign("SNOW-ENT-ACME-5/1-20261231-DEADBEEF", "3.2.0", "abc123", ts)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !s.Verify("SNOW-ENT-ACME-5/1-20261231-DEADBEEF", "3.2.0", "abc123", ts, sig) {
		t.Fatal("Verify() = false for a signature the signer just produced")
	}
}

func TestVerifyRejectsTamperedFields(t *testing.T) {
	s := NewSigner(testSecret)
	ts := time.Now().Unix()
	sig, err := s.Sign("key", "1.0.0", "instance-a", ts)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	tests := []struct {
		name                       string
		key, version, instance     string
		timestamp                  int64
	}{
		{"different key", "other-key", "1.0.0", "instance-a", ts},
		{"different version", "key", "1.0.1", "instance-a", ts},
		{"different instance", "key", "1.0.0", "instance-b", ts},
		{"different timestamp", "key", "1.0.0", "instance-a", ts + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s.Verify(tt.key, tt.version, tt.instance, tt.timestamp, sig) {
				t.Error("Verify() = true for tampered request fields")
			}
		})
	}
}

func TestVerifyPerInstanceKeys(t *testing.T) {
	s := NewSigner(testSecret)
	ts := time.Now().Unix()

	sigA, err := s.Sign("key", "1.0.0", "instance-a", ts)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	sigB, err := s.Sign("key", "1.0.0", "instance-b", ts)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if sigA == sigB {
		t.Fatal("signatures for different instances are identical; signing key is not per-instance")
	}
}

func TestVerifySignatureCaseInsensitive(t *testing.T) {
	s := NewSigner(testSecret)
	ts := time.Now().Unix()
	sig, err := s.Sign("key", "1.0.0", "inst", ts)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !s.Verify("key", "1.0.0", "inst", ts, strings.ToUpper(sig)) {
		t.Error("Verify() = false for uppercased hex signature")
	}
}

func TestVerifyDifferentSecret(t *testing.T) {
	ts := time.Now().Unix()
	sig, err := NewSigner(testSecret).Sign("key", "1.0.0", "inst", ts)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if NewSigner([]byte("other")).Verify("key", "1.0.0", "inst", ts, sig) {
		t.Error("Verify() = true across different secrets")
	}
}

func TestFresh(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	skew := 5 * time.Minute

	tests := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{"exact", now, true},
		{"slightly behind", now.Add(-4 * time.Minute), true},
		{"slightly ahead", now.Add(4 * time.Minute), true},
		{"at the boundary", now.Add(-5 * time.Minute), true},
		{"too old", now.Add(-5*time.Minute - time.Second), false},
		{"too far ahead", now.Add(5*time.Minute + time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fresh(tt.ts.Unix(), now, skew); got != tt.want {
				t.Errorf("Fresh(%v) = %v, want %v", tt.ts, got, tt.want)
			}
		})
	}
}
