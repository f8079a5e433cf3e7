package middleware

import "testing"

func TestNewRateLimiter(t *testing.T) {
	if _, err := NewRateLimiter("120-M", ""); err != nil {
		t.Fatalf("NewRateLimiter() error = %v", err)
	}
}

func TestNewRateLimiterBadRate(t *testing.T) {
	if _, err := NewRateLimiter("lots", ""); err == nil {
		t.Fatal("NewRateLimiter() error = nil for an unparseable rate")
	}
}

func TestNewRateLimiterBadRedisURL(t *testing.T) {
	if _, err := NewRateLimiter("120-M", "not-a-url"); err == nil {
		t.Fatal("NewRateLimiter() error = nil for an unparseable redis URL")
	}
}
