package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadClient(t *testing.T) {
	t.Setenv("SNOWGATE_LICENSE_KEY", "")
	t.Setenv("SNOWGATE_AUTHORITY_URL", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `
license_key: SNOW-ENT-ACME-5/1-20261231-DEADBEEF
authority_url: https://license.example.com
cache_backend: sqlite
recheck_interval: 12h
grace_period: 72h
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.LicenseKey != "SNOW-ENT-ACME-5/1-20261231-DEADBEEF" {
		t.Errorf("LicenseKey = %q", cfg.LicenseKey)
	}
	if cfg.AuthorityURL != "https://license.example.com" {
		t.Errorf("AuthorityURL = %q", cfg.AuthorityURL)
	}
	if cfg.CacheBackend != "sqlite" {
		t.Errorf("CacheBackend = %q, want sqlite", cfg.CacheBackend)
	}
	if cfg.RecheckInterval != 12*time.Hour {
		t.Errorf("RecheckInterval = %v, want 12h", cfg.RecheckInterval)
	}
	if cfg.GracePeriod != 72*time.Hour {
		t.Errorf("GracePeriod = %v, want 72h", cfg.GracePeriod)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadClientEnvOverrides(t *testing.T) {
	t.Setenv("SNOWGATE_LICENSE_KEY", "SNOW-TEAM-ENVCO-20270101-CAFEF00D")
	t.Setenv("SNOWGATE_AUTHORITY_URL", "https://env.example.com")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte("license_key: from-file\nauthority_url: https://file.example.com\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.LicenseKey != "SNOW-TEAM-ENVCO-20270101-CAFEF00D" {
		t.Errorf("LicenseKey = %q, want the environment to win", cfg.LicenseKey)
	}
	if cfg.AuthorityURL != "https://env.example.com" {
		t.Errorf("AuthorityURL = %q, want the environment to win", cfg.AuthorityURL)
	}
}

func TestLoadClientMissingFile(t *testing.T) {
	t.Setenv("SNOWGATE_LICENSE_KEY", "")
	t.Setenv("SNOWGATE_AUTHORITY_URL", "")

	cfg, err := LoadClient(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("LoadClient() error = %v, want empty config for a missing file", err)
	}
	if cfg.LicenseKey != "" {
		t.Errorf("LicenseKey = %q, want empty", cfg.LicenseKey)
	}
}

func TestClientConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr bool
	}{
		{"valid", ClientConfig{AuthorityURL: "https://x", CacheBackend: "file"}, false},
		{"default backend", ClientConfig{AuthorityURL: "https://x"}, false},
		{"missing authority", ClientConfig{}, true},
		{"bad backend", ClientConfig{AuthorityURL: "https://x", CacheBackend: "redis"}, true},
		{"negative recheck", ClientConfig{AuthorityURL: "https://x", RecheckInterval: -time.Hour}, true},
		{"negative grace", ClientConfig{AuthorityURL: "https://x", GracePeriod: -time.Hour}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientConfigSaveRoundTrip(t *testing.T) {
	t.Setenv("SNOWGATE_LICENSE_KEY", "")
	t.Setenv("SNOWGATE_AUTHORITY_URL", "")

	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	want := &ClientConfig{
		LicenseKey:   "SNOW-PRO-SAVECO-10/25-20270630-ABCD1234",
		AuthorityURL: "https://license.example.com",
		CacheBackend: "file",
	}
	if err := want.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if got.LicenseKey != want.LicenseKey || got.AuthorityURL != want.AuthorityURL {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}
