package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultClientDir returns the default client config directory (~/.snowgate).
func DefaultClientDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".snowgate"), nil
}

// DefaultClientPath returns the default client config file path
// (~/.snowgate/config.yml).
func DefaultClientPath() (string, error) {
	dir, err := DefaultClientDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// ClientConfig holds the client SDK's configuration. The license key may
// come from the file or from SNOWGATE_LICENSE_KEY, which takes precedence.
type ClientConfig struct {
	LicenseKey   string `yaml:"license_key,omitempty"`
	AuthorityURL string `yaml:"authority_url,omitempty"`

	// CacheBackend selects the validation cache store: "file" (default)
	// or "sqlite".
	CacheBackend string `yaml:"cache_backend,omitempty"`
	CacheDir     string `yaml:"cache_dir,omitempty"`

	RecheckInterval time.Duration `yaml:"recheck_interval,omitempty"`
	GracePeriod     time.Duration `yaml:"grace_period,omitempty"`
}

// Validate checks that the configuration can drive a validation.
func (c *ClientConfig) Validate() error {
	if c.AuthorityURL == "" {
		return fmt.Errorf("authority_url is required")
	}
	switch c.CacheBackend {
	case "", "file", "sqlite":
		// valid
	default:
		return fmt.Errorf("unknown cache_backend %q", c.CacheBackend)
	}
	if c.RecheckInterval < 0 {
		return fmt.Errorf("recheck_interval must not be negative")
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("grace_period must not be negative")
	}
	return nil
}

// LoadClient reads the client configuration from the given path. A missing
// file yields an empty config so the environment can supply everything.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if key := os.Getenv("SNOWGATE_LICENSE_KEY"); key != "" {
		cfg.LicenseKey = key
	}
	if url := os.Getenv("SNOWGATE_AUTHORITY_URL"); url != "" {
		cfg.AuthorityURL = url
	}
	if cfg.CacheDir == "" {
		if dir, err := DefaultClientDir(); err == nil {
			cfg.CacheDir = dir
		}
	}
	return cfg, nil
}

// Save writes the client configuration to the given path with restrictive
// permissions, creating the directory if needed.
func (c *ClientConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
