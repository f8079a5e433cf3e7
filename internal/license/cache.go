package license

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	wire "github.com/glaciersoft/snowgate/pkg/models"
)

// cacheFile is the filename under the config dir holding the cached verdict.
const cacheFile = "validation.json"

// CachedValidation is the persisted snapshot of the last successful
// phone-home. CheckedAt anchors both the recheck interval and the grace
// period horizon.
type CachedValidation struct {
	Validated bool                     `json:"validated"`
	CheckedAt time.Time                `json:"checked_at"`
	Response  *wire.ValidationResponse `json:"response,omitempty"`
}

// Age returns how long ago the cached verdict was obtained.
func (c *CachedValidation) Age(now time.Time) time.Duration {
	return now.Sub(c.CheckedAt)
}

// CacheStore persists the last validation result. Load returns (nil, nil)
// when no usable cache exists; corrupt contents decode to absent and never
// propagate past this boundary.
type CacheStore interface {
	Load() (*CachedValidation, error)
	Save(cached *CachedValidation) error
	Clear() error
}

// FileCacheStore is the default CacheStore, writing a JSON file with a
// temp-file-and-rename so a crash mid-write cannot leave a half-written file.
type FileCacheStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileCacheStore creates a file-backed cache store under configDir.
func NewFileCacheStore(configDir string, logger zerolog.Logger) *FileCacheStore {
	return &FileCacheStore{
		path:   filepath.Join(configDir, cacheFile),
		logger: logger.With().Str("component", "validation_cache").Logger(),
	}
}

// Load reads the cached verdict. Missing or unparseable files are absent.
func (s *FileCacheStore) Load() (*CachedValidation, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read validation cache: %w", err)
	}

	var cached CachedValidation
	if err := json.Unmarshal(data, &cached); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("validation cache corrupt, treating as absent")
		return nil, nil
	}
	if cached.CheckedAt.IsZero() {
		return nil, nil
	}
	return &cached, nil
}

// Save atomically persists the cached verdict.
func (s *FileCacheStore) Save(cached *CachedValidation) error {
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal validation cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write validation cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace validation cache: %w", err)
	}
	return nil
}

// Clear removes the cached verdict.
func (s *FileCacheStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove validation cache: %w", err)
	}
	return nil
}
