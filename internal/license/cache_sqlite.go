package license

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteCacheStore is a CacheStore backed by a local SQLite database, for
// installs whose host product already carries an embedded DB. Writes go
// through a transaction so the cache is either the old snapshot or the new
// one, never a torn write.
type SQLiteCacheStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteCacheStore opens (creating if needed) the cache database under
// configDir.
func NewSQLiteCacheStore(configDir string, logger zerolog.Logger) (*SQLiteCacheStore, error) {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}
	dbPath := filepath.Join(configDir, "entitlement.db")

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	store := &SQLiteCacheStore{
		db:     db,
		logger: logger.With().Str("component", "validation_cache_sqlite").Logger(),
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache database: %w", err)
	}
	return store, nil
}

func (s *SQLiteCacheStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS validation_cache (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			validated INTEGER NOT NULL,
			checked_at TEXT NOT NULL,
			response TEXT
		);
	`)
	return err
}

// Load reads the cached verdict. A missing row or undecodable snapshot is
// treated as absent.
func (s *SQLiteCacheStore) Load() (*CachedValidation, error) {
	var (
		validated int
		checkedAt string
		response  sql.NullString
	)
	err := s.db.QueryRow(`SELECT validated, checked_at, response FROM validation_cache WHERE id = 1`).
		Scan(&validated, &checkedAt, &response)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read validation cache: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, checkedAt)
	if err != nil {
		s.logger.Warn().Err(err).Msg("validation cache corrupt, treating as absent")
		return nil, nil
	}

	cached := &CachedValidation{
		Validated: validated != 0,
		CheckedAt: ts,
	}
	if response.Valid && response.String != "" {
		if err := json.Unmarshal([]byte(response.String), &cached.Response); err != nil {
			s.logger.Warn().Err(err).Msg("validation cache response corrupt, treating as absent")
			return nil, nil
		}
	}
	return cached, nil
}

// Save upserts the single cache row.
func (s *SQLiteCacheStore) Save(cached *CachedValidation) error {
	var response any
	if cached.Response != nil {
		data, err := json.Marshal(cached.Response)
		if err != nil {
			return fmt.Errorf("marshal validation cache: %w", err)
		}
		response = string(data)
	}

	validated := 0
	if cached.Validated {
		validated = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO validation_cache (id, validated, checked_at, response)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			validated = excluded.validated,
			checked_at = excluded.checked_at,
			response = excluded.response
	`, validated, cached.CheckedAt.UTC().Format(time.RFC3339Nano), response)
	if err != nil {
		return fmt.Errorf("write validation cache: %w", err)
	}
	return nil
}

// Clear removes the cache row.
func (s *SQLiteCacheStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM validation_cache WHERE id = 1`); err != nil {
		return fmt.Errorf("clear validation cache: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteCacheStore) Close() error {
	return s.db.Close()
}
