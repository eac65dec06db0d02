// Package credstore persists the single bearer credential for the local
// Solvia session in a SQLite key-value table, optionally encrypted at rest.
package credstore

import (
	"fmt"
	"sync"

	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
	"github.com/petpeevephobia/solvia/internal/infrastructure/persistence/database"
	"github.com/petpeevephobia/solvia/internal/infrastructure/security"
)

const credentialKey = "bearer_token"

// Store is a synchronous key-value credential store backed by SQLite.
// All reads and writes complete before returning; there is no async path,
// so a credential written by Set is immediately visible to Get.
type Store struct {
	db     *database.DB
	aesKey string // hex-encoded; empty disables encryption at rest
	logger *logging.ChanneledLogger
	mu     sync.Mutex
}

// NewStore opens (or creates) the credential database at path and ensures
// the backing table exists.
func NewStore(path, aesKey string, logger *logging.ChanneledLogger) (*Store, error) {
	db, err := database.NewConnectionWithLogger("sqlite3", path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS credentials (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize credential store schema: %w", err)
	}

	return &Store{db: db, aesKey: aesKey, logger: logger}, nil
}

// Get returns the stored bearer token. The second return value reports
// whether a credential is present; an unreadable credential is treated
// as absent.
func (s *Store) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	row := s.db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, credentialKey)
	if err := row.Scan(&value); err != nil {
		return "", false
	}

	if s.aesKey != "" {
		decrypted, err := security.Decrypt(value, s.aesKey)
		if err != nil {
			s.logger.Database().Warn("Stored credential could not be decrypted, treating as absent", "error", err.Error())
			return "", false
		}
		value = decrypted
	}

	if value == "" {
		return "", false
	}
	return value, true
}

// Set stores the bearer token, replacing any previous credential.
func (s *Store) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := token
	if s.aesKey != "" {
		encrypted, err := security.Encrypt(token, s.aesKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt credential: %w", err)
		}
		value = encrypted
	}

	_, err := s.db.Exec(
		`INSERT INTO credentials (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		credentialKey, value,
	)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	s.logger.Database().Debug("Credential stored")
	return nil
}

// Clear removes the stored credential. Clearing an empty store is a no-op.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM credentials WHERE key = ?`, credentialKey); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}

	s.logger.Database().Debug("Credential cleared")
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
