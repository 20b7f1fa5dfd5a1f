package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mutecomm/go-sqlcipher/v4"
)

// FlagFactoryReset is set by factory_reset and consumed on the next start.
const FlagFactoryReset = "factory_reset"

const stateSchema = `
CREATE TABLE IF NOT EXISTS flags (
	name       TEXT PRIMARY KEY,
	value      INTEGER NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);`

// StateStore keeps small persistent flags in a SQLCipher database.
type StateStore struct {
	db        *sql.DB
	dbPath    string
	encrypted bool
}

// OpenStateStore opens the state database, creating it when missing.
// With an empty passphrase the database is not encrypted. A wrong
// passphrase for an existing database is an error.
func OpenStateStore(dbPath string, passphrase string) (*StateStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	encrypted := passphrase != ""
	if encrypted {
		dsn += "&_pragma_key=" + url.QueryEscape(passphrase)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Reading the schema fails when the key does not match.
	var tables int
	if err := db.QueryRow("SELECT count(*) FROM sqlite_master").Scan(&tables); err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid passphrase or corrupted database: %w", err)
	}

	if _, err := db.Exec(stateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	return &StateStore{
		db:        db,
		dbPath:    dbPath,
		encrypted: encrypted,
	}, nil
}

// SetFlag stores the value of a named flag.
func (s *StateStore) SetFlag(ctx context.Context, name string, on bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flags (name, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, on)
	if err != nil {
		return fmt.Errorf("failed to set flag %s: %w", name, err)
	}
	return nil
}

// Flag reports a named flag. Unknown flags are off.
func (s *StateStore) Flag(ctx context.Context, name string) (bool, error) {
	var on bool
	err := s.db.QueryRowContext(ctx, "SELECT value FROM flags WHERE name = ?", name).Scan(&on)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read flag %s: %w", name, err)
	}
	return on, nil
}

// Close closes the database connection.
func (s *StateStore) Close() error {
	return s.db.Close()
}

// IsEncrypted returns whether the database is encrypted.
func (s *StateStore) IsEncrypted() bool {
	return s.encrypted
}

// Path returns the database file path.
func (s *StateStore) Path() string {
	return s.dbPath
}
