// Package db is the conversation store: SQLite-backed persistence for
// personalities, chats and their append-only message logs. The orchestrator
// never touches this package; callers read state here, run a turn, and write
// the results back.
package db

import (
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database with mutex-guarded exclusive access. SQLite
// handles one writer at a time; serializing in-process avoids busy errors.
type DB struct {
	db    *sql.DB
	mutex sync.Mutex
}

// NewDB opens the database at dbPath with WAL mode and foreign keys enabled.
func NewDB(dbPath string) (*DB, error) {
	dsn := dbPath + "?_journal_mode=WAL&_foreign_keys=on"

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	// Single connection so the mutex is the only serialization point.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	return &DB{db: sqlDB}, nil
}

// WithLock executes fn with exclusive database access.
func (d *DB) WithLock(fn func() error) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return fn()
}

// WithLockResult executes fn with exclusive database access and returns its
// result.
func WithLockResult[T any](d *DB, fn func() (T, error)) (T, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return fn()
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// tableExists checks if a table exists in the database.
func (d *DB) tableExists(tableName string) (bool, error) {
	count, err := WithLockResult(d, func() (int, error) {
		var n int
		err := d.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			tableName,
		).Scan(&n)
		return n, err
	})
	return count > 0, err
}
