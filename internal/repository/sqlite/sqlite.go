// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure-Go translation of SQLite: the server is a
// single binary with a single data file, and ":memory:" gives every test its
// own throwaway database.
//
// TABLES:
//   - users        one row per account (read-only from the public API)
//   - books        one row per book, is_public stored as 0/1
//   - book_shares  join table of (book_id, user_id) grants
//   - messages     directed messages, read stored as 0/1
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements every repository
// interface in internal/repository.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/bookshelf.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" gets its own empty database, so the
	// pool must never grow past one connection.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Every statement is idempotent, so it runs on
// each start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			avatar        TEXT NOT NULL DEFAULT '',
			bio           TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS books (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			author      TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			cover_url   TEXT NOT NULL DEFAULT '',
			file_url    TEXT NOT NULL DEFAULT '',
			file_key    TEXT NOT NULL DEFAULT '',
			uploaded_by TEXT NOT NULL,
			uploaded_at DATETIME NOT NULL,
			genre       TEXT NOT NULL DEFAULT '',
			pages       INTEGER,
			language    TEXT NOT NULL DEFAULT '',
			is_public   INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_books_public_uploaded ON books(is_public, uploaded_at);
	`)
	if err != nil {
		return fmt.Errorf("creating books table: %w", err)
	}

	// No foreign key to books: deletion removes share rows explicitly inside
	// the same transaction as the book row.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS book_shares (
			id        TEXT PRIMARY KEY,
			book_id   TEXT NOT NULL,
			user_id   TEXT NOT NULL,
			shared_at DATETIME NOT NULL,
			UNIQUE (book_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_book_shares_user_id ON book_shares(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating book_shares table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			sender_id   TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			content     TEXT NOT NULL,
			timestamp   DATETIME NOT NULL,
			read        INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("creating messages table: %w", err)
	}

	// Databases created before books could carry an uploaded file.
	if err := db.addColumnIfNotExists("books", "file_key", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding file_key to books: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// It keeps ALTER TABLE migrations idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// boolToInt stores booleans as the 0/1 integers the schema uses.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
