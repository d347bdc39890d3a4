// Package sqlite implements the repository interfaces on top of an
// embedded SQLite database (modernc.org/sqlite — pure Go, no CGo).
//
// SQLite's serialized transaction model is what the credit ledger's
// atomicity guarantee rests on: Reserve runs its read-modify-write inside
// a single transaction, so two concurrent reservations for one user can
// never both observe the same stale balance.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and hands out the per-collection
// repositories. The server owns the lifecycle: New opens and migrates,
// Close flushes the WAL and releases the file lock on shutdown.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" in tests for a throwaway database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database exists per connection: with the default pool a
	// second connection would see an empty schema. Pin the pool to one.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in flight — required
	// for a web server where requests hit the DB in parallel.
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

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns the user repository backed by this database.
func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }

// LoginTokens returns the magic-link token repository.
func (db *DB) LoginTokens() *LoginTokenDB { return &LoginTokenDB{conn: db.conn} }

// Characters returns the character repository.
func (db *DB) Characters() *CharacterDB { return &CharacterDB{conn: db.conn} }

// Generations returns the generation history repository.
func (db *DB) Generations() *GenerationDB { return &GenerationDB{conn: db.conn} }

// Credits returns the credit ledger.
func (db *DB) Credits() *CreditDB { return &CreditDB{conn: db.conn} }

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                TEXT PRIMARY KEY,
			email             TEXT NOT NULL UNIQUE,
			name              TEXT NOT NULL DEFAULT '',
			email_verified_at DATETIME,
			created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS login_tokens (
			id          TEXT PRIMARY KEY,
			email       TEXT NOT NULL,
			token_hash  TEXT NOT NULL,
			expires_at  DATETIME NOT NULL,
			consumed_at DATETIME,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating login_tokens table: %w", err)
	}

	// image_ids is a JSON array of object-store references. The character
	// record only ever holds pointers into the object store, never bytes.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS characters (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			name       TEXT NOT NULL,
			image_ids  TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_characters_user_id ON characters(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating characters table: %w", err)
	}

	// character_mentions is a JSON array of {characterId, characterName}
	// snapshots. Append-only — no UPDATE or DELETE is ever issued.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS generations (
			id                 TEXT PRIMARY KEY,
			user_id            TEXT NOT NULL REFERENCES users(id),
			prompt             TEXT NOT NULL,
			character_mentions TEXT NOT NULL DEFAULT '[]',
			reference_image_id TEXT NOT NULL DEFAULT '',
			generated_image_id TEXT NOT NULL,
			model              TEXT NOT NULL,
			created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_generations_user_id ON generations(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating generations table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_credits (
			user_id TEXT PRIMARY KEY REFERENCES users(id),
			credits INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating user_credits table: %w", err)
	}

	return nil
}
