// Package sqlite implements the repository interfaces on an embedded SQLite file.
//
// It is the backend for local development (STORE_DRIVER=sqlite) and for the
// repository, service and router tests, which run it in ":memory:". The
// production document store lives in repository/mongostore; both backends honour
// the same contracts, including the UNIQUE(post_id, applicant_email)
// constraint and the single-transaction application submission.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C toolchain is
// needed to build or test.
//
// CONNECTION POOL:
// The pool is capped at one connection. An in-memory database exists per
// connection, so a larger pool would hand different goroutines different
// (empty) databases. SQLite serializes writers anyway.
// Every query must therefore close its rows before issuing the next query.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/volunteerhub/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and hands out the per-collection repositories.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/volunteerhub.db" → file-based database (persistent)
//   - ":memory:"             → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight on file databases.
	// It is a no-op for ":memory:".
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Posts returns the post repository backed by this database.
func (db *DB) Posts() repository.PostRepository { return &PostDB{db: db} }

// Users returns the user repository backed by this database.
func (db *DB) Users() repository.UserRepository { return &UserDB{db: db} }

// Applications returns the application repository backed by this database.
func (db *DB) Applications() repository.ApplicationRepository { return &ApplicationDB{db: db} }

// Ping checks that the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the connection pool.
func (db *DB) Close(_ context.Context) error {
	return db.conn.Close()
}

// migrate creates the three collections as tables. CREATE ... IF NOT EXISTS
// makes it safe to run on every start.
//
// applied_campaigns holds a JSON array of post IDs; SQLite has no array type.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id                    TEXT PRIMARY KEY,
			title                 TEXT NOT NULL,
			category              TEXT NOT NULL DEFAULT '',
			photo_url             TEXT NOT NULL DEFAULT '',
			deadline              TEXT NOT NULL DEFAULT '',
			location              TEXT NOT NULL DEFAULT '',
			description           TEXT NOT NULL DEFAULT '',
			organizer_name        TEXT NOT NULL DEFAULT '',
			organizer_email       TEXT NOT NULL DEFAULT '',
			volunteers_needed     INTEGER NOT NULL DEFAULT 0,
			interested_volunteers INTEGER NOT NULL DEFAULT 0,
			created_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_posts_organizer_email ON posts(organizer_email);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                TEXT PRIMARY KEY,
			display_name      TEXT NOT NULL,
			email             TEXT NOT NULL UNIQUE,
			photo_url         TEXT NOT NULL DEFAULT '',
			applied_campaigns TEXT NOT NULL DEFAULT '[]',
			created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// UNIQUE(post_id, applicant_email) is the duplicate-application guard.
	// A concurrent second submission fails here rather than in a pre-check.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS applications (
			id                 TEXT PRIMARY KEY,
			post_id            TEXT NOT NULL,
			applicant_email    TEXT NOT NULL,
			post_creator_email TEXT NOT NULL DEFAULT '',
			status             TEXT NOT NULL,
			created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (post_id, applicant_email)
		);
		CREATE INDEX IF NOT EXISTS idx_applications_applicant ON applications(applicant_email);
		CREATE INDEX IF NOT EXISTS idx_applications_creator ON applications(post_creator_email);
	`)
	if err != nil {
		return fmt.Errorf("creating applications table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE") {
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
