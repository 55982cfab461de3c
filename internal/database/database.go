package database

import (
	"database/sql"
	"net/url"
	"strings"

	"github.com/samber/oops"
	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new SQLite connection pool. A single connection serializes
// writers; busy_timeout makes concurrent callers wait rather than fail.
func New(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dataSourceName))
	if err != nil {
		return nil, oops.Code("DB_OPEN_FAILED").With("driver", "sqlite").Wrap(err)
	}
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("driver", "sqlite").With("path", dataSourceName).Wrap(err)
	}
	return db, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	pragmas := url.Values{}
	pragmas.Add("_pragma", "foreign_keys(1)")
	pragmas.Add("_pragma", "busy_timeout(5000)")
	pragmas.Add("_pragma", "journal_mode(WAL)")
	return path + sep + pragmas.Encode()
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (username);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT NOT NULL PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		user_id TEXT REFERENCES users (id),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS events_user_created_at_idx ON events (user_id, created_at);
`

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return oops.Code("DB_MIGRATE_FAILED").With("driver", "sqlite").Wrap(err)
	}
	return nil
}
