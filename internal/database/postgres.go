package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// NewPostgres creates a pgx connection pool and verifies connectivity.
func NewPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("DB_OPEN_FAILED").With("driver", "postgres").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("driver", "postgres").Wrap(err)
	}
	return pool, nil
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT users_username_key UNIQUE (username)
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT NOT NULL PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		user_id TEXT REFERENCES users (id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS events_user_created_at_idx ON events (user_id, created_at);
`

// Execer is the subset of pgxpool.Pool used for migrations.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// MigratePostgres applies the Postgres schema.
func MigratePostgres(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return oops.Code("DB_MIGRATE_FAILED").With("driver", "postgres").Wrap(err)
	}
	return nil
}
