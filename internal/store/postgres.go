package store

import (
	"context"
	"errors"

	"github.com/isdelr/ender-auth/internal/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// PgxPool is the subset of *pgxpool.Pool used by the Postgres repositories.
// pgxmock.PgxPoolIface satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresUserRepository implements UserRepository using PostgreSQL.
type PostgresUserRepository struct {
	pool PgxPool
}

// NewPostgresUserRepository creates a new PostgresUserRepository.
func NewPostgresUserRepository(pool PgxPool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create inserts a user. A unique_violation yields ErrDuplicate.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.Username, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_DUPLICATE").
				With("username", user.Username).
				With("constraint", pgErr.ConstraintName).
				Wrap(ErrDuplicate)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// GetByUsername retrieves a user by normalized username.
func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (models.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = $1
	`, username)

	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(ErrNotFound)
	}
	if err != nil {
		return models.User{}, oops.Code("USER_GET_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE id = $1
	`, id)

	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		return models.User{}, oops.Code("USER_GET_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// PostgresEventRepository implements EventRepository using PostgreSQL.
type PostgresEventRepository struct {
	pool PgxPool
}

// NewPostgresEventRepository creates a new PostgresEventRepository.
func NewPostgresEventRepository(pool PgxPool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

// Create stores an event.
func (r *PostgresEventRepository) Create(ctx context.Context, event models.Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO events (id, type, level, message, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.Type, event.Level, event.Message, event.UserID, event.CreatedAt)
	if err != nil {
		return oops.Code("EVENT_CREATE_FAILED").With("type", event.Type).Wrap(err)
	}
	return nil
}

// Recent retrieves a user's most recent events, newest first.
func (r *PostgresEventRepository) Recent(ctx context.Context, userID string, limit int) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, type, level, message, user_id, created_at
		FROM events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, oops.Code("EVENT_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.UserID, &event.CreatedAt); err != nil {
			return nil, oops.Code("EVENT_LIST_FAILED").Wrap(err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("EVENT_LIST_FAILED").Wrap(err)
	}
	return events, nil
}
