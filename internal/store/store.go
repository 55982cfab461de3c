// Package store persists users and audit events. Username uniqueness is
// enforced by a unique index in the backing database, never in process.
package store

import (
	"context"
	"errors"

	"github.com/isdelr/ender-auth/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository stores user credentials. Usernames are expected to be
// normalized by the caller.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
}

// EventRepository stores audit events.
type EventRepository interface {
	Create(ctx context.Context, event models.Event) error
	// Recent returns the newest events attached to userID. Events without a
	// user are never returned.
	Recent(ctx context.Context, userID string, limit int) ([]models.Event, error)
}
