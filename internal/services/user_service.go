package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/isdelr/ender-auth/internal/auth"
	"github.com/isdelr/ender-auth/internal/models"
	"github.com/isdelr/ender-auth/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/samber/oops"
)

// MaxUsernameLength bounds normalized usernames, in runes.
const MaxUsernameLength = 64

// UserServiceProvider defines the interface for the credential store.
type UserServiceProvider interface {
	Register(ctx context.Context, username, password string) (string, error)
	Verify(ctx context.Context, username, password string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

// UserService registers users and verifies their credentials.
type UserService struct {
	users  store.UserRepository
	hasher auth.PasswordHasher
	events EventServiceProvider

	// dummyHash is verified against when a username is unknown so that
	// both failure paths do the same hashing work.
	dummyHash string
}

// NewUserService creates a new UserService. events may be nil.
func NewUserService(users store.UserRepository, hasher auth.PasswordHasher, events EventServiceProvider) (*UserService, error) {
	if users == nil || hasher == nil {
		return nil, oops.Code("USER_SERVICE_INVALID").Errorf("user repository and password hasher are required")
	}

	dummy, err := hasher.Hash(uuid.New().String())
	if err != nil {
		return nil, oops.Code("USER_SERVICE_INVALID").With("operation", "derive dummy hash").Wrap(err)
	}

	return &UserService{
		users:     users,
		hasher:    hasher,
		events:    events,
		dummyHash: dummy,
	}, nil
}

// Register creates a user with a freshly salted password hash and returns
// its ID. A taken normalized username yields ErrDuplicateUsername.
func (s *UserService) Register(ctx context.Context, username, password string) (string, error) {
	name := NormalizeUsername(username)
	if name == "" || utf8.RuneCountInString(name) > MaxUsernameLength {
		return "", oops.Code("USER_INVALID_USERNAME").With("length", utf8.RuneCountInString(name)).Wrap(ErrInvalidInput)
	}
	if password == "" {
		return "", oops.Code("USER_INVALID_PASSWORD").Wrap(ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) || errors.Is(err, auth.ErrEmptyPassword) {
			return "", oops.Code("USER_INVALID_PASSWORD").Wrap(errors.Join(ErrInvalidInput, err))
		}
		return "", oops.Code("USER_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	// Uniqueness is decided by the storage layer's unique index, so two
	// concurrent registrations of the same name cannot both succeed.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.record(ctx, models.EventUserRegisterDuplicate, LevelWarn,
				"Registration rejected: username already exists", nil)
			return "", oops.Code("USER_DUPLICATE_USERNAME").With("username", name).Wrap(ErrDuplicateUsername)
		}
		return "", oops.Code("USER_REGISTER_FAILED").With("operation", "persist user").Wrap(err)
	}

	log.Info().Str("user_id", user.ID).Str("username", name).Msg("User registered")
	s.record(ctx, models.EventUserRegister, LevelInfo,
		fmt.Sprintf("User '%s' registered", name), &user.ID)

	return user.ID, nil
}

// Verify checks a username and password. Every failure caused by the
// credentials or the stored hash is ErrInvalidCredentials; other errors are
// storage failures.
func (s *UserService) Verify(ctx context.Context, username, password string) (models.User, error) {
	name := NormalizeUsername(username)

	user, lookupErr := s.users.GetByUsername(ctx, name)
	found := lookupErr == nil
	if lookupErr != nil && !errors.Is(lookupErr, store.ErrNotFound) {
		return models.User{}, oops.Code("AUTH_VERIFY_FAILED").With("operation", "get user by username").Wrap(lookupErr)
	}

	targetHash := s.dummyHash
	if found {
		targetHash = user.PasswordHash
	}

	// Always hash, even for unknown users, to keep the response shape constant.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && found {
		// An unreadable stored hash must look like a wrong password to the
		// caller, or it would reveal that the account exists.
		log.Error().Err(verifyErr).Str("user_id", user.ID).Msg("Stored password hash is unusable")
		valid = false
	}

	if !found || !valid || password == "" {
		// The submitted name is attacker-controlled; only a known account
		// gets the event attached to it.
		var userID *string
		if found {
			userID = &user.ID
		}
		s.record(ctx, models.EventUserLoginFail, LevelWarn, "Failed login attempt", userID)
		return models.User{}, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	s.record(ctx, models.EventUserLoginSuccess, LevelInfo,
		fmt.Sprintf("User '%s' logged in", name), &user.ID)

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// GetUserByID retrieves a single user by their ID, without the password hash.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrUserNotFound)
		}
		return models.User{}, oops.Code("USER_GET_FAILED").With("id", id).Wrap(err)
	}
	user.PasswordHash = ""
	return user, nil
}

// record writes an audit event. Failures are logged and otherwise ignored.
func (s *UserService) record(ctx context.Context, eventType, level, message string, userID *string) {
	if s.events == nil {
		return
	}
	if err := s.events.CreateEvent(ctx, eventType, level, message, userID); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("Failed to record audit event")
	}
}
