package services

import "errors"

var (
	// ErrDuplicateUsername means the normalized username is already registered.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrInvalidCredentials is the single signal for every failed credential
	// check. Unknown usernames and wrong passwords are not distinguished.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidInput means a required field was empty or unusable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUserNotFound is returned by lookups by ID.
	ErrUserNotFound = errors.New("user not found")
)
