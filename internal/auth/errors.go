package auth

import "errors"

// Sentinel errors; callers match them with errors.Is. Returned errors are
// usually oops-wrapped with a code and context.
var (
	// ErrSigningKeyMissing means no token signing key is configured. It is a
	// startup-time configuration failure, never a per-request one.
	ErrSigningKeyMissing = errors.New("token signing key is not configured")

	// ErrSigningKeyTooShort means the key is below 256 bits.
	ErrSigningKeyTooShort = errors.New("token signing key is too short")

	// ErrUnsupportedAlgorithm means the configured signing algorithm is not an HMAC-SHA2 variant.
	ErrUnsupportedAlgorithm = errors.New("unsupported token signing algorithm")

	// ErrInvalidToken covers every way a presented token can fail validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrEmptyPassword is returned when attempting to hash an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")

	// ErrPasswordTooLong is returned when a password exceeds the hasher's input limit.
	ErrPasswordTooLong = errors.New("password is too long")

	// ErrInvalidHash means a stored hash cannot be parsed.
	ErrInvalidHash = errors.New("invalid password hash")
)
