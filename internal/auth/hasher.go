package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher derives and checks salted password hashes. Hashes are
// self-describing strings that embed their salt and cost parameters.
type PasswordHasher interface {
	// Hash derives a new hash with a freshly generated random salt.
	Hash(password string) (string, error)

	// Verify reports whether password matches hash. A mismatch is (false, nil);
	// an error means the hash itself is unusable.
	Verify(password, hash string) (bool, error)
}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. Out-of-range costs fall back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", oops.Code("AUTH_PASSWORD_TOO_LONG").Wrap(ErrPasswordTooLong)
		}
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	return string(hashed), nil
}

// Verify checks a password against a bcrypt hash. bcrypt compares in constant time.
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(errors.Join(ErrInvalidHash, err))
	}
}

// Argon2idParams tunes the argon2id cost.
type Argon2idParams struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultArgon2idParams are the OWASP-recommended argon2id parameters.
var DefaultArgon2idParams = Argon2idParams{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// Argon2idHasher implements PasswordHasher using argon2id and PHC-encoded hashes.
type Argon2idHasher struct {
	params Argon2idParams
}

// NewArgon2idHasher creates an Argon2idHasher. Zero fields take their default.
func NewArgon2idHasher(params Argon2idParams) *Argon2idHasher {
	if params.Time == 0 {
		params.Time = DefaultArgon2idParams.Time
	}
	if params.Memory == 0 {
		params.Memory = DefaultArgon2idParams.Memory
	}
	if params.Threads == 0 {
		params.Threads = DefaultArgon2idParams.Threads
	}
	if params.SaltLen == 0 {
		params.SaltLen = DefaultArgon2idParams.SaltLen
	}
	if params.KeyLen == 0 {
		params.KeyLen = DefaultArgon2idParams.KeyLen
	}
	return &Argon2idHasher{params: params}
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash with the stored salt and parameters.
func (h *Argon2idHasher) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return false, invalidHash("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return false, invalidHash("unsupported hash algorithm: " + parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, invalidHash("invalid version segment")
	}
	if version != argon2.Version {
		return false, invalidHash(fmt.Sprintf("unsupported argon2 version %d", version))
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, invalidHash("invalid parameter segment")
	}
	if threads == 0 || threads > 255 || iterations == 0 || memory == 0 {
		return false, invalidHash("argon2 parameters out of range")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, invalidHash("invalid salt encoding")
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, invalidHash("invalid key encoding")
	}
	if len(expected) == 0 || len(expected) > 1024 {
		return false, invalidHash("invalid key length")
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, uint8(threads), uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func invalidHash(reason string) error {
	return oops.Code("AUTH_INVALID_HASH").With("reason", reason).Wrap(ErrInvalidHash)
}

// MultiHasher hashes new passwords with a primary hasher and verifies stored
// hashes with whichever algorithm their prefix names, so hashes written
// before a PASSWORD_HASHER change keep working.
type MultiHasher struct {
	primary  PasswordHasher
	bcrypt   PasswordHasher
	argon2id PasswordHasher
}

// NewMultiHasher creates a MultiHasher around primary. Verification cost
// comes from the stored hash, so the fallback verifiers use default params.
func NewMultiHasher(primary PasswordHasher) *MultiHasher {
	return &MultiHasher{
		primary:  primary,
		bcrypt:   NewBcryptHasher(bcrypt.DefaultCost),
		argon2id: NewArgon2idHasher(DefaultArgon2idParams),
	}
}

// Primary returns the hasher used for new hashes.
func (h *MultiHasher) Primary() PasswordHasher {
	return h.primary
}

// Hash delegates to the primary hasher.
func (h *MultiHasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

// Verify dispatches on the hash prefix.
func (h *MultiHasher) Verify(password, hash string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return h.argon2id.Verify(password, hash)
	case strings.HasPrefix(hash, "$2"):
		return h.bcrypt.Verify(password, hash)
	default:
		return false, invalidHash("unrecognized hash prefix")
	}
}
