package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/samber/oops"
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// MinSigningKeyLen is the shortest accepted HMAC key, in bytes.
const MinSigningKeyLen = 32

// Claims defines the JWT claims structure. The subject and nameid both carry
// the user ID; unique_name carries the normalized username.
type Claims struct {
	UserID   string `json:"nameid"`
	Username string `json:"unique_name"`
	jwt.RegisteredClaims
}

// contextKey is the type for request-scoped auth values.
type contextKey string

// UserClaimsKey is the context key for user claims.
const UserClaimsKey = contextKey("userClaims")

// IssuerConfig is the immutable signing configuration, loaded once at startup.
type IssuerConfig struct {
	SigningKey string
	Algorithm  string        // HS256, HS384 or HS512; defaults to HS512
	TTL        time.Duration // defaults to DefaultTokenTTL
}

// Issuer mints and validates signed session tokens.
type Issuer struct {
	key    []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer validates cfg and creates an Issuer. A missing key yields
// ErrSigningKeyMissing, which callers treat as fatal.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if cfg.SigningKey == "" {
		return nil, oops.Code("TOKEN_SIGNING_KEY_MISSING").Wrap(ErrSigningKeyMissing)
	}
	if len(cfg.SigningKey) < MinSigningKeyLen {
		return nil, oops.Code("TOKEN_SIGNING_KEY_TOO_SHORT").
			With("min_bytes", MinSigningKeyLen).
			With("got_bytes", len(cfg.SigningKey)).
			Wrap(ErrSigningKeyTooShort)
	}

	method, err := hmacMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &Issuer{
		key:    []byte(cfg.SigningKey),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func hmacMethod(alg string) (*jwt.SigningMethodHMAC, error) {
	switch strings.ToUpper(alg) {
	case "", "HS512":
		return jwt.SigningMethodHS512, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS256":
		return jwt.SigningMethodHS256, nil
	default:
		return nil, oops.Code("TOKEN_UNSUPPORTED_ALGORITHM").With("algorithm", alg).Wrap(ErrUnsupportedAlgorithm)
	}
}

// TTL returns the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a signed token asserting userID and username, expiring TTL
// after now.
func (i *Issuer) Issue(userID, username string) (string, error) {
	now := i.now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(i.method, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("user_id", userID).Wrap(err)
	}
	return signed, nil
}

// Validate parses and validates a token string. Only the configured HMAC
// algorithm is accepted and an expiration claim is required.
func (i *Issuer) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").Wrap(errors.Join(ErrInvalidToken, err))
	}
	if !token.Valid || claims.UserID == "" {
		return nil, oops.Code("TOKEN_INVALID").Wrap(ErrInvalidToken)
	}
	return claims, nil
}

// ClaimsFromContext returns the claims stored by JWTMiddleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok
}

// JWTMiddleware creates a middleware for protecting routes.
func JWTMiddleware(issuer *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenStr string

			// 1. Try to get the token from the Authorization header
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				if rest, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
					tokenStr = strings.TrimSpace(rest)
				}
			}

			// 2. If not in header, fall back to the cookie
			if tokenStr == "" {
				if cookie, err := r.Cookie("token"); err == nil {
					tokenStr = cookie.Value
				}
			}

			if tokenStr == "" {
				http.Error(w, "Missing auth token", http.StatusUnauthorized)
				return
			}

			claims, err := issuer.Validate(tokenStr)
			if err != nil {
				log.Debug().Err(err).Msg("Rejected auth token")
				http.Error(w, "Invalid auth token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
