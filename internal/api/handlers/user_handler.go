package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/isdelr/ender-auth/internal/auth"
	"github.com/isdelr/ender-auth/internal/services"
	"github.com/rs/zerolog/log"
)

// TokenIssuer mints session tokens for verified users.
type TokenIssuer interface {
	Issue(userID, username string) (string, error)
	TTL() time.Duration
}

// UserHandler handles HTTP requests for registration and login.
type UserHandler struct {
	service      services.UserServiceProvider
	tokens       TokenIssuer
	secureCookie bool
}

// NewUserHandler creates a new UserHandler. secureCookie sets the Secure
// flag on the session cookie and should be true in production.
func NewUserHandler(service services.UserServiceProvider, tokens TokenIssuer, secureCookie bool) *UserHandler {
	return &UserHandler{service: service, tokens: tokens, secureCookie: secureCookie}
}

// CredentialsPayload defines the structure for register and login requests.
type CredentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse is returned on successful registration.
type RegisterResponse struct {
	ID string `json:"id"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token string `json:"token"`
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload CredentialsPayload
	if err := decodeJSON(r, &payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id, err := h.service.Register(r.Context(), payload.Username, payload.Password)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrDuplicateUsername):
		http.Error(w, "Username already exists", http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrInvalidInput):
		http.Error(w, "Username or password is missing or too long", http.StatusBadRequest)
		return
	default:
		log.Error().Err(err).Msg("Failed to register user")
		http.Error(w, "Failed to register user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{ID: id})
}

// Login handles user authentication and JWT generation.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload CredentialsPayload
	if err := decodeJSON(r, &payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.Verify(r.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			log.Warn().Str("username", services.NormalizeUsername(payload.Username)).Msg("Failed authentication attempt")
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		log.Error().Err(err).Msg("Failed to verify credentials")
		http.Error(w, "Failed to log in", http.StatusInternalServerError)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  time.Now().Add(h.tokens.TTL()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

// GetMe retrieves the currently authenticated user from the token.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve user claims from context")
		http.Error(w, "Could not retrieve user from token", http.StatusInternalServerError)
		return
	}

	user, err := h.service.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			log.Warn().Str("user_id", claims.UserID).Msg("User from token not found in DB")
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to load user")
		http.Error(w, "Failed to load user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
