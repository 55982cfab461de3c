package models

import "time"

// Event types recorded by the credential store.
const (
	EventUserRegister          = "user.register"
	EventUserRegisterDuplicate = "user.register.duplicate"
	EventUserLoginSuccess      = "user.login.success"
	EventUserLoginFail         = "user.login.fail"
)

// Event represents an auditable authentication action.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "user.register", "user.login.fail"
	Level     string    `json:"level"` // e.g., "info", "warn"
	Message   string    `json:"message"`
	UserID    *string   `json:"userId,omitempty"` // Nullable when no account was resolved
	CreatedAt time.Time `json:"createdAt"`
}
