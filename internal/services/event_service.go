package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-auth/internal/models"
	"github.com/isdelr/ender-auth/internal/store"
	"github.com/samber/oops"
)

// Event levels.
const (
	LevelInfo = "info"
	LevelWarn = "warn"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, userID *string) error
	GetRecentEvents(ctx context.Context, userID string, limit int) ([]models.Event, error)
}

// EventService records authentication audit events.
type EventService struct {
	events store.EventRepository
}

// NewEventService creates a new EventService.
func NewEventService(events store.EventRepository) *EventService {
	return &EventService{events: events}
}

// CreateEvent logs a new event to the database.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, userID *string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	return s.events.Create(ctx, event)
}

// GetRecentEvents retrieves the most recent events of one user. limit must
// be positive.
func (s *EventService) GetRecentEvents(ctx context.Context, userID string, limit int) ([]models.Event, error) {
	if userID == "" || limit <= 0 {
		return nil, oops.Code("EVENT_INVALID_QUERY").With("limit", limit).Wrap(ErrInvalidInput)
	}
	return s.events.Recent(ctx, userID, limit)
}
