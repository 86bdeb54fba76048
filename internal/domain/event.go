package domain

import (
	"context"
	"time"
)

// Event status values.
const (
	EventStatusPlanning  = "Planning"
	EventStatusUpcoming  = "Upcoming"
	EventStatusLive      = "Live"
	EventStatusCompleted = "Completed"
)

// ValidEventStatus reports whether s is a known event status.
func ValidEventStatus(s string) bool {
	switch s {
	case EventStatusPlanning, EventStatusUpcoming, EventStatusLive, EventStatusCompleted:
		return true
	}
	return false
}

// Event is a time-boxed sales occasion that scopes per-event stock and transactions.
type Event struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewEvent returns a new Event with the given fields. ID is typically set by the repository on create.
func NewEvent(name, status string, startDate, endDate *time.Time, createdAt, updatedAt time.Time) *Event {
	return &Event{
		Name:      name,
		Status:    status,
		StartDate: startDate,
		EndDate:   endDate,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// EventUpdate carries a partial update. Nil fields are left unchanged.
type EventUpdate struct {
	Name        *string
	Status      *string
	StartDate   *time.Time
	EndDate     *time.Time
	Location    *string
	Description *string
}

// EventRepository defines the interface for event storage
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, status string) ([]*Event, error)
	Update(ctx context.Context, id string, upd EventUpdate) (*Event, error)
	Delete(ctx context.Context, id string) error
}

// EventService defines the business logic for events.
type EventService interface {
	CreateEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context, status string) ([]*Event, error)
	UpdateEvent(ctx context.Context, id string, upd EventUpdate) (*Event, error)
	DeleteEvent(ctx context.Context, id string) error
}
