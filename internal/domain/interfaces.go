package domain

import (
	"context"
	"time"

	"rehabflow/internal/models"
	"rehabflow/internal/notify"
)

// Store is the durable booking record owner. Implementations must serialize
// mutations per booking id (the sqlite store uses optimistic versioning).
type Store interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context) ([]*models.Booking, error)
	UpdateBooking(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, error)
	UpdateStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error
	UpdateScheduleWithVersion(ctx context.Context, id string, fromVersion int64, date time.Time, wallTime, status string) error
	DeleteBooking(ctx context.Context, id string) error
}

// Mailer dispatches one rendered email. A non-nil error is always a
// *notify.SendError; it must never panic the caller.
type Mailer interface {
	Send(ctx context.Context, to string, rendered notify.Rendered) error
}

// AttemptLog records notification attempts per booking for operator review.
type AttemptLog interface {
	Record(ctx context.Context, attempt *models.NotificationAttempt) error
	Attempts(ctx context.Context, bookingID string) ([]*models.NotificationAttempt, error)
}

// EventPublisher fans booking lifecycle events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
