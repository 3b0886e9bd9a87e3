package models

import "time"

// Booking is a single appointment request record.
type Booking struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Service   string    `json:"service"`
	Date      time.Time `json:"date"`
	Time      string    `json:"time,omitempty"` // HH:MM, may be empty on legacy records
	Message   string    `json:"message,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// BookingPatch is a partial update. Nil fields are left untouched.
// ID, CreatedAt and Version are never patchable.
type BookingPatch struct {
	Name    *string
	Email   *string
	Phone   *string
	Service *string
	Date    *time.Time
	Time    *string
	Message *string
	Status  *string
}

// Empty reports whether the patch changes nothing.
func (p BookingPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Service == nil &&
		p.Date == nil && p.Time == nil && p.Message == nil && p.Status == nil
}

// NotificationAttempt records a single email dispatch for a booking transition.
type NotificationAttempt struct {
	BookingID string    `json:"booking_id"`
	Kind      string    `json:"kind"`
	Email     string    `json:"email"`
	Notified  bool      `json:"notified"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}
