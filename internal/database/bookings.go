package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rehabflow/internal/models"

	"github.com/google/uuid"
)

const bookingColumns = `id, name, email, phone, service, date, time, message, status, created_at, updated_at, version`

// CreateBooking validates fields, assigns an id and persists the record.
// Status defaults to pending unless the caller already set a valid one.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if err := db.validateNew(booking); err != nil {
		return err
	}

	if booking.Status == "" {
		booking.Status = models.StatusPending
	}

	query := `INSERT INTO bookings (
                id, name, email, phone, service, date, time, message,
                status, created_at, updated_at, version
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := db.db.ExecContext(ctx, query,
		id,
		booking.Name,
		booking.Email,
		booking.Phone,
		booking.Service,
		booking.Date.Format(models.DateLayout),
		booking.Time,
		booking.Message,
		booking.Status,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	row := db.db.QueryRowContext(ctx, query, id)
	booking, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// ListBookings returns every booking ordered by date, then time, then
// insertion order.
func (db *DB) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY date ASC, time ASC, created_at ASC, id ASC`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// UpdateBooking applies a partial patch and returns the updated record.
// id, created_at and version are never caller-writable; updated_at is always
// refreshed and version bumped.
func (db *DB) UpdateBooking(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, error) {
	if err := db.validatePatch(patch); err != nil {
		return nil, err
	}

	sets := []string{"updated_at = ?", "version = version + 1"}
	args := []any{time.Now().UTC()}

	appendSet := func(col string, val any) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	if patch.Name != nil {
		appendSet("name", *patch.Name)
	}
	if patch.Email != nil {
		appendSet("email", *patch.Email)
	}
	if patch.Phone != nil {
		appendSet("phone", *patch.Phone)
	}
	if patch.Service != nil {
		appendSet("service", *patch.Service)
	}
	if patch.Date != nil {
		appendSet("date", patch.Date.Format(models.DateLayout))
	}
	if patch.Time != nil {
		appendSet("time", *patch.Time)
	}
	if patch.Message != nil {
		appendSet("message", *patch.Message)
	}
	if patch.Status != nil {
		appendSet("status", *patch.Status)
	}

	query := fmt.Sprintf(`UPDATE bookings SET %s WHERE id = ?`, strings.Join(sets, ", "))
	args = append(args, id)

	result, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return db.GetBooking(ctx, id)
}

// UpdateStatusWithVersion flips the status when the stored version matches.
func (db *DB) UpdateStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error {
	if !models.ValidStatus(status) {
		return &ValidationError{Field: "status", Reason: "unknown status value"}
	}

	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.db.ExecContext(ctx, query, status, time.Now().UTC(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// UpdateScheduleWithVersion moves a booking in one statement so no reader can
// observe the new date with the old time or vice versa.
func (db *DB) UpdateScheduleWithVersion(ctx context.Context, id string, fromVersion int64, date time.Time, wallTime, status string) error {
	if _, err := time.Parse(models.TimeLayout, wallTime); err != nil {
		return &ValidationError{Field: "time", Reason: "expected HH:MM"}
	}
	if !models.ValidStatus(status) {
		return &ValidationError{Field: "status", Reason: "unknown status value"}
	}

	query := `UPDATE bookings SET date = ?, time = ?, status = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := db.db.ExecContext(ctx, query,
		date.Format(models.DateLayout), wallTime, status, time.Now().UTC(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to reschedule booking: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) DeleteBooking(ctx context.Context, id string) error {
	result, err := db.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) validateNew(booking *models.Booking) error {
	if strings.TrimSpace(booking.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(booking.Email) == "" {
		return &ValidationError{Field: "email", Reason: "required"}
	}
	if strings.TrimSpace(booking.Service) == "" {
		return &ValidationError{Field: "service", Reason: "required"}
	}
	if !db.knownService(booking.Service) {
		return &ValidationError{Field: "service", Reason: "not in the service catalog"}
	}
	if booking.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if booking.Time != "" {
		if _, err := time.Parse(models.TimeLayout, booking.Time); err != nil {
			return &ValidationError{Field: "time", Reason: "expected HH:MM"}
		}
	}
	if booking.Status != "" && !models.ValidStatus(booking.Status) {
		return &ValidationError{Field: "status", Reason: "unknown status value"}
	}
	return nil
}

func (db *DB) validatePatch(patch models.BookingPatch) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if patch.Email != nil && strings.TrimSpace(*patch.Email) == "" {
		return &ValidationError{Field: "email", Reason: "must not be empty"}
	}
	if patch.Service != nil {
		if strings.TrimSpace(*patch.Service) == "" {
			return &ValidationError{Field: "service", Reason: "must not be empty"}
		}
		if !db.knownService(*patch.Service) {
			return &ValidationError{Field: "service", Reason: "not in the service catalog"}
		}
	}
	if patch.Time != nil && *patch.Time != "" {
		if _, err := time.Parse(models.TimeLayout, *patch.Time); err != nil {
			return &ValidationError{Field: "time", Reason: "expected HH:MM"}
		}
	}
	if patch.Status != nil && !models.ValidStatus(*patch.Status) {
		return &ValidationError{Field: "status", Reason: "unknown status value"}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var booking models.Booking
	var dateStr string
	err := row.Scan(
		&booking.ID, &booking.Name, &booking.Email, &booking.Phone, &booking.Service,
		&dateStr, &booking.Time, &booking.Message, &booking.Status,
		&booking.CreatedAt, &booking.UpdatedAt, &booking.Version,
	)
	if err != nil {
		return nil, err
	}

	booking.Date, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
	}
	return &booking, nil
}
