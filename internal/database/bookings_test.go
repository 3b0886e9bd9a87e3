package database

import (
	"context"
	"io"
	"testing"
	"time"

	"rehabflow/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testServices = []string{
	"Therapeutic Ultrasound",
	"Cupping Therapy",
	"Myofascial Release",
	"Hand Therapy",
	"Interferential Therapy (IFT)",
	"Trigger Point Release",
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.SetServices(testServices)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testBooking(service string, date time.Time, wallTime string) *models.Booking {
	return &models.Booking{
		Name:    "Shantanu Pawar",
		Email:   "shantanu@example.com",
		Phone:   "+91 98200 11223",
		Service: service,
		Date:    date,
		Time:    wallTime,
		Message: "shoulder pain after surgery",
	}
}

func TestCreateBookingRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	booking := testBooking("Hand Therapy", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), "14:00")
	err := db.CreateBooking(ctx, booking)
	require.NoError(t, err)
	require.NotEmpty(t, booking.ID)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, booking.Name, got.Name)
	assert.Equal(t, booking.Email, got.Email)
	assert.Equal(t, booking.Phone, got.Phone)
	assert.Equal(t, "Hand Therapy", got.Service)
	assert.Equal(t, "2025-09-01", got.Date.Format(models.DateLayout))
	assert.Equal(t, "14:00", got.Time)
	assert.Equal(t, int64(1), got.Version)
}

func TestCreateBookingValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	date := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*models.Booking)
		field  string
	}{
		{"missing name", func(b *models.Booking) { b.Name = "" }, "name"},
		{"missing email", func(b *models.Booking) { b.Email = " " }, "email"},
		{"missing service", func(b *models.Booking) { b.Service = "" }, "service"},
		{"unknown service", func(b *models.Booking) { b.Service = "Crystal Healing" }, "service"},
		{"missing date", func(b *models.Booking) { b.Date = time.Time{} }, "date"},
		{"bad time", func(b *models.Booking) { b.Time = "2pm" }, "time"},
		{"bad status", func(b *models.Booking) { b.Status = "archived" }, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			booking := testBooking("Hand Therapy", date, "14:00")
			tt.mutate(booking)
			err := db.CreateBooking(ctx, booking)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCreateBookingAllowsEmptyTime(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	booking := testBooking("Cupping Therapy", time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC), "")
	require.NoError(t, db.CreateBooking(ctx, booking))

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Time)
}

func TestGetBookingNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetBooking(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListBookingsOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := testBooking("Hand Therapy", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), "10:00")
	b := testBooking("Hand Therapy", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "09:00")
	c := testBooking("Hand Therapy", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "08:00")
	for _, booking := range []*models.Booking{a, b, c} {
		require.NoError(t, db.CreateBooking(ctx, booking))
	}

	list, err := db.ListBookings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, c.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
	assert.Equal(t, a.ID, list[2].ID)
}

func TestUpdateBookingPatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	booking := testBooking("Hand Therapy", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), "14:00")
	require.NoError(t, db.CreateBooking(ctx, booking))

	status := models.StatusConfirmed
	phone := "+91 90000 00000"
	updated, err := db.UpdateBooking(ctx, booking.ID, models.BookingPatch{Status: &status, Phone: &phone})
	require.NoError(t, err)

	assert.Equal(t, models.StatusConfirmed, updated.Status)
	assert.Equal(t, phone, updated.Phone)
	// untouched fields survive
	assert.Equal(t, booking.Name, updated.Name)
	assert.Equal(t, "14:00", updated.Time)
	// store-owned fields
	assert.Equal(t, booking.ID, updated.ID)
	assert.Equal(t, int64(2), updated.Version)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))
}

func TestUpdateBookingRejectsUnknownStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	booking := testBooking("Hand Therapy", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), "14:00")
	require.NoError(t, db.CreateBooking(ctx, booking))

	bad := "approved"
	_, err := db.UpdateBooking(ctx, booking.ID, models.BookingPatch{Status: &bad})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "status", ve.Field)
}

func TestUpdateBookingNotFound(t *testing.T) {
	db := newTestDB(t)
	name := "Someone"
	_, err := db.UpdateBooking(context.Background(), "missing", models.BookingPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusWithVersion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	booking := testBooking("Hand Therapy", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), "14:00")
	require.NoError(t, db.CreateBooking(ctx, booking))

	err := db.UpdateStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusConfirmed)
	require.NoError(t, err)

	// stale version loses
	err = db.UpdateStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusCancelled)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
}

func TestUpdateScheduleWithVersion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	booking := testBooking("Hand Therapy", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), "14:00")
	require.NoError(t, db.CreateBooking(ctx, booking))

	newDate := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)
	err := db.UpdateScheduleWithVersion(ctx, booking.ID, booking.Version, newDate, "09:30", models.StatusRescheduled)
	require.NoError(t, err)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-10", got.Date.Format(models.DateLayout))
	assert.Equal(t, "09:30", got.Time)
	assert.Equal(t, models.StatusRescheduled, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestDeleteBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	booking := testBooking("Hand Therapy", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), "14:00")
	require.NoError(t, db.CreateBooking(ctx, booking))

	require.NoError(t, db.DeleteBooking(ctx, booking.ID))

	_, err := db.GetBooking(ctx, booking.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = db.DeleteBooking(ctx, booking.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
