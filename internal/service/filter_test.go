package service

import (
	"testing"
	"time"

	"rehabflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filterBooking(id, name, email, phone, svc string, date time.Time) *models.Booking {
	return &models.Booking{
		ID:      id,
		Name:    name,
		Email:   email,
		Phone:   phone,
		Service: svc,
		Date:    date,
		Time:    "10:00",
		Status:  models.StatusPending,
	}
}

func filterCorpus() []*models.Booking {
	return []*models.Booking{
		filterBooking("a", "Asha Verma", "asha.verma@example.com", "+91 98200 11223", "Cupping Therapy", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)),
		filterBooking("b", "Rahul Nair", "rahul@example.com", "022-2345-6789", "Hand Therapy", time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)),
		filterBooking("c", "Meera Ashar", "meera@clinicmail.in", "+91 90040 55667", "Hand Therapy", time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC)),
	}
}

func ids(bookings []*models.Booking) []string {
	out := make([]string, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.ID)
	}
	return out
}

func TestFilterEmptyPassesThrough(t *testing.T) {
	corpus := filterCorpus()
	got := FilterBookings(corpus, BookingFilter{})
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
	assert.True(t, BookingFilter{}.Empty())
}

func TestFilterTextFoldsCase(t *testing.T) {
	corpus := filterCorpus()

	got := FilterBookings(corpus, BookingFilter{Text: "ASHA"})
	// matches "Asha Verma" by name and "Meera Ashar" by name substring
	assert.Equal(t, []string{"a", "c"}, ids(got))

	got = FilterBookings(corpus, BookingFilter{Text: "rahul@example"})
	assert.Equal(t, []string{"b"}, ids(got))
}

func TestFilterTextMatchesPhoneRaw(t *testing.T) {
	corpus := filterCorpus()

	got := FilterBookings(corpus, BookingFilter{Text: "98200"})
	assert.Equal(t, []string{"a"}, ids(got))

	// punctuation is part of the phone match
	got = FilterBookings(corpus, BookingFilter{Text: "022-2345"})
	assert.Equal(t, []string{"b"}, ids(got))
}

func TestFilterServices(t *testing.T) {
	corpus := filterCorpus()

	got := FilterBookings(corpus, BookingFilter{Services: []string{"Hand Therapy"}})
	assert.Equal(t, []string{"b", "c"}, ids(got))

	got = FilterBookings(corpus, BookingFilter{Services: []string{"Hand Therapy", "Cupping Therapy"}})
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))

	got = FilterBookings(corpus, BookingFilter{Services: []string{"Trigger Point Release"}})
	assert.Empty(t, got)
}

func TestFilterDateBoundsInclusive(t *testing.T) {
	corpus := filterCorpus()

	got := FilterBookings(corpus, BookingFilter{
		DateFrom: time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, []string{"b", "c"}, ids(got))

	// a bound with a wall-clock component still compares by calendar date
	got = FilterBookings(corpus, BookingFilter{
		DateTo: time.Date(2025, 9, 1, 18, 30, 0, 0, time.UTC),
	})
	assert.Equal(t, []string{"a"}, ids(got))
}

func TestFilterComposesWithAnd(t *testing.T) {
	corpus := filterCorpus()

	filter := BookingFilter{
		Text:     "a",
		Services: []string{"Hand Therapy"},
		DateFrom: time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC),
	}
	combined := FilterBookings(corpus, filter)

	// equivalent to applying each predicate in sequence
	step := FilterBookings(corpus, BookingFilter{Text: filter.Text})
	step = FilterBookings(step, BookingFilter{Services: filter.Services})
	step = FilterBookings(step, BookingFilter{DateFrom: filter.DateFrom})

	require.Equal(t, ids(step), ids(combined))
	assert.Equal(t, []string{"c"}, ids(combined))
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	corpus := filterCorpus()
	_ = FilterBookings(corpus, BookingFilter{Services: []string{"Hand Therapy"}})
	assert.Equal(t, []string{"a", "b", "c"}, ids(corpus))
}
