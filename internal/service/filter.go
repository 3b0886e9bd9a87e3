package service

import (
	"strings"
	"time"

	"rehabflow/internal/models"
)

// BookingFilter narrows a booking list. Zero-valued fields do not filter;
// all set predicates compose with logical AND.
type BookingFilter struct {
	Text     string
	Services []string
	DateFrom time.Time
	DateTo   time.Time
}

// Empty reports whether the filter passes everything through.
func (f BookingFilter) Empty() bool {
	return f.Text == "" && len(f.Services) == 0 && f.DateFrom.IsZero() && f.DateTo.IsZero()
}

// FilterBookings applies the filter without mutating the input slice.
func FilterBookings(bookings []*models.Booking, f BookingFilter) []*models.Booking {
	if f.Empty() {
		return bookings
	}

	text := strings.ToLower(strings.TrimSpace(f.Text))

	var serviceSet map[string]struct{}
	if len(f.Services) > 0 {
		serviceSet = make(map[string]struct{}, len(f.Services))
		for _, s := range f.Services {
			serviceSet[s] = struct{}{}
		}
	}

	out := make([]*models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if text != "" && !matchesText(b, text, f.Text) {
			continue
		}
		if serviceSet != nil {
			if _, ok := serviceSet[b.Service]; !ok {
				continue
			}
		}
		if !f.DateFrom.IsZero() && b.Date.Before(calendarDate(f.DateFrom)) {
			continue
		}
		if !f.DateTo.IsZero() && b.Date.After(calendarDate(f.DateTo)) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// matchesText folds case for name and email; phone is matched as a raw
// substring, digits and punctuation intact.
func matchesText(b *models.Booking, folded, raw string) bool {
	if strings.Contains(strings.ToLower(b.Name), folded) {
		return true
	}
	if strings.Contains(strings.ToLower(b.Email), folded) {
		return true
	}
	return b.Phone != "" && strings.Contains(b.Phone, strings.TrimSpace(raw))
}
