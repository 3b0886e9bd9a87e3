package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rehabflow/internal/database"
	"rehabflow/internal/models"
	"rehabflow/internal/notify"
	"rehabflow/internal/service"
)

// bookingView is the wire form of a booking; dates go out as YYYY-MM-DD.
type bookingView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Service   string    `json:"service"`
	Date      string    `json:"date"`
	Time      string    `json:"time,omitempty"`
	Message   string    `json:"message,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

func toView(b *models.Booking) bookingView {
	return bookingView{
		ID:        b.ID,
		Name:      b.Name,
		Email:     b.Email,
		Phone:     b.Phone,
		Service:   b.Service,
		Date:      b.Date.Format(models.DateLayout),
		Time:      b.Time,
		Message:   b.Message,
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
		Version:   b.Version,
	}
}

func toViews(bookings []*models.Booking) []bookingView {
	out := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toView(b))
	}
	return out
}

func transitionPayload(result *service.TransitionResult) map[string]any {
	payload := map[string]any{
		"booking":       toView(result.Booking),
		"state_changed": result.StateChanged,
		"notified":      result.Notified,
	}
	if result.NotifyError != nil {
		payload["notify_error"] = string(result.NotifyError.Kind)
	}
	return payload
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var vErr *database.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, service.ErrIllegalTransition):
		writeError(w, http.StatusConflict, "booking state does not permit this transition")
	case errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "booking was modified concurrently; retry")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listBookings(w, r)
	case http.MethodPost:
		s.createBooking(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) listBookings(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, err := s.svc.ListBookings(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bookings": toViews(bookings),
		"count":    len(bookings),
	})
}

func filterFromQuery(r *http.Request) (service.BookingFilter, error) {
	q := r.URL.Query()
	filter := service.BookingFilter{
		Text:     strings.TrimSpace(q.Get("text")),
		Services: splitCSV(q.Get("services")),
	}

	if raw := strings.TrimSpace(q.Get("date_from")); raw != "" {
		date, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			return filter, errors.New("invalid date_from; expected YYYY-MM-DD")
		}
		filter.DateFrom = date
	}
	if raw := strings.TrimSpace(q.Get("date_to")); raw != "" {
		date, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			return filter, errors.New("invalid date_to; expected YYYY-MM-DD")
		}
		filter.DateTo = date
	}
	return filter, nil
}

type createBookingRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Message string `json:"message"`
}

func (s *HTTPServer) createBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking := &models.Booking{
		Name:    strings.TrimSpace(body.Name),
		Email:   strings.TrimSpace(body.Email),
		Phone:   strings.TrimSpace(body.Phone),
		Service: strings.TrimSpace(body.Service),
		Time:    strings.TrimSpace(body.Time),
		Message: strings.TrimSpace(body.Message),
	}

	if raw := strings.TrimSpace(body.Date); raw != "" {
		date, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		booking.Date = date
	}

	if err := s.svc.CreateBooking(r.Context(), booking); err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"booking": toView(booking)})
}

// handleBookingSubtree routes /api/v1/bookings/{id} and the lifecycle
// actions beneath it.
func (s *HTTPServer) handleBookingSubtree(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/bookings/"
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if rest == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	parts := strings.Split(rest, "/")
	id := strings.TrimSpace(parts[0])

	switch len(parts) {
	case 1:
		s.handleBookingByID(w, r, id)
	case 2:
		s.handleBookingAction(w, r, id, parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		booking, err := s.svc.GetBooking(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"booking": toView(booking)})

	case http.MethodPatch, http.MethodPut:
		s.updateBooking(w, r, id)

	case http.MethodDelete:
		if err := s.svc.DeleteBooking(r.Context(), id); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "booking deleted"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type updateBookingRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Service *string `json:"service"`
	Date    *string `json:"date"`
	Time    *string `json:"time"`
	Message *string `json:"message"`
	Status  *string `json:"status"`
}

func (s *HTTPServer) updateBooking(w http.ResponseWriter, r *http.Request, id string) {
	var body updateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	patch := models.BookingPatch{
		Name:    body.Name,
		Email:   body.Email,
		Phone:   body.Phone,
		Service: body.Service,
		Time:    body.Time,
		Message: body.Message,
		Status:  body.Status,
	}

	if body.Date != nil {
		date, err := time.Parse(models.DateLayout, strings.TrimSpace(*body.Date))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		patch.Date = &date
	}

	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "empty patch")
		return
	}

	booking, err := s.svc.UpdateBooking(r.Context(), id, patch)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": toView(booking)})
}

func (s *HTTPServer) handleBookingAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if action == "notifications" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.listNotifications(w, r, id)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	switch action {
	case "confirm":
		result, err := s.svc.ConfirmBooking(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, transitionPayload(result))

	case "reschedule":
		s.rescheduleBooking(w, r, id)

	case "cancel":
		result, err := s.svc.CancelBooking(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		payload := map[string]any{
			"deleted":  result.Deleted,
			"notified": result.Notified,
		}
		if result.NotifyError != nil {
			payload["notify_error"] = string(result.NotifyError.Kind)
		}
		writeJSON(w, http.StatusOK, payload)

	case "send-email":
		s.sendEmail(w, r, id)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type rescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

func (s *HTTPServer) rescheduleBooking(w http.ResponseWriter, r *http.Request, id string) {
	var body rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var date time.Time
	if raw := strings.TrimSpace(body.Date); raw != "" {
		parsed, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	result, err := s.svc.RescheduleBooking(r.Context(), id, date, strings.TrimSpace(body.Time))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionPayload(result))
}

type sendEmailRequest struct {
	Type string `json:"type"`
}

func (s *HTTPServer) sendEmail(w http.ResponseWriter, r *http.Request, id string) {
	var body sendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	kind := strings.TrimSpace(body.Type)
	result, err := s.svc.SendNotification(r.Context(), id, kind)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// Classified mail failures are reported, not raised; only an
	// unclassifiable failure surfaces as a server error.
	payload := map[string]any{
		"message":  fmt.Sprintf("%s email processed", kind),
		"notified": result.Notified,
	}
	if result.NotifyError != nil {
		payload["notify_error"] = string(result.NotifyError.Kind)
		if result.NotifyError.Kind == notify.KindUnknown {
			payload["error"] = result.NotifyError.Detail
			writeJSON(w, http.StatusInternalServerError, payload)
			return
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) listNotifications(w http.ResponseWriter, r *http.Request, id string) {
	// 404 for unknown ids; the attempt log alone cannot tell missing from quiet.
	if _, err := s.svc.GetBooking(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}

	attempts, err := s.svc.NotificationAttempts(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"attempts": attempts,
		"count":    len(attempts),
	})
}
