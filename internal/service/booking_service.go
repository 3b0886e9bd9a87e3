package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"rehabflow/internal/database"
	"rehabflow/internal/domain"
	"rehabflow/internal/events"
	"rehabflow/internal/metrics"
	"rehabflow/internal/models"
	"rehabflow/internal/notify"

	"github.com/rs/zerolog"
)

// ErrIllegalTransition reports a lifecycle operation from a state that does
// not permit it.
var ErrIllegalTransition = errors.New("illegal booking state transition")

// TransitionResult reports persisted-state success and notification success
// independently: a committed transition is never rolled back because the
// email failed.
type TransitionResult struct {
	Booking      *models.Booking   `json:"booking"`
	StateChanged bool              `json:"state_changed"`
	Notified     bool              `json:"notified"`
	NotifyError  *notify.SendError `json:"-"`
}

// CancelResult reports the outcome of a cancellation, which ends in deletion
// regardless of the notification outcome.
type CancelResult struct {
	Deleted     bool              `json:"deleted"`
	Notified    bool              `json:"notified"`
	NotifyError *notify.SendError `json:"-"`
}

// BookingService coordinates booking state transitions with their
// notifications: mutate first, notify after, report both outcomes.
type BookingService struct {
	store    domain.Store
	mailer   domain.Mailer
	attempts domain.AttemptLog
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time

	locks sync.Map // booking id -> *sync.Mutex
}

func NewBookingService(store domain.Store, mailer domain.Mailer, attempts domain.AttemptLog, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		store:    store,
		mailer:   mailer,
		attempts: attempts,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateBooking validates and persists a new request as pending.
// No notification is sent on creation.
func (s *BookingService) CreateBooking(ctx context.Context, booking *models.Booking) error {
	booking.Status = models.StatusPending

	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return err
	}

	metrics.IncTransition("created")
	s.publishEvent(events.EventBookingCreated, booking, false)
	return nil
}

// ConfirmBooking moves pending to confirmed, then emails the client.
// Confirming an already-confirmed booking is an idempotent no-op; any other
// starting state is an illegal transition.
func (s *BookingService) ConfirmBooking(ctx context.Context, id string) (*TransitionResult, error) {
	unlock := s.lock(id)
	defer unlock()

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case models.StatusConfirmed:
		return &TransitionResult{Booking: booking}, nil
	case models.StatusPending:
	default:
		return nil, ErrIllegalTransition
	}

	if err := s.store.UpdateStatusWithVersion(ctx, id, booking.Version, models.StatusConfirmed); err != nil {
		return nil, err
	}

	updated, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.IncTransition(models.KindConfirmed)
	notified, sendErr := s.sendNotification(ctx, updated, models.KindConfirmed)
	s.publishEvent(events.EventBookingConfirmed, updated, notified)

	return &TransitionResult{Booking: updated, StateChanged: true, Notified: notified, NotifyError: sendErr}, nil
}

// RescheduleBooking moves a booking to a new slot and emails the client.
// Date and time change atomically; the commit stands whether or not the
// email goes out.
func (s *BookingService) RescheduleBooking(ctx context.Context, id string, newDate time.Time, newTime string) (*TransitionResult, error) {
	if newDate.IsZero() {
		return nil, &database.ValidationError{Field: "date", Reason: "required"}
	}
	if newTime == "" {
		return nil, &database.ValidationError{Field: "time", Reason: "required"}
	}
	if calendarDate(newDate).Before(calendarDate(s.now())) {
		return nil, &database.ValidationError{Field: "date", Reason: "must not be earlier than today"}
	}

	unlock := s.lock(id)
	defer unlock()

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateScheduleWithVersion(ctx, id, booking.Version, newDate, newTime, models.StatusRescheduled); err != nil {
		return nil, err
	}

	updated, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.IncTransition(models.KindRescheduled)
	notified, sendErr := s.sendNotification(ctx, updated, models.KindRescheduled)
	s.publishEvent(events.EventBookingRescheduled, updated, notified)

	return &TransitionResult{Booking: updated, StateChanged: true, Notified: notified, NotifyError: sendErr}, nil
}

// CancelBooking emails the client from the about-to-be-deleted snapshot and
// then deletes the record. The per-id lock covers the whole sequence so the
// rendered data is the same snapshot being deleted. Deletion proceeds even
// when the send failed; the caller sees Notified=false and may alert an
// operator.
func (s *BookingService) CancelBooking(ctx context.Context, id string) (*CancelResult, error) {
	unlock := s.lock(id)
	defer unlock()

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	notified, sendErr := s.sendNotification(ctx, booking, models.KindCancelled)

	if err := s.store.DeleteBooking(ctx, id); err != nil {
		return nil, err
	}

	metrics.IncTransition(models.KindCancelled)
	booking.Status = models.StatusCancelled
	s.publishEvent(events.EventBookingCancelled, booking, notified)

	return &CancelResult{Deleted: true, Notified: notified, NotifyError: sendErr}, nil
}

// SendNotification re-sends the email for a transition kind using the
// current stored booking. Used by the manual retry surface.
func (s *BookingService) SendNotification(ctx context.Context, id, kind string) (*TransitionResult, error) {
	if !models.ValidKind(kind) {
		return nil, &database.ValidationError{Field: "type", Reason: "must be confirmed, rescheduled or cancelled"}
	}

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	notified, sendErr := s.sendNotification(ctx, booking, kind)
	return &TransitionResult{Booking: booking, Notified: notified, NotifyError: sendErr}, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// ListBookings returns bookings in schedule order, narrowed by the filter.
func (s *BookingService) ListBookings(ctx context.Context, filter BookingFilter) ([]*models.Booking, error) {
	bookings, err := s.store.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	return FilterBookings(bookings, filter), nil
}

// UpdateBooking applies a partial patch (client edits while pending, staff
// corrections). Lifecycle transitions go through the dedicated operations.
func (s *BookingService) UpdateBooking(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, error) {
	unlock := s.lock(id)
	defer unlock()
	return s.store.UpdateBooking(ctx, id, patch)
}

// DeleteBooking removes a record without emailing anyone. The store supports
// this independently of notification outcome.
func (s *BookingService) DeleteBooking(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()
	return s.store.DeleteBooking(ctx, id)
}

// NotificationAttempts lists the dispatch history for a booking.
func (s *BookingService) NotificationAttempts(ctx context.Context, id string) ([]*models.NotificationAttempt, error) {
	return s.attempts.Attempts(ctx, id)
}

// sendNotification renders and dispatches one email, records the attempt and
// never returns a hard error: notification failure is a reported outcome,
// not a transition failure.
func (s *BookingService) sendNotification(ctx context.Context, booking *models.Booking, kind string) (bool, *notify.SendError) {
	var sendErr *notify.SendError

	rendered, err := notify.Render(booking, kind, s.now())
	if err == nil {
		err = s.mailer.Send(ctx, booking.Email, rendered)
	}
	if err != nil {
		if !errors.As(err, &sendErr) {
			sendErr = &notify.SendError{Kind: notify.KindUnknown, Detail: err.Error(), Err: err}
		}
		s.logger.Warn().Err(sendErr).
			Str("booking_id", booking.ID).
			Str("kind", kind).
			Msg("notification failed")
	}

	outcome := "sent"
	errDetail := ""
	if sendErr != nil {
		outcome = string(sendErr.Kind)
		errDetail = sendErr.Error()
	}
	metrics.IncNotification(kind, outcome)

	attempt := &models.NotificationAttempt{
		BookingID: booking.ID,
		Kind:      kind,
		Email:     booking.Email,
		Notified:  sendErr == nil,
		Error:     errDetail,
		At:        s.now(),
	}
	if logErr := s.attempts.Record(ctx, attempt); logErr != nil {
		s.logger.Error().Err(logErr).Str("booking_id", booking.ID).Msg("failed to record notification attempt")
	}

	return sendErr == nil, sendErr
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, notified bool) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID: booking.ID,
		Name:      booking.Name,
		Email:     booking.Email,
		Service:   booking.Service,
		Status:    booking.Status,
		Date:      booking.Date.Format(models.DateLayout),
		Time:      booking.Time,
		Notified:  notified,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

// lock serializes transitions on a single booking id.
func (s *BookingService) lock(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
