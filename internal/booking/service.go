// Package booking implements the booking orchestrator: re-validation of a
// requested slot, external event creation, durable commit, and compensation
// when the two cannot both succeed.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"booking-service/internal/availability"
	"booking-service/internal/calendar"
	"booking-service/internal/events"
	"booking-service/internal/metrics"
	"booking-service/internal/model"
	"booking-service/internal/store"
	"booking-service/internal/timeslot"
)

// Store is the slice of the datastore the orchestrator needs.
type Store interface {
	GetMeetingType(ctx context.Context, id int64, ownerID string) (model.MeetingType, error)
	BookingByIdempotencyKey(ctx context.Context, key string) (model.Booking, error)
	ConfirmedBookingsInRange(ctx context.Context, ownerID string, from, to time.Time) ([]model.Booking, error)
	CommitBooking(ctx context.Context, b *model.Booking) error
	CancelBooking(ctx context.Context, id string) (model.Booking, error)
}

// ScheduleSource yields owner schedules; in production it is the LRU cache in
// front of the schedule store.
type ScheduleSource interface {
	GetSchedule(ctx context.Context, ownerID string) (model.Schedule, error)
}

// Service sequences the booking saga. It is the only component that touches
// both the external calendar and the local datastore.
type Service struct {
	store     Store
	schedules ScheduleSource
	gateway   calendar.Gateway
	publisher events.Publisher
	validate  *validator.Validate
	log       *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewService(st Store, schedules ScheduleSource, gw calendar.Gateway, pub events.Publisher, log *slog.Logger) *Service {
	v := validator.New()
	// Report field errors under their wire names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		store:     st,
		schedules: schedules,
		gateway:   gw,
		publisher: pub,
		validate:  v,
		log:       log,
		now:       time.Now,
	}
}

// CreateRequest is the public booking request. StartTime is a local
// wall-clock time ("2006-01-02T15:04" or RFC3339) interpreted in Timezone.
type CreateRequest struct {
	MeetingTypeID  int64  `json:"meeting_type_id" validate:"required,min=1"`
	OwnerID        string `json:"owner_id" validate:"required"`
	StartTime      string `json:"start_time" validate:"required"`
	Timezone       string `json:"timezone" validate:"required"`
	AttendeeName   string `json:"attendee_name" validate:"required"`
	AttendeeEmail  string `json:"attendee_email" validate:"required,email"`
	AttendeeNotes  string `json:"attendee_notes" validate:"max=2000"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,uuid4"`
}

// CreateBooking runs the saga:
//
//  1. structural validation
//  2. idempotency-key replay check
//  3. load active meeting type and schedule
//  4. re-validate the slot against current schedule, busy intervals and
//     confirmed bookings (the list the attendee picked from may be stale)
//  5. create the external calendar event
//  6. commit booking + aggregates in one datastore transaction
//  7. on commit failure, delete the external event (best effort)
func (s *Service) CreateBooking(ctx context.Context, req CreateRequest) (model.Booking, error) {
	if err := s.validate.Struct(req); err != nil {
		return model.Booking{}, validationErr(fieldErrors(err))
	}

	loc, err := time.LoadLocation(req.Timezone)
	if err != nil {
		return model.Booking{}, validationErr(map[string]string{"timezone": "unknown IANA timezone"})
	}
	start, err := parseLocalTime(req.StartTime, loc)
	if err != nil {
		return model.Booking{}, validationErr(map[string]string{"start_time": "must be RFC3339 or local YYYY-MM-DDTHH:MM"})
	}
	start = start.UTC()

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	} else if prev, err := s.store.BookingByIdempotencyKey(ctx, key); err == nil {
		// Retried request: return the original result without touching the
		// external calendar again.
		return prev, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.Booking{}, persistenceErr("idempotency lookup failed", err)
	}

	mt, err := s.store.GetMeetingType(ctx, req.MeetingTypeID, req.OwnerID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Booking{}, notFoundErr("meeting type not found")
	}
	if err != nil {
		return model.Booking{}, persistenceErr("load meeting type", err)
	}
	if !mt.IsActive {
		return model.Booking{}, notFoundErr("meeting type not found")
	}

	sched, err := s.schedules.GetSchedule(ctx, req.OwnerID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Booking{}, notFoundErr("owner has no published schedule")
	}
	if err != nil {
		return model.Booking{}, persistenceErr("load schedule", err)
	}

	end := start.Add(mt.Duration())
	busy, err := s.busyIntervals(ctx, req.OwnerID, mt, start, end)
	if err != nil {
		return model.Booking{}, err
	}

	ok, err := s.slotStillOpen(start, sched, mt, busy)
	if err != nil {
		return model.Booking{}, err
	}
	if !ok {
		return model.Booking{}, slotUnavailableErr()
	}

	eventID, err := s.gateway.CreateEvent(ctx, req.OwnerID, calendar.EventInput{
		Summary:     mt.Name + " with " + req.AttendeeName,
		Description: req.AttendeeNotes,
		Start:       start,
		End:         end,
		Attendees:   []calendar.Attendee{{Name: req.AttendeeName, Email: req.AttendeeEmail}},
	})
	if err != nil {
		return model.Booking{}, externalErr("calendar event creation failed", err)
	}

	b := model.Booking{
		ID:              uuid.NewString(),
		MeetingTypeID:   mt.ID,
		OwnerID:         req.OwnerID,
		ExternalEventID: eventID,
		IdempotencyKey:  key,
		Status:          model.BookingConfirmed,
		StartAt:         start,
		EndAt:           end,
		Timezone:        req.Timezone,
		AttendeeName:    req.AttendeeName,
		AttendeeEmail:   req.AttendeeEmail,
		AttendeeNotes:   req.AttendeeNotes,
	}

	switch err := s.store.CommitBooking(ctx, &b); {
	case err == nil:
	case errors.Is(err, store.ErrSlotTaken):
		// A concurrent saga won the slot between re-validation and commit.
		s.compensate(ctx, req.OwnerID, eventID)
		return model.Booking{}, slotUnavailableErr()
	case errors.Is(err, store.ErrDuplicateKey):
		// A concurrent retry with the same key committed first; hand back
		// its booking and discard our duplicate external event.
		s.compensate(ctx, req.OwnerID, eventID)
		prev, lookupErr := s.store.BookingByIdempotencyKey(ctx, key)
		if lookupErr != nil {
			return model.Booking{}, persistenceErr("booking commit raced", lookupErr)
		}
		return prev, nil
	default:
		s.compensate(ctx, req.OwnerID, eventID)
		return model.Booking{}, persistenceErr("booking commit failed", err)
	}

	metrics.BookingsCreated.Inc()
	s.publisher.Publish(ctx, events.RoutingConfirmed, b)
	s.log.Info("booking.created",
		"booking_id", b.ID, "owner_id", b.OwnerID, "meeting_type_id", mt.ID,
		"start_at", b.StartAt, "external_event_id", eventID)
	return b, nil
}

// CancelBooking transitions a confirmed booking to cancelled and removes its
// external event. The reschedule transition is not implemented.
func (s *Service) CancelBooking(ctx context.Context, id string) (model.Booking, error) {
	b, err := s.store.CancelBooking(ctx, id)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrAlreadyCancelled) {
		return model.Booking{}, notFoundErr("no cancellable booking with this id")
	}
	if err != nil {
		return model.Booking{}, persistenceErr("cancel booking", err)
	}

	if b.ExternalEventID != "" {
		if err := s.gateway.DeleteEvent(ctx, b.OwnerID, b.ExternalEventID); err != nil {
			s.log.Warn("booking.cancel.external_delete_failed",
				"booking_id", b.ID, "external_event_id", b.ExternalEventID, "error", err)
		}
	}
	metrics.BookingsCancelled.Inc()
	s.publisher.Publish(ctx, events.RoutingCancelled, b)
	return b, nil
}

// ListSlots enumerates the offerable slots for a meeting type over [from, to).
func (s *Service) ListSlots(ctx context.Context, ownerID string, meetingTypeID int64, from, to time.Time) ([]timeslot.Interval, error) {
	mt, err := s.store.GetMeetingType(ctx, meetingTypeID, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundErr("meeting type not found")
	}
	if err != nil {
		return nil, persistenceErr("load meeting type", err)
	}
	if !mt.IsActive {
		return nil, notFoundErr("meeting type not found")
	}

	sched, err := s.schedules.GetSchedule(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundErr("owner has no published schedule")
	}
	if err != nil {
		return nil, persistenceErr("load schedule", err)
	}

	candidates, err := availability.Candidates(sched, mt, from, to)
	if err != nil {
		return nil, persistenceErr("enumerate candidates", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	busy, err := s.busyIntervals(ctx, ownerID, mt, from, to)
	if err != nil {
		return nil, err
	}

	open, err := availability.Resolve(candidates, sched, mt, busy, s.now())
	if err != nil {
		return nil, persistenceErr("resolve slots", err)
	}
	slots := make([]timeslot.Interval, 0, len(open))
	for _, start := range open {
		slots = append(slots, timeslot.Interval{Start: start, End: start.Add(mt.Duration())})
	}
	return slots, nil
}

// busyIntervals merges the external calendar's busy ranges with locally
// confirmed bookings, padding the queried window by the meeting type's
// buffers. External fetch failure is fail-open (treated as no conflicts):
// degraded offering beats no offering. Local booking reads are authoritative
// and fail closed.
func (s *Service) busyIntervals(ctx context.Context, ownerID string, mt model.MeetingType, from, to time.Time) ([]timeslot.Interval, error) {
	padFrom := from.Add(-time.Duration(mt.BufferBefore) * time.Minute)
	padTo := to.Add(time.Duration(mt.BufferAfter) * time.Minute)

	busy, err := s.gateway.ListBusy(ctx, ownerID, padFrom, padTo)
	if err != nil {
		metrics.BusyFetchFailures.Inc()
		s.log.Warn("booking.busy_fetch_failed", "owner_id", ownerID, "error", err)
		busy = nil
	}

	booked, err := s.store.ConfirmedBookingsInRange(ctx, ownerID, padFrom, padTo)
	if err != nil {
		return nil, persistenceErr("load confirmed bookings", err)
	}
	for _, b := range booked {
		busy = append(busy, b.Interval())
	}
	return busy, nil
}

func (s *Service) slotStillOpen(start time.Time, sched model.Schedule, mt model.MeetingType, busy []timeslot.Interval) (bool, error) {
	open, err := availability.Resolve([]time.Time{start}, sched, mt, busy, s.now())
	if err != nil {
		return false, persistenceErr("resolve slot", err)
	}
	return len(open) == 1, nil
}

func (s *Service) compensate(ctx context.Context, ownerID, eventID string) {
	if err := s.gateway.DeleteEvent(ctx, ownerID, eventID); err != nil {
		// The external event is now orphaned; it will need manual cleanup.
		metrics.CompensationFailures.Inc()
		s.log.Error("booking.compensation_failed",
			"owner_id", ownerID, "external_event_id", eventID, "error", err)
		return
	}
	metrics.CompensationsRun.Inc()
	s.log.Info("booking.compensated", "owner_id", ownerID, "external_event_id", eventID)
}

func parseLocalTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04", s, loc)
}

func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "is required"
		case "email":
			out[fe.Field()] = "must be a valid email address"
		case "min":
			out[fe.Field()] = "must be at least " + fe.Param()
		case "max":
			out[fe.Field()] = "must be at most " + fe.Param()
		case "uuid4":
			out[fe.Field()] = "must be a UUID"
		default:
			out[fe.Field()] = "is invalid"
		}
	}
	return out
}
