// Package calendar adapts the external Google Calendar into the narrow
// gateway the booking core needs: busy-interval reads plus single-event
// create and delete.
package calendar

import (
	"context"
	"time"

	"booking-service/internal/timeslot"
)

// Attendee is a meeting participant forwarded to the external event.
type Attendee struct {
	Name  string
	Email string
}

// EventInput describes the external event created for a booking.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []Attendee
}

// Gateway is the boundary to the owner's third-party calendar.
//
// ListBusy failures are advisory: callers treat an error as "no conflicts
// known" and keep going. CreateEvent failures abort the booking saga.
// DeleteEvent is used for compensation and cancellation; its failures are
// logged, never fatal.
type Gateway interface {
	ListBusy(ctx context.Context, ownerID string, timeMin, timeMax time.Time) ([]timeslot.Interval, error)
	CreateEvent(ctx context.Context, ownerID string, ev EventInput) (string, error)
	DeleteEvent(ctx context.Context, ownerID, eventID string) error
}
