package model

import (
	"time"

	"booking-service/internal/timeslot"
)

// Schedule is an owner's timezone plus their recurring weekly availability
// rules. One per owner; rules are replaced wholesale on save.
type Schedule struct {
	ID        int64           `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Timezone  string          `json:"timezone"`
	Rules     []timeslot.Rule `json:"rules"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

// MeetingType is a bookable offering. The aggregate fields (TotalBookings,
// TotalHours, LastBookedAt) are advanced only by a committed booking.
type MeetingType struct {
	ID              int64      `json:"id"`
	OwnerID         string     `json:"owner_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	BufferBefore    int        `json:"buffer_before_minutes"`
	BufferAfter     int        `json:"buffer_after_minutes"`
	MinAdvanceHours int        `json:"min_advance_booking_hours"`
	MaxAdvanceDays  int        `json:"max_advance_booking_days"`
	IsActive        bool       `json:"is_active"`
	TotalBookings   int64      `json:"total_bookings"`
	TotalHours      float64    `json:"total_hours"`
	LastBookedAt    *time.Time `json:"last_booked_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at,omitempty"`
}

// Duration returns the meeting length as a time.Duration.
func (mt MeetingType) Duration() time.Duration {
	return time.Duration(mt.DurationMinutes) * time.Minute
}

// Booking statuses. Confirmed is the only state reachable at creation;
// cancelled is reached through the cancel transition. Rescheduled exists in
// the taxonomy but no transition produces it yet.
const (
	BookingConfirmed   = "confirmed"
	BookingCancelled   = "cancelled"
	BookingRescheduled = "rescheduled"
)

// Booking is the durable record of a confirmed meeting. StartAt/EndAt are
// absolute UTC instants; Timezone is the attendee's zone captured at booking
// time for display purposes only.
type Booking struct {
	ID              string    `json:"id"`
	MeetingTypeID   int64     `json:"meeting_type_id"`
	OwnerID         string    `json:"owner_id"`
	ExternalEventID string    `json:"external_event_id,omitempty"`
	IdempotencyKey  string    `json:"-"`
	Status          string    `json:"status"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	Timezone        string    `json:"timezone"`
	AttendeeName    string    `json:"attendee_name"`
	AttendeeEmail   string    `json:"attendee_email"`
	AttendeeNotes   string    `json:"attendee_notes,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// Interval returns the booking's occupied range as an absolute interval.
func (b Booking) Interval() timeslot.Interval {
	return timeslot.Interval{Start: b.StartAt, End: b.EndAt}
}

// OwnerStats is the dashboard aggregate over an owner's meeting types.
type OwnerStats struct {
	OwnerID       string     `json:"owner_id"`
	MeetingTypes  int64      `json:"meeting_types"`
	ActiveTypes   int64      `json:"active_meeting_types"`
	TotalBookings int64      `json:"total_bookings"`
	TotalHours    float64    `json:"total_hours"`
	LastBookedAt  *time.Time `json:"last_booked_at,omitempty"`
}
