// Package timeslot holds the time primitives shared by availability rules,
// busy intervals and bookings: local wall-clock times of day, weekly rules,
// and absolute intervals.
package timeslot

import (
	"fmt"
	"time"
)

// Interval is a half-open [Start, End) range of absolute instants.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the two intervals share at least one instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// TimeOfDay is a local wall-clock time with no date attached. It is only
// meaningful combined with a calendar date and a timezone via Materialize.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM". Trailing seconds/fractions as produced by
// some Postgres drivers ("09:00:00.000000") are tolerated and ignored.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) < 5 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	t, err := time.Parse("15:04", s[:5])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Before reports whether t is strictly earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Hour < other.Hour || (t.Hour == other.Hour && t.Minute < other.Minute)
}

// Rule is one recurring weekly availability window in an owner's local time.
type Rule struct {
	Weekday time.Weekday `json:"day_of_week"`
	Start   TimeOfDay    `json:"start_time"`
	End     TimeOfDay    `json:"end_time"`
}

// Materialize combines a rule's local times with date's calendar day in loc,
// producing an absolute interval.
//
// Around daylight-saving transitions time.Date normalizes: a local time that
// does not exist (spring forward) slides onto the adjusted clock, and an
// ambiguous local time (fall back) resolves to one of the two offsets. Both
// are accepted as best effort; the window is never dropped or rejected.
func Materialize(r Rule, date time.Time, loc *time.Location) Interval {
	year, month, day := date.In(loc).Date()
	return Interval{
		Start: time.Date(year, month, day, r.Start.Hour, r.Start.Minute, 0, 0, loc),
		End:   time.Date(year, month, day, r.End.Hour, r.End.Minute, 0, 0, loc),
	}
}
