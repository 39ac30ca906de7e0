// Package availability implements the pure slot resolver: given candidate
// instants, an owner's schedule, a meeting type's constraints and the known
// busy intervals, it returns the bookable subset.
package availability

import (
	"fmt"
	"slices"
	"time"

	"booking-service/internal/model"
	"booking-service/internal/timeslot"
)

// Resolve filters candidates down to the instants that can be booked.
//
// A candidate is accepted when all of the following hold:
//   - it falls inside the advance-booking window [now+minAdvance, now+maxAdvance]
//   - the buffered interval [i-bufferBefore, i+duration+bufferAfter] overlaps
//     no busy interval
//   - the unbuffered event interval [i, i+duration] fits entirely inside at
//     least one availability window materialized for the candidate's calendar
//     day in the schedule's timezone
//
// Buffers gate only against busy intervals: an owner's published hours bound
// the meeting itself, not its padding. Resolve is deterministic and performs
// no I/O; candidates are expected sorted and distinct, and output preserves
// input order.
func Resolve(candidates []time.Time, sched model.Schedule, mt model.MeetingType, busy []timeslot.Interval, now time.Time) ([]time.Time, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule timezone %q: %w", sched.Timezone, err)
	}

	rulesByDay := make(map[time.Weekday][]timeslot.Rule, len(sched.Rules))
	for _, r := range sched.Rules {
		rulesByDay[r.Weekday] = append(rulesByDay[r.Weekday], r)
	}

	earliest := now.Add(time.Duration(mt.MinAdvanceHours) * time.Hour)
	latest := now.AddDate(0, 0, mt.MaxAdvanceDays)

	duration := mt.Duration()
	bufferBefore := time.Duration(mt.BufferBefore) * time.Minute
	bufferAfter := time.Duration(mt.BufferAfter) * time.Minute

	var accepted []time.Time
	for _, i := range candidates {
		if i.Before(earliest) || i.After(latest) {
			continue
		}
		rules := rulesByDay[i.In(loc).Weekday()]
		if len(rules) == 0 {
			continue
		}

		event := timeslot.Interval{Start: i, End: i.Add(duration)}
		padded := timeslot.Interval{Start: i.Add(-bufferBefore), End: event.End.Add(bufferAfter)}

		if overlapsAny(padded, busy) {
			continue
		}
		for _, r := range rules {
			if timeslot.Materialize(r, i, loc).Contains(event) {
				accepted = append(accepted, i)
				break
			}
		}
	}
	return accepted, nil
}

func overlapsAny(iv timeslot.Interval, busy []timeslot.Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}

// Candidates enumerates bookable starting instants for every rule window in
// [from, to), stepping each window by the meeting duration. The result feeds
// Resolve; no constraint checking happens here.
func Candidates(sched model.Schedule, mt model.MeetingType, from, to time.Time) ([]time.Time, error) {
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule timezone %q: %w", sched.Timezone, err)
	}
	duration := mt.Duration()
	if duration <= 0 {
		return nil, fmt.Errorf("meeting type %d has non-positive duration", mt.ID)
	}

	rulesByDay := make(map[time.Weekday][]timeslot.Rule, len(sched.Rules))
	for _, r := range sched.Rules {
		rulesByDay[r.Weekday] = append(rulesByDay[r.Weekday], r)
	}

	var out []time.Time
	seen := make(map[int64]struct{})
	day := from.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	for ; day.Before(to); day = day.AddDate(0, 0, 1) {
		for _, r := range rulesByDay[day.Weekday()] {
			window := timeslot.Materialize(r, day, loc)
			for s := window.Start; !s.Add(duration).After(window.End); s = s.Add(duration) {
				if s.Before(from) || !s.Before(to) {
					continue
				}
				// Overlapping rules on the same weekday may yield the
				// same instant twice.
				if _, dup := seen[s.Unix()]; dup {
					continue
				}
				seen[s.Unix()] = struct{}{}
				out = append(out, s.UTC())
			}
		}
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out, nil
}
