package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"booking-service/internal/model"
)

const bookingColumns = `id, meeting_type_id, owner_id, external_event_id, idempotency_key,
	status, start_at, end_at, timezone, attendee_name, attendee_email, attendee_notes,
	created_at, updated_at`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.MeetingTypeID, &b.OwnerID, &b.ExternalEventID, &b.IdempotencyKey,
		&b.Status, &b.StartAt, &b.EndAt, &b.Timezone, &b.AttendeeName, &b.AttendeeEmail,
		&b.AttendeeNotes, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

// CommitBooking is the saga's durable step: inside one transaction it inserts
// the booking row and advances the meeting type's aggregates (bookings +1,
// hours +duration, last booked at). A conflicting confirmed booking for the
// same owner and slot surfaces as ErrSlotTaken; an idempotency key collision
// as ErrDuplicateKey.
func (s *Store) CommitBooking(ctx context.Context, b *model.Booking) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	insertQ := `INSERT INTO bookings
	    (id, meeting_type_id, owner_id, external_event_id, idempotency_key, status,
	     start_at, end_at, timezone, attendee_name, attendee_email, attendee_notes,
	     created_at, updated_at)
	    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)`
	_, err = tx.Exec(ctx, insertQ, b.ID, b.MeetingTypeID, b.OwnerID, b.ExternalEventID,
		b.IdempotencyKey, b.Status, b.StartAt.UTC(), b.EndAt.UTC(), b.Timezone,
		b.AttendeeName, b.AttendeeEmail, b.AttendeeNotes, now)
	switch {
	case uniqueViolation(err, confirmedSlotConstraint):
		return ErrSlotTaken
	case uniqueViolation(err, idempotencyConstraint):
		return ErrDuplicateKey
	case err != nil:
		return fmt.Errorf("insert booking: %w", err)
	}

	hours := b.EndAt.Sub(b.StartAt).Hours()
	updateQ := `UPDATE meeting_types
	    SET total_bookings = total_bookings + 1,
	        total_hours = total_hours + $1,
	        last_booked_at = $2,
	        updated_at = $2
	    WHERE id = $3`
	tag, err := tx.Exec(ctx, updateQ, hours, now, b.MeetingTypeID)
	if err != nil {
		return fmt.Errorf("update aggregates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update aggregates: meeting type %d vanished", b.MeetingTypeID)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id=$1`
	return scanBooking(s.pool.QueryRow(ctx, q, id))
}

// BookingByIdempotencyKey returns the booking previously created for key, if
// any. Used to make retried booking requests return the original result.
func (s *Store) BookingByIdempotencyKey(ctx context.Context, key string) (model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE idempotency_key=$1`
	return scanBooking(s.pool.QueryRow(ctx, q, key))
}

// ListBookings returns the owner's bookings, optionally restricted to
// [from, to) when both bounds are non-zero.
func (s *Store) ListBookings(ctx context.Context, ownerID string, from, to time.Time) ([]model.Booking, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if !from.IsZero() && !to.IsZero() {
		q := `SELECT ` + bookingColumns + ` FROM bookings
		      WHERE owner_id=$1 AND start_at >= $2 AND start_at < $3 ORDER BY start_at`
		rows, err = s.pool.Query(ctx, q, ownerID, from, to)
	} else {
		q := `SELECT ` + bookingColumns + ` FROM bookings WHERE owner_id=$1 ORDER BY start_at`
		rows, err = s.pool.Query(ctx, q, ownerID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ConfirmedBookingsInRange returns confirmed bookings whose occupied range
// intersects [from, to). The resolver treats them as busy intervals alongside
// the external calendar's.
func (s *Store) ConfirmedBookingsInRange(ctx context.Context, ownerID string, from, to time.Time) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings
	      WHERE owner_id=$1 AND status='confirmed' AND start_at < $3 AND end_at > $2
	      ORDER BY start_at`
	rows, err := s.pool.Query(ctx, q, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CancelBooking transitions a confirmed booking to cancelled and returns the
// updated row. Aggregate counters are deliberately left as-is.
func (s *Store) CancelBooking(ctx context.Context, id string) (model.Booking, error) {
	q := `UPDATE bookings SET status='cancelled', updated_at=now()
	      WHERE id=$1 AND status='confirmed'
	      RETURNING ` + bookingColumns
	b, err := scanBooking(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, ErrNotFound) {
		// Distinguish a missing booking from one in the wrong state.
		if _, getErr := s.GetBooking(ctx, id); getErr == nil {
			return model.Booking{}, ErrAlreadyCancelled
		}
		return model.Booking{}, ErrNotFound
	}
	return b, err
}
