package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned for point reads that match no row, including
	// owner-mismatched reads.
	ErrNotFound = errors.New("store: not found")

	// ErrSlotTaken is returned when the partial unique index on confirmed
	// bookings rejects an insert: another confirmed booking already occupies
	// the owner/start/end triple.
	ErrSlotTaken = errors.New("store: slot already booked")

	// ErrDuplicateKey is returned when a booking insert collides on its
	// idempotency key; the caller should look up the existing booking.
	ErrDuplicateKey = errors.New("store: duplicate idempotency key")

	// ErrAlreadyCancelled is returned when cancelling a booking that is not
	// in the confirmed state.
	ErrAlreadyCancelled = errors.New("store: booking not confirmed")
)

const (
	confirmedSlotConstraint = "bookings_owner_slot_key"
	idempotencyConstraint   = "bookings_idempotency_key_key"
)

// uniqueViolation reports whether err is a Postgres unique violation on the
// named constraint.
func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
