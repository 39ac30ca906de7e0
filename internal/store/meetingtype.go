package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"booking-service/internal/model"
)

const meetingTypeColumns = `id, owner_id, name, description, duration_minutes,
	buffer_before, buffer_after, min_advance_hours, max_advance_days,
	is_active, total_bookings, total_hours, last_booked_at, created_at, updated_at`

func scanMeetingType(row pgx.Row) (model.MeetingType, error) {
	var mt model.MeetingType
	err := row.Scan(&mt.ID, &mt.OwnerID, &mt.Name, &mt.Description, &mt.DurationMinutes,
		&mt.BufferBefore, &mt.BufferAfter, &mt.MinAdvanceHours, &mt.MaxAdvanceDays,
		&mt.IsActive, &mt.TotalBookings, &mt.TotalHours, &mt.LastBookedAt, &mt.CreatedAt, &mt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MeetingType{}, ErrNotFound
	}
	return mt, err
}

func (s *Store) CreateMeetingType(ctx context.Context, mt *model.MeetingType) error {
	now := time.Now().UTC()
	q := `INSERT INTO meeting_types
	      (owner_id, name, description, duration_minutes, buffer_before, buffer_after,
	       min_advance_hours, max_advance_days, is_active, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
	      RETURNING id`
	err := s.pool.QueryRow(ctx, q, mt.OwnerID, mt.Name, mt.Description, mt.DurationMinutes,
		mt.BufferBefore, mt.BufferAfter, mt.MinAdvanceHours, mt.MaxAdvanceDays, mt.IsActive, now).Scan(&mt.ID)
	if err != nil {
		return err
	}
	mt.CreatedAt = now
	mt.UpdatedAt = now
	return nil
}

// UpdateMeetingType updates the owner-editable fields. Aggregates are
// untouched here; only CommitBooking advances them.
func (s *Store) UpdateMeetingType(ctx context.Context, mt *model.MeetingType) error {
	now := time.Now().UTC()
	q := `UPDATE meeting_types
	      SET name=$1, description=$2, duration_minutes=$3, buffer_before=$4, buffer_after=$5,
	          min_advance_hours=$6, max_advance_days=$7, is_active=$8, updated_at=$9
	      WHERE id=$10 AND owner_id=$11
	      RETURNING id`
	var id int64
	err := s.pool.QueryRow(ctx, q, mt.Name, mt.Description, mt.DurationMinutes, mt.BufferBefore,
		mt.BufferAfter, mt.MinAdvanceHours, mt.MaxAdvanceDays, mt.IsActive, now, mt.ID, mt.OwnerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	mt.UpdatedAt = now
	return nil
}

func (s *Store) DeleteMeetingType(ctx context.Context, id int64, ownerID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM meeting_types WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetMeetingType(ctx context.Context, id int64, ownerID string) (model.MeetingType, error) {
	q := `SELECT ` + meetingTypeColumns + ` FROM meeting_types WHERE id=$1 AND owner_id=$2`
	return scanMeetingType(s.pool.QueryRow(ctx, q, id, ownerID))
}

func (s *Store) ListMeetingTypes(ctx context.Context, ownerID string) ([]model.MeetingType, error) {
	q := `SELECT ` + meetingTypeColumns + ` FROM meeting_types WHERE owner_id=$1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MeetingType
	for rows.Next() {
		mt, err := scanMeetingType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}

// OwnerStats aggregates the dashboard totals over the owner's meeting types.
func (s *Store) OwnerStats(ctx context.Context, ownerID string) (model.OwnerStats, error) {
	stats := model.OwnerStats{OwnerID: ownerID}
	q := `SELECT count(*), count(*) FILTER (WHERE is_active),
	             COALESCE(sum(total_bookings), 0), COALESCE(sum(total_hours), 0), max(last_booked_at)
	      FROM meeting_types WHERE owner_id=$1`
	err := s.pool.QueryRow(ctx, q, ownerID).Scan(&stats.MeetingTypes, &stats.ActiveTypes,
		&stats.TotalBookings, &stats.TotalHours, &stats.LastBookedAt)
	return stats, err
}
