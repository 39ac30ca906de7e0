package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"booking-service/internal/model"
	"booking-service/internal/timeslot"
)

// SaveSchedule upserts the owner's schedule and replaces its rules wholesale:
// existing rules are deleted and the new set inserted inside one transaction.
func (s *Store) SaveSchedule(ctx context.Context, sched *model.Schedule) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	q := `INSERT INTO schedules (owner_id, timezone, created_at, updated_at)
	      VALUES ($1, $2, $3, $3)
	      ON CONFLICT (owner_id) DO UPDATE SET timezone = EXCLUDED.timezone, updated_at = EXCLUDED.updated_at
	      RETURNING id, created_at`
	if err := tx.QueryRow(ctx, q, sched.OwnerID, sched.Timezone, now).Scan(&sched.ID, &sched.CreatedAt); err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	sched.UpdatedAt = now

	if _, err := tx.Exec(ctx, `DELETE FROM schedule_rules WHERE schedule_id = $1`, sched.ID); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}
	for _, r := range sched.Rules {
		_, err := tx.Exec(ctx,
			`INSERT INTO schedule_rules (schedule_id, day_of_week, start_time, end_time) VALUES ($1, $2, $3, $4)`,
			sched.ID, int(r.Weekday), r.Start.String(), r.End.String())
		if err != nil {
			return fmt.Errorf("insert rule: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetSchedule loads the owner's schedule with its rules ordered by weekday
// then start time.
func (s *Store) GetSchedule(ctx context.Context, ownerID string) (model.Schedule, error) {
	var sched model.Schedule
	q := `SELECT id, owner_id, timezone, created_at, updated_at FROM schedules WHERE owner_id = $1`
	err := s.pool.QueryRow(ctx, q, ownerID).Scan(&sched.ID, &sched.OwnerID, &sched.Timezone, &sched.CreatedAt, &sched.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Schedule{}, ErrNotFound
	}
	if err != nil {
		return model.Schedule{}, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT day_of_week, start_time, end_time FROM schedule_rules WHERE schedule_id = $1 ORDER BY day_of_week, start_time`,
		sched.ID)
	if err != nil {
		return model.Schedule{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			day        int
			start, end string
		)
		if err := rows.Scan(&day, &start, &end); err != nil {
			return model.Schedule{}, err
		}
		startTOD, err := timeslot.ParseTimeOfDay(start)
		if err != nil {
			return model.Schedule{}, fmt.Errorf("schedule %d: %w", sched.ID, err)
		}
		endTOD, err := timeslot.ParseTimeOfDay(end)
		if err != nil {
			return model.Schedule{}, fmt.Errorf("schedule %d: %w", sched.ID, err)
		}
		sched.Rules = append(sched.Rules, timeslot.Rule{
			Weekday: time.Weekday(day),
			Start:   startTOD,
			End:     endTOD,
		})
	}
	return sched, rows.Err()
}
